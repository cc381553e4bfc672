package config

import (
	"context"
	"log"
	"net"
	"strings"

	"github.com/spf13/viper"
)

// CertMode selects how the HTTP API obtains its TLS certificate.
type CertMode string

const (
	AutoCert   CertMode = "AutoCert"
	Given      CertMode = "Given"
	SelfSigned CertMode = "SelfSigned"
)

const (
	// ServerName is the DNS name this service announces, used for the SMTP
	// greeting and the self-signed certificate.
	ServerName = "ServerName"

	// Storage
	DbDriverName       = "DbDriverName"
	DbConnectionString = "DbConnectionString"

	// Network
	SmtpAddress = "SmtpAddress"
	HttpAddress = "HttpAddress"

	// TLS for the HTTP API
	HttpUseTls       = "HttpUseTls"
	CertificateMode  = "CertificateMode"
	AutoCertEmail    = "AutoCertEmail"
	AutoCertCacheDir = "AutoCertCacheDir"
	CertificateFile  = "CertificateFile"
	KeyFile          = "KeyFile"

	// SMTP ingestion limits
	MaxIdleSeconds  = "MaxIdleSeconds"
	MaxMessageBytes = "MaxMessageBytes"
	MaxRecipients   = "MaxRecipients"

	// Reject ingested messages carrying no valid signature
	SignatureMandatory = "SignatureMandatory"

	// Key lookup
	DnsServer          = "DnsServer"
	KeyCacheTtlSeconds = "KeyCacheTtlSeconds"

	// Retries of temporarily failed lookups
	RetryCronSpec = "RetryCronSpec"
	RetryCount    = "RetryCount"

	// Web auth
	AdminUsername      = "AdminUsername"
	JwtTokenSecretFile = "JwtTokenSecretFile"
	JwtCookieName      = "JwtCookieName"

	// Fake DNS for local loops: serves the record in FakeDnsRecordFile for
	// any _domainkey query under FakeDnsDomain. Never use in production.
	FakeDns           = "FakeDns"
	FakeDnsAddress    = "FakeDnsAddress"
	FakeDnsDomain     = "FakeDnsDomain"
	FakeDnsRecordFile = "FakeDnsRecordFile"
)

func SetConfigDefaults() {
	viper.SetDefault(ServerName, "zkmail.example.com")

	viper.SetDefault(DbDriverName, "sqlite3")
	viper.SetDefault(DbConnectionString, "zkmail.db")

	viper.SetDefault(SmtpAddress, ":2525")
	viper.SetDefault(HttpAddress, ":8080")

	viper.SetDefault(HttpUseTls, false)
	viper.SetDefault(CertificateMode, string(SelfSigned))
	viper.SetDefault(AutoCertEmail, "admin@example.com")
	viper.SetDefault(AutoCertCacheDir, "keys")
	viper.SetDefault(CertificateFile, "/etc/letsencrypt/live/zkmail.example.com/fullchain.pem")
	viper.SetDefault(KeyFile, "/etc/letsencrypt/live/zkmail.example.com/privkey.pem")

	viper.SetDefault(MaxIdleSeconds, 300)
	viper.SetDefault(MaxMessageBytes, 10*1024*1024)
	viper.SetDefault(MaxRecipients, 50)
	viper.SetDefault(SignatureMandatory, false)

	viper.SetDefault(DnsServer, "8.8.8.8:53")
	viper.SetDefault(KeyCacheTtlSeconds, 3600)

	viper.SetDefault(RetryCronSpec, "0 * * * * *") // every minute, on the minute
	viper.SetDefault(RetryCount, 3)

	viper.SetDefault(AdminUsername, "admin")
	viper.SetDefault(JwtTokenSecretFile, "keys/jwt-secret")
	viper.SetDefault(JwtCookieName, "zkmail_jwt_token")

	viper.SetDefault(FakeDns, false)
	viper.SetDefault(FakeDnsAddress, "127.0.0.1:2053")
	viper.SetDefault(FakeDnsDomain, "example.com")
	viper.SetDefault(FakeDnsRecordFile, "keys/dkim-record.txt")
}

// SetupConfig loads defaults, an optional zkmail.yaml (working directory or
// /etc/zkmail), and ZKMAIL_* environment overrides.
func SetupConfig() {
	SetConfigDefaults()
	viper.SetConfigName("zkmail")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/zkmail")
	viper.SetEnvPrefix("zkmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatal(err)
		}
	}
}

// SetupResolver points the default resolver at the configured DNS server so
// that the whole process (including the fake DNS loop) resolves through it.
func SetupResolver() {
	net.DefaultResolver = &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (conn net.Conn, e error) {
			d := net.Dialer{}
			return d.DialContext(ctx, network, GetString(DnsServer))
		},
	}
}

func GetString(key string) string {
	return viper.GetString(key)
}

func GetInt(key string) int {
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	return viper.GetBool(key)
}
