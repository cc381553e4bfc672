package web

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"log"
	"math/big"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"zkmail/config"
)

func GetTLSConfig() *tls.Config {
	switch config.CertMode(config.GetString(config.CertificateMode)) {
	case config.AutoCert:
		m := &autocert.Manager{
			Cache:      autocert.DirCache(config.GetString(config.AutoCertCacheDir)),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(config.GetString(config.ServerName)),
			Email:      config.GetString(config.AutoCertEmail),
		}
		return m.TLSConfig()
	case config.Given:
		c, e := tls.LoadX509KeyPair(config.GetString(config.CertificateFile), config.GetString(config.KeyFile))
		if e != nil {
			log.Fatal(e)
		}
		return &tls.Config{
			Certificates: []tls.Certificate{c},
		}
	default:
		return &tls.Config{
			Certificates: []tls.Certificate{selfSignedCert()},
		}
	}
}

// Not advisable outside development
func selfSignedCert() tls.Certificate {
	pk, e := rsa.GenerateKey(rand.Reader, 2048)
	if e != nil {
		log.Fatal(e)
	}

	serverName := config.GetString(config.ServerName)
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: serverName,
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{serverName},
	}
	der, e := x509.CreateCertificate(rand.Reader, &template, &template, &pk.PublicKey, pk)
	if e != nil {
		log.Fatal(e)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  pk,
	}
}
