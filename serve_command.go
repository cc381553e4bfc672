package main

import (
	"log"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"zkmail/config"
	"zkmail/database"
	"zkmail/dnsfake"
	"zkmail/keys"
	"zkmail/logic"
	"zkmail/process"
	"zkmail/smtp"
	"zkmail/web"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the SMTP ingest and HTTP API servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.GetBool(config.FakeDns) {
				dnsfake.Start()
			}
			config.SetupResolver()

			db := database.NewDatabase()
			login := logic.NewLogin(db)

			ttl := time.Duration(config.GetInt(config.KeyCacheTtlSeconds)) * time.Second
			src := keys.NewCachedSource(keys.NewDNSSource(config.GetString(config.DnsServer)), db, ttl)

			chain := process.NewLogger(process.NewExtractor(src, process.NewSaver(db)))
			smtp.StartIngest(chain)

			retryChain := process.NewExtractor(src, process.NewRetrySaver(db))
			process.StartRetries(db, retryChain)

			web.StartApi(login, db, src, web.GetTLSConfig())

			// Setup admin user if this is the first startup
			seedData(login)

			// Wait for exit
			select {}
		},
	}
}

func seedData(login logic.Login) {
	pw := randSeq(16)
	usr, err := login.NewUser(config.GetString(config.AdminUsername)+"@"+config.GetString(config.ServerName),
		pw, true)
	if err == nil {
		log.Printf("Generated admin user email: %v password %v", usr.Email, pw)
	}
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randSeq(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
