package main

import (
	"os"

	"github.com/spf13/cobra"

	"zkmail/config"
	"zkmail/database"
	"zkmail/fetch"
	"zkmail/keys"
	"zkmail/process"
)

func newFetchCommand() *cobra.Command {
	var opts fetch.Options
	var limitFlag uint32
	var saveFlag bool
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "fetch <imap-address>",
		Short: "Pull messages from an IMAP mailbox and extract prover inputs from each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Address = args[0]
			opts.Limit = limitFlag
			if opts.Password == "" {
				opts.Password = os.Getenv("ZKMAIL_IMAP_PASSWORD")
			}

			src := keys.NewDNSSource(config.GetString(config.DnsServer))

			var sink process.MsgProcessor
			if saveFlag {
				sink = process.NewSaver(database.NewDatabase())
			} else {
				sink = process.NewFileWriter(outputFlag)
			}
			chain := process.NewLogger(process.NewExtractor(src, sink))
			return fetch.Fetch(opts, chain)
		},
	}

	cmd.Flags().StringVarP(&opts.Username, "user", "u", "", "IMAP account name")
	cmd.Flags().StringVar(&opts.Password, "password", "", "IMAP password (or set ZKMAIL_IMAP_PASSWORD)")
	cmd.Flags().StringVar(&opts.Mailbox, "mailbox", "INBOX", "Mailbox to pull from")
	cmd.Flags().BoolVar(&opts.UseTls, "tls", true, "Connect with implicit TLS")
	cmd.Flags().Uint32Var(&limitFlag, "limit", 1, "Only pull the most recent N messages, 0 for all")
	cmd.Flags().BoolVar(&saveFlag, "save", false, "Record results in the database instead of writing a file")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "inputs.json", "Path of the JSON inputs document")

	return cmd
}
