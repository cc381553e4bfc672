package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zkmail/keys"
)

func newKeygenCommand() *cobra.Command {
	var bitsFlag int
	var outFlag string

	cmd := &cobra.Command{
		Use:   "keygen <selector> <domain>",
		Short: "Generate an RSA signing key and print the DNS record to publish for it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pk, err := keys.Generate(bitsFlag)
			if err != nil {
				return err
			}
			if err := keys.WritePrivateKey(outFlag, pk); err != nil {
				return err
			}

			record, err := keys.RecordString(pk.Public())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %v\n", outFlag)
			fmt.Fprintf(cmd.OutOrStdout(), "%v._domainkey.%v. IN TXT %q\n", args[0], args[1], record)
			return nil
		},
	}

	cmd.Flags().IntVar(&bitsFlag, "bits", 2048, "RSA key size")
	cmd.Flags().StringVarP(&outFlag, "out", "o", "dkim.pem", "Path of the private key file")

	return cmd
}
