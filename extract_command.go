package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"zkmail/config"
	"zkmail/inputs"
	"zkmail/keys"
	"zkmail/process"
)

func newExtractCommand() *cobra.Command {
	var outputFlag string
	var keyFileFlag string
	var domainFlag string
	var selectorFlag string

	cmd := &cobra.Command{
		Use:   "extract <message.eml>",
		Short: "Verify a message's DKIM signature and write the prover inputs to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := inputs.Extract(f, &inputs.Options{
				Keys:     keySource(keyFileFlag),
				Domain:   domainFlag,
				Selector: selectorFlag,
			})
			if err != nil {
				return err
			}

			for _, r := range res {
				fmt.Fprintf(cmd.OutOrStdout(), "d=%v s=%v a=%v: %v\n",
					r.Domain, r.Selector, r.Algorithm, process.Verdict(r))
			}

			msg := &process.ReceivedMsg{
				Timestamp: time.Now(),
				Results:   res,
			}
			if err := process.NewFileWriter(outputFlag).Process(msg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %v\n", outputFlag)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "inputs.json", "Path of the JSON inputs document")
	cmd.Flags().StringVar(&keyFileFlag, "key-file", "", "Read the public key from a file instead of DNS")
	cmd.Flags().StringVar(&domainFlag, "domain", "", "Only consider signatures for this domain")
	cmd.Flags().StringVar(&selectorFlag, "selector", "", "Only consider signatures with this selector")

	return cmd
}

func keySource(keyFile string) inputs.KeySource {
	if keyFile != "" {
		return keys.NewFileSource(keyFile)
	}
	return keys.NewDNSSource(config.GetString(config.DnsServer))
}
