package main

import (
	"fmt"
	"os"

	"github.com/emersion/go-msgauth/authres"
	"github.com/spf13/cobra"

	"zkmail/config"
	"zkmail/inputs"
)

func newVerifyCommand() *cobra.Command {
	var keyFileFlag string

	cmd := &cobra.Command{
		Use:   "verify <message.eml>",
		Short: "Verify a message's DKIM signatures and print an Authentication-Results header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := inputs.Extract(f, &inputs.Options{Keys: keySource(keyFileFlag)})
			if err != nil {
				return err
			}

			results := make([]authres.Result, 0, len(res))
			failed := false
			for _, r := range res {
				if r.Err != nil {
					failed = true
				}
				results = append(results, &authres.DKIMResult{
					Value:      resultValue(r),
					Domain:     r.Domain,
					Identifier: r.Identifier,
				})
			}
			if len(results) == 0 {
				failed = true
				results = append(results, &authres.DKIMResult{Value: authres.ResultNone})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Authentication-Results: %v\n",
				authres.Format(config.GetString(config.ServerName), results))
			if failed {
				return fmt.Errorf("verification failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyFileFlag, "key-file", "", "Read the public key from a file instead of DNS")

	return cmd
}

func resultValue(r *inputs.Result) authres.ResultValue {
	switch {
	case r.Err == nil:
		return authres.ResultPass
	case inputs.IsTempFail(r.Err):
		return authres.ResultTempError
	case inputs.IsPermFail(r.Err):
		return authres.ResultPermError
	default:
		return authres.ResultFail
	}
}
