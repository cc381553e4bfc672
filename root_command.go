package main

import (
	"github.com/spf13/cobra"

	"zkmail/config"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "zkmail",
		Short:         "DKIM verification and prover input extraction for email",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.SetupConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newExtractCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newFetchCommand())
	rootCmd.AddCommand(newKeygenCommand())

	return rootCmd
}
