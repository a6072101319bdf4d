package cmd

import "github.com/spf13/cobra"

// Execute runs the memochat root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:           "memochat",
		Short:         "memochat: read encrypted memo messages from Solana",
		Long:          "memochat reconstructs encrypted memo conversations and the public-key directory from Solana transaction history, caching transactions locally.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.community, "community", false, "read the configured community address instead of the wallet")

	rootCmd.AddCommand(
		newFetchCmd(&opts),
		newWatchCmd(&opts),
		newIdentityCmd(&opts),
		newKeygenCmd(&opts),
		newComposeCmd(&opts),
	)

	return rootCmd
}
