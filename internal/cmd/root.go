package cmd

import (
	"github.com/spf13/cobra"

	"github.com/parley-irc/parley/internal/output"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	channelFlag  string
	verbose      bool
	quiet        bool

	// Build information, set by Execute.
	parleyVersion = "dev"
	buildCommit   = "none"
	buildDate     = "unknown"
)

func Execute(version, commit, date string) error {
	parleyVersion, buildCommit, buildDate = version, commit, date

	rootCmd := &cobra.Command{
		Use:   "parley",
		Short: "Keep the parley client and its plugins up to date",
		Long: `parley checks the configured update sources for newer versions of the
client and its installed plugins, downloads them and installs them.

Which channel is followed and which components are checked is set in the
parley config file (see --config).`,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to parley config file")
	rootCmd.PersistentFlags().StringVar(&channelFlag, "channel", "", "Override the update channel: stable, unstable, nightly, none")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion functions for enumerated flags
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return output.Formats(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("channel", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return channelNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd.Execute()
}
