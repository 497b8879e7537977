package cmd

import (
	"github.com/spf13/cobra"

	"github.com/parley-irc/parley/internal/config"
	"github.com/parley-irc/parley/internal/output"
	"github.com/parley-irc/parley/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the results of the last update check",
		Long: `Status shows what the last 'parley check', 'parley install' or
'parley watch' cycle found, without contacting any update source.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return runStatus(w, cfg)
		},
	}
}

func runStatus(w *output.Writer, cfg *config.Config) error {
	db, err := store.NewBoltStore(cfg.Paths.StateDir)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.LoadCheckResults()
	if err != nil {
		return err
	}
	// the channel those results were checked on is not stored
	return w.Write(newCheckReport("", records))
}
