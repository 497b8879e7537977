package cmd

import (
	"github.com/spf13/cobra"

	"github.com/parley-irc/parley/internal/config"
	"github.com/parley-irc/parley/internal/output"
	"github.com/parley-irc/parley/internal/store"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past install attempts",
		Long:  `History lists recorded install attempts, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return runHistory(w, cfg, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show (0 for all)")

	return cmd
}

func runHistory(w *output.Writer, cfg *config.Config, limit int) error {
	db, err := store.NewBoltStore(cfg.Paths.StateDir)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListInstalls(limit)
	if err != nil {
		return err
	}
	return w.Write(newHistoryReport(records))
}
