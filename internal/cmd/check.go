package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/parley-irc/parley/internal/config"
	"github.com/parley-irc/parley/internal/output"
	"github.com/parley-irc/parley/internal/types"
	"github.com/parley-irc/parley/internal/update"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check for updates to the client and plugins",
		Long: `Check asks every update source that serves the configured channel whether
newer versions of the client or its plugins exist, and prints one verdict per
component. Results are saved and shown again by 'parley status'.`,
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
			return runCheck(cmd.Context(), w, cfg)
		},
	}
}

// runCheck runs one check cycle and writes the consolidated verdicts.
func runCheck(ctx context.Context, w *output.Writer, cfg *config.Config) error {
	rt, err := newRuntime(cfg, parleyVersion)
	if err != nil {
		return err
	}
	defer rt.Close()

	return w.Write(rt.check(ctx))
}

// check runs one cycle and reports every component it covered. Nothing is
// checked on the none channel.
func (r *runtime) check(ctx context.Context) *CheckReport {
	channel := r.cfg.Updater.Channel
	if channel == types.ChannelNone {
		return newCheckReport(channel, nil)
	}

	results := r.manager.CheckForUpdates(ctx)
	var checked []update.Component
	for _, c := range r.manager.Components() {
		if r.manager.Status(c.Name()).Status != types.StatusCheckingNotPermitted {
			checked = append(checked, c)
		}
	}
	records := update.CheckRecords(checked, results, time.Now().UTC())
	return newCheckReport(channel, records)
}
