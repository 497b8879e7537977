package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parley-irc/parley/internal/config"
	"github.com/parley-irc/parley/internal/interactive"
	"github.com/parley-irc/parley/internal/output"
	"github.com/parley-irc/parley/internal/types"
	"github.com/parley-irc/parley/internal/update"
)

func newInstallCmd() *cobra.Command {
	var interactiveMode bool

	cmd := &cobra.Command{
		Use:   "install [component...]",
		Short: "Download and install available updates",
		Long: `Install checks for updates and installs them. Without arguments every
component with an update is installed; otherwise only the named ones.

Plugins take effect immediately. A client update takes effect when parley
is restarted.

Examples:
  parley install               # Install every available update
  parley install plugin-foo    # Update one plugin
  parley install client        # Update the client only
  parley install -i            # Choose updates one by one`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			var choose chooser
			if interactiveMode {
				if !interactive.IsTerminal() {
					return fmt.Errorf("--interactive requires a terminal")
				}
				choose = interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.ErrOrStderr()).Select
			}
			return runInstall(cmd.Context(), w, cfg, args, choose)
		},
	}

	cmd.Flags().BoolVarP(&interactiveMode, "interactive", "i", false, "Prompt for confirmation of each update")

	return cmd
}

// chooser picks which candidates to install and whether to go ahead at all.
type chooser func(candidates []interactive.Candidate) (names []string, proceed bool)

// runInstall checks for updates and installs those for names, or every
// available update when names is empty. A non-nil choose narrows the
// selection further. It fails when any install fails.
func runInstall(ctx context.Context, w *output.Writer, cfg *config.Config, names []string, choose chooser) error {
	rt, err := newRuntime(cfg, parleyVersion)
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.install(ctx, names, choose)
	if err != nil {
		return err
	}
	if err := w.Write(report); err != nil {
		return err
	}
	if n := report.Failures(); n > 0 {
		return fmt.Errorf("%d of %d updates failed", n, len(report.Results))
	}
	return nil
}

func (r *runtime) install(ctx context.Context, names []string, choose chooser) (*InstallReport, error) {
	var targets []update.Component
	for _, name := range names {
		c, err := r.manager.Component(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, c)
	}

	results := r.manager.CheckForUpdates(ctx)
	if len(names) == 0 {
		for _, c := range r.manager.Components() {
			if res, ok := results[c.Name()]; ok && res.Available {
				targets = append(targets, c)
			}
		}
	}

	if choose != nil {
		targets = chooseTargets(targets, results, choose)
	}

	report := &InstallReport{}
	var started []int
	for _, c := range targets {
		res := InstallResult{Name: c.Name(), From: c.Version().String()}
		if check, ok := results[c.Name()]; ok && check.Available {
			res.To = check.FriendlyVersion
		}

		err := r.manager.Install(ctx, c)
		switch {
		case errors.Is(err, update.ErrNoUpdate):
			res.Status = types.StatusIdle
		case err != nil:
			res.Status = types.StatusIdle
			res.Error = installError(err)
		default:
			started = append(started, len(report.Results))
		}
		report.Results = append(report.Results, res)
	}

	r.manager.Wait()

	for _, i := range started {
		res := &report.Results[i]
		status := r.manager.Status(res.Name)
		res.Status = status.Status
		if !res.Succeeded() {
			res.Error = installError(status.Err)
		}
	}
	return report, nil
}

// chooseTargets offers the targets that have an update to choose and keeps
// the approved ones. Nothing is kept unless choose says to proceed.
func chooseTargets(targets []update.Component, results update.CheckResults, choose chooser) []update.Component {
	var candidates []interactive.Candidate
	for _, c := range targets {
		if res, ok := results[c.Name()]; ok && res.Available {
			candidates = append(candidates, interactive.Candidate{
				Name:            c.Name(),
				FriendlyName:    c.FriendlyName(),
				From:            c.Version().String(),
				To:              res.FriendlyVersion,
				RequiresRestart: c.RequiresRestart(),
			})
		}
	}

	names, proceed := choose(candidates)
	if !proceed {
		return nil
	}
	approved := make(map[string]bool, len(names))
	for _, name := range names {
		approved[name] = true
	}

	var chosen []update.Component
	for _, c := range targets {
		if approved[c.Name()] {
			chosen = append(chosen, c)
		}
	}
	return chosen
}

// installError turns the reason an update stopped into a report message.
func installError(err error) string {
	switch {
	case err == nil:
		return "update did not complete"
	case errors.Is(err, update.ErrNoRetrievalStrategy), errors.Is(err, update.ErrNoInstallationStrategy):
		return "update cannot be installed automatically"
	case errors.Is(err, update.ErrRetrievalFailed):
		return "download failed"
	case errors.Is(err, update.ErrInstallFailed):
		return "install failed"
	default:
		return err.Error()
	}
}
