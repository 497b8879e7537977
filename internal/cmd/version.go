package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/parley-irc/parley/internal/config"
)

// clientComponent is the name the client registers under.
const clientComponent = "client"

func newVersionCmd() *cobra.Command {
	var (
		checkOnly bool
		doUpdate  bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information and check for updates",
		Long: `Display the current parley version and optionally check for or install
a newer client.

Examples:
  parley version              # Show current version
  parley version --check      # Check if a client update is available
  parley version --update     # Download and install the latest client`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !checkOnly && !doUpdate {
				fmt.Fprintf(out, "parley version %s (commit %s, built %s)\n", parleyVersion, buildCommit, buildDate)
				return nil
			}

			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runVersion(cmd.Context(), out, cfg, doUpdate)
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Check for a client update without installing")
	cmd.Flags().BoolVar(&doUpdate, "update", false, "Update the client to the latest version")
	cmd.MarkFlagsMutuallyExclusive("check", "update")

	return cmd
}

// runVersion checks for a client update and, with doUpdate, installs it.
func runVersion(ctx context.Context, out io.Writer, cfg *config.Config, doUpdate bool) error {
	rt, err := newRuntime(cfg, parleyVersion)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Fprintf(out, "Current version: %s\n", parleyVersion)
	if _, err := rt.manager.Component(clientComponent); err != nil {
		fmt.Fprintln(out, "Client updates are disabled for development builds.")
		return nil
	}

	if !doUpdate {
		results := rt.manager.CheckForUpdates(ctx)
		res, ok := results[clientComponent]
		if !ok || !res.Available {
			fmt.Fprintln(out, "Already running latest version")
			return nil
		}
		fmt.Fprintf(out, "Latest version: %s available (from %s)\n", res.FriendlyVersion, res.Source)
		fmt.Fprintln(out, "\nRun 'parley version --update' to install")
		return nil
	}

	report, err := rt.install(ctx, []string{clientComponent}, nil)
	if err != nil {
		return err
	}
	res := report.Results[0]
	switch {
	case res.Error != "":
		return fmt.Errorf("client update failed: %s", res.Error)
	case !res.Succeeded():
		fmt.Fprintln(out, "Already running latest version")
	default:
		fmt.Fprintf(out, "✓ Installed %s\n", res.To)
		fmt.Fprintln(out, "Restart parley to use the new version.")
	}
	return nil
}
