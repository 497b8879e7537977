package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/parley-irc/parley/internal/backup"
	"github.com/parley-irc/parley/internal/config"
	"github.com/parley-irc/parley/internal/output"
	"github.com/parley-irc/parley/internal/state"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "List and restore plugin backups",
		Long: `Backup manages the copies of plugin files saved before an update
replaces them.

Backups are stored under <state_dir>/backups. The most recent backups of
each plugin are kept; older ones are pruned after every install.

Use 'parley backup restore <plugin>' to roll a plugin back to the build it
had before its last update.`,
	}

	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupRestoreCmd())
	cmd.AddCommand(newBackupPruneCmd())

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [plugin]",
		Short: "List plugin backups",
		Long:  `List displays the saved backups, newest first, optionally for one plugin.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			plugin := ""
			if len(args) == 1 {
				plugin = args[0]
			}
			return runBackupList(w, newBackupManager(cfg), plugin)
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <plugin|id>",
		Short: "Restore a plugin from a backup",
		Long: `Restore copies a saved plugin file back into place and records its
version in the plugin registry.

Given a plugin name, the newest backup of that plugin is restored. Given a
backup ID (see 'parley backup list'), that exact backup is restored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runBackupRestore(cmd.InOrStdin(), cmd.OutOrStdout(), cfg, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func newBackupPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune [plugin]",
		Short: "Remove old backups",
		Long: fmt.Sprintf(`Prune deletes old backups, keeping only the most recent N per plugin.

By default, keeps the %d most recent backups of each plugin.`, backup.DefaultKeepCount),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			plugin := ""
			if len(args) == 1 {
				plugin = args[0]
			}
			return runBackupPrune(w, newBackupManager(cfg), plugin, keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", backup.DefaultKeepCount, "Number of backups to keep per plugin")

	return cmd
}

// BackupList is the output of 'backup list'.
type BackupList struct {
	Dir     string              `json:"dir" yaml:"dir"`
	Backups []backup.BackupInfo `json:"backups" yaml:"backups"`
}

// String implements fmt.Stringer for text output.
func (l *BackupList) String() string {
	if len(l.Backups) == 0 {
		return fmt.Sprintf("No backups found.\nBackup directory: %s", l.Dir)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Backups stored in %s:\n\n", l.Dir)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPLUGIN\tVERSION\tCREATED\tSIZE")
	for _, bak := range l.Backups {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			bak.ID, bak.Plugin, orDash(bak.Version),
			bak.CreatedAt.Local().Format("2006-01-02 15:04:05"), formatSize(bak.Size))
	}
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func runBackupList(w *output.Writer, manager *backup.Manager, plugin string) error {
	backups, err := manager.List(plugin)
	if err != nil {
		return err
	}
	return w.Write(&BackupList{Dir: manager.BackupDir(), Backups: backups})
}

// runBackupRestore restores target, which is either a backup ID or a plugin
// name whose newest backup is used.
func runBackupRestore(in io.Reader, out io.Writer, cfg *config.Config, target string, skipConfirm bool) error {
	manager := newBackupManager(cfg)

	bak, err := manager.Get(target)
	if err != nil {
		bak, err = manager.Latest(target)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Restoring %s %s from backup %s\n", bak.Plugin, orDash(bak.Version), bak.ID)
	fmt.Fprintf(out, "Created: %s\n", bak.CreatedAt.Local().Format("2006-01-02 15:04:05"))

	if !skipConfirm {
		fmt.Fprint(out, "Proceed? [y/n] ")
		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && response == "" {
			return fmt.Errorf("failed to read response: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Restore cancelled.")
			return nil
		}
	}

	registry := state.NewFilesystemReader(cfg.Paths.PluginsDir)
	if _, err := manager.Restore(bak.ID, registry); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	fmt.Fprintf(out, "✓ Restored %s %s\n", bak.Plugin, orDash(bak.Version))
	return nil
}

func runBackupPrune(w *output.Writer, manager *backup.Manager, plugin string, keep int) error {
	result, err := manager.Prune(plugin, keep)
	if err != nil {
		return err
	}

	if w.Format() != output.FormatText {
		return w.Write(result)
	}
	if len(result.Deleted) == 0 {
		return w.Write(fmt.Sprintf("No backups to prune. Keeping %d backup(s).", result.Kept))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Pruned %d backup(s), keeping %d:", len(result.Deleted), result.Kept)
	for _, bak := range result.Deleted {
		fmt.Fprintf(&b, "\n  - %s (%s)", bak.ID, bak.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Write(b.String())
}

// formatSize formats bytes as a human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
