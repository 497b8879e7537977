package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parley-irc/parley/internal/config"
	"github.com/parley-irc/parley/internal/templates"
)

func newInitCmd() *cobra.Command {
	var templateName string
	var outputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a parley config from a template",
		Long: `Create a new parley config file from a built-in template.

Available templates:
  stable   - Follow stable releases (recommended)
  nightly  - Follow nightly builds, checked hourly
  full     - Every option with its default value

Examples:
  parley init                          # Choose a template interactively
  parley init --template=nightly       # Direct template selection
  parley init --path ~/.parley/config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), templateName, outputPath, force)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", "", "Template name")
	cmd.Flags().StringVar(&outputPath, "path", "", "Where to write the config (default $XDG_CONFIG_HOME/parley/config.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")

	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit writes a template to outputPath, asking for the template and for
// confirmation before overwriting when those are not given.
func runInit(stdin io.Reader, stdout, stderr io.Writer, templateName, outputPath string, force bool) error {
	reader := bufio.NewReader(stdin)

	if outputPath == "" {
		outputPath = config.DefaultPath()
	}
	outputPath = expandHomePath(outputPath)

	if _, err := os.Stat(outputPath); err == nil && !force {
		_, _ = fmt.Fprintf(stderr, "Config already exists at %s\n", outputPath)
		_, _ = fmt.Fprintf(stdout, "Overwrite? [y/N]: ")
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read input: %w", err)
		}
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	if templateName == "" {
		selected, err := selectTemplateInteractive(reader, stdout)
		if err != nil {
			return err
		}
		templateName = selected
	}

	tmpl, err := templates.Get(templateName)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}

	if _, err := config.Parse(tmpl.Content, config.FormatYAML); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	parentDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", parentDir, err)
	}

	// the config may end up holding a GitHub token
	if err := os.WriteFile(outputPath, tmpl.Content, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "\nCreated %s from the '%s' template\n", outputPath, tmpl.Name)
	if !quiet {
		_, _ = fmt.Fprintln(stdout, "\nNext steps:")
		_, _ = fmt.Fprintln(stdout, "  1. Edit the config to customize")
		_, _ = fmt.Fprintln(stdout, "  2. Run 'parley check' to look for updates")
		_, _ = fmt.Fprintln(stdout, "  3. Run 'parley install' to apply them")
	}

	return nil
}

// selectTemplateInteractive shows a numbered menu. An empty answer picks
// the default template.
func selectTemplateInteractive(reader *bufio.Reader, stdout io.Writer) (string, error) {
	templateList := templates.List()

	_, _ = fmt.Fprintln(stdout, "\nSelect a config template:")
	defaultIndex := 0
	for i, name := range templateList {
		if name == templates.Default {
			defaultIndex = i + 1
		}
		_, _ = fmt.Fprintf(stdout, "  %d. %-8s - %s\n", i+1, name, templates.GetDescription(name))
	}

	_, _ = fmt.Fprintf(stdout, "\nSelect [1-%d, default %d]: ", len(templateList), defaultIndex)

	answer, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return templates.Default, nil
	}

	num, err := strconv.Atoi(answer)
	if err != nil || num < 1 || num > len(templateList) {
		return "", fmt.Errorf("invalid selection: %s", answer)
	}

	return templateList[num-1], nil
}

// expandHomePath expands ~ to the user's home directory.
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
