// Package interactive asks the user which available updates to install.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes  Response = iota // Install this update
	ResponseNo                   // Skip this update
	ResponseAll                  // Approve all remaining updates
	ResponseQuit                 // Abort without installing anything
)

// Candidate is an available update offered to the user.
type Candidate struct {
	Name            string
	FriendlyName    string
	From            string
	To              string
	RequiresRestart bool
}

// Prompter handles interactive prompts for update confirmation.
type Prompter struct {
	out        io.Writer
	scanner    *bufio.Scanner
	approveAll bool
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output.
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt displays a question and reads the response.
func (p *Prompter) prompt(format string, args ...any) Response {
	if p.approveAll {
		return ResponseYes
	}

	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n/a/q] ")

	if !p.scanner.Scan() {
		return ResponseQuit
	}

	switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
	case "y", "yes":
		return ResponseYes
	case "n", "no":
		return ResponseNo
	case "a", "all":
		p.approveAll = true
		return ResponseYes
	case "q", "quit":
		return ResponseQuit
	default:
		_, _ = fmt.Fprintln(p.out, "Invalid response, skipping.")
		return ResponseNo
	}
}

// confirmFinal asks for final confirmation before installing.
func (p *Prompter) confirmFinal(n int) bool {
	_, _ = fmt.Fprintf(p.out, "\nInstall %d update(s)? [y/n] ", n)
	if !p.scanner.Scan() {
		return false
	}
	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes"
}

// Select prompts for each candidate in turn. It returns the names of the
// approved candidates and whether to go ahead with installing them.
func (p *Prompter) Select(candidates []Candidate) ([]string, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	_, _ = fmt.Fprintln(p.out, "\nUpdates available:")

	var approved []string
	restart := false
	skipped := 0
	for _, c := range candidates {
		ok, quit := p.promptCandidate(c)
		if quit {
			return nil, false
		}
		if !ok {
			skipped++
			continue
		}
		approved = append(approved, c.Name)
		restart = restart || c.RequiresRestart
	}

	_, _ = fmt.Fprintln(p.out, "\nSummary:")
	_, _ = fmt.Fprintf(p.out, "  Will install: %d\n", len(approved))
	if skipped > 0 {
		_, _ = fmt.Fprintf(p.out, "  Skipped: %d\n", skipped)
	}
	if restart {
		_, _ = fmt.Fprintln(p.out, "  A restart will be needed afterwards.")
	}

	if len(approved) == 0 {
		_, _ = fmt.Fprintln(p.out, "No updates selected.")
		return nil, false
	}

	if !p.confirmFinal(len(approved)) {
		_, _ = fmt.Fprintln(p.out, "Aborted.")
		return approved, false
	}

	return approved, true
}

// promptCandidate prompts for a single update.
func (p *Prompter) promptCandidate(c Candidate) (approved bool, quit bool) {
	name := c.FriendlyName
	if name == "" {
		name = c.Name
	}
	extra := ""
	if c.RequiresRestart {
		extra = " (restart required)"
	}
	_, _ = fmt.Fprintf(p.out, "  %s %s %s -> %s%s\n", updateSymbol, name, orUnknown(c.From), c.To, extra)

	switch p.prompt("    -> Install %s %s?", c.Name, c.To) {
	case ResponseNo:
		_, _ = fmt.Fprintf(p.out, "    %s Skipped\n", skipSymbol)
		return false, false
	case ResponseQuit:
		_, _ = fmt.Fprintln(p.out, "\nAborted.")
		return false, true
	default:
		return true, false
	}
}

// Symbols for output
const (
	updateSymbol = "~"
	skipSymbol   = "-"
)

func orUnknown(v string) string {
	if v == "" {
		return "(unknown)"
	}
	return v
}
