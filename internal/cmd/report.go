package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/parley-irc/parley/internal/store"
	"github.com/parley-irc/parley/internal/types"
)

// CheckReport is the output of `parley check` and `parley status`.
type CheckReport struct {
	Channel    types.Channel     `json:"channel,omitempty" yaml:"channel,omitempty"`
	CheckedAt  time.Time         `json:"checked_at" yaml:"checked_at"`
	Components []ComponentReport `json:"components" yaml:"components"`
}

// ComponentReport is one component's consolidated check verdict.
type ComponentReport struct {
	Name      string              `json:"name" yaml:"name"`
	Kind      types.ComponentKind `json:"kind" yaml:"kind"`
	Installed string              `json:"installed" yaml:"installed"`
	Available bool                `json:"available" yaml:"available"`
	Latest    string              `json:"latest,omitempty" yaml:"latest,omitempty"`
	URL       string              `json:"url,omitempty" yaml:"url,omitempty"`
	Source    string              `json:"source,omitempty" yaml:"source,omitempty"`
}

func newCheckReport(channel types.Channel, records []store.CheckRecord) *CheckReport {
	report := &CheckReport{Channel: channel, Components: make([]ComponentReport, 0, len(records))}
	for _, r := range records {
		if r.CheckedAt.After(report.CheckedAt) {
			report.CheckedAt = r.CheckedAt
		}
		report.Components = append(report.Components, ComponentReport{
			Name:      r.Component,
			Kind:      r.Kind,
			Installed: r.CurrentVersion,
			Available: r.Available,
			Latest:    r.FriendlyVersion,
			URL:       r.URL,
			Source:    r.Source,
		})
	}
	return report
}

// Updates returns the number of components with an update available.
func (r *CheckReport) Updates() int {
	n := 0
	for _, c := range r.Components {
		if c.Available {
			n++
		}
	}
	return n
}

func (r *CheckReport) String() string {
	if len(r.Components) == 0 {
		return "No update check results."
	}

	var b strings.Builder
	if r.Channel != "" {
		fmt.Fprintf(&b, "Channel: %s\n", r.Channel)
	}
	if !r.CheckedAt.IsZero() {
		fmt.Fprintf(&b, "Checked: %s\n", r.CheckedAt.Local().Format(time.RFC1123))
	}
	b.WriteString("\n")

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tINSTALLED\tAVAILABLE\tSOURCE")
	for _, c := range r.Components {
		latest := "up to date"
		if c.Available {
			latest = c.Latest
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, orDash(c.Installed), latest, orDash(c.Source))
	}
	_ = tw.Flush()

	switch n := r.Updates(); n {
	case 0:
		b.WriteString("\nEverything is up to date.")
	case 1:
		b.WriteString("\n1 update available. Run 'parley install' to install it.")
	default:
		fmt.Fprintf(&b, "\n%d updates available. Run 'parley install' to install them.", n)
	}
	return b.String()
}

// InstallReport is the output of `parley install`.
type InstallReport struct {
	Results []InstallResult `json:"results" yaml:"results"`
}

// InstallResult is the outcome of updating one component.
type InstallResult struct {
	Name   string       `json:"name" yaml:"name"`
	From   string       `json:"from,omitempty" yaml:"from,omitempty"`
	To     string       `json:"to,omitempty" yaml:"to,omitempty"`
	Status types.Status `json:"status" yaml:"status"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// Succeeded reports whether the component ended up installed.
func (r InstallResult) Succeeded() bool {
	return r.Status == types.StatusUpdated || r.Status == types.StatusRestartPending
}

// Failures returns the number of results that carry an error.
func (r *InstallReport) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}

// RestartRequired reports whether any result waits for a client restart.
func (r *InstallReport) RestartRequired() bool {
	for _, res := range r.Results {
		if res.Status == types.StatusRestartPending {
			return true
		}
	}
	return false
}

func (r *InstallReport) String() string {
	if len(r.Results) == 0 {
		return "Nothing to install. Everything is up to date."
	}

	var b strings.Builder
	for _, res := range r.Results {
		switch {
		case res.Error != "":
			fmt.Fprintf(&b, "✗ %s: %s\n", res.Name, res.Error)
		case res.Succeeded():
			fmt.Fprintf(&b, "✓ %s %s → %s\n", res.Name, orDash(res.From), res.To)
		default:
			fmt.Fprintf(&b, "· %s is up to date\n", res.Name)
		}
	}
	if r.RestartRequired() {
		b.WriteString("\nRestart parley to finish updating.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// HistoryReport is the output of `parley history`.
type HistoryReport struct {
	Installs []HistoryEntry `json:"installs" yaml:"installs"`
}

// HistoryEntry is one recorded install attempt.
type HistoryEntry struct {
	ID        string              `json:"id" yaml:"id"`
	Component string              `json:"component" yaml:"component"`
	Kind      types.ComponentKind `json:"kind" yaml:"kind"`
	From      string              `json:"from" yaml:"from"`
	To        string              `json:"to" yaml:"to"`
	Status    types.Status        `json:"status" yaml:"status"`
	Error     string              `json:"error,omitempty" yaml:"error,omitempty"`
	At        time.Time           `json:"at" yaml:"at"`
}

func newHistoryReport(records []*store.InstallRecord) *HistoryReport {
	report := &HistoryReport{Installs: make([]HistoryEntry, 0, len(records))}
	for _, r := range records {
		report.Installs = append(report.Installs, HistoryEntry{
			ID:        r.ID,
			Component: r.Component,
			Kind:      r.Kind,
			From:      r.FromVersion,
			To:        r.ToVersion,
			Status:    r.Status,
			Error:     r.Error,
			At:        r.At,
		})
	}
	return report
}

func (r *HistoryReport) String() string {
	if len(r.Installs) == 0 {
		return "No installs recorded."
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tCOMPONENT\tFROM\tTO\tRESULT")
	for _, e := range r.Installs {
		result := e.Status.String()
		if e.Error != "" {
			result = "failed: " + e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.At.Local().Format("2006-01-02 15:04"), e.Component, orDash(e.From), orDash(e.To), result)
	}
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
