package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/parley-irc/parley/internal/store"
	"github.com/parley-irc/parley/internal/types"
)

func TestCheckReportString(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	report := newCheckReport(types.ChannelStable, []store.CheckRecord{
		{Component: "client", Kind: types.ComponentClient, CurrentVersion: "1.0", Available: true, FriendlyVersion: "1.1 (stable)", Source: "release", CheckedAt: at},
		{Component: "plugin-foo", Kind: types.ComponentPlugin, CurrentVersion: "2.0", Source: "service", CheckedAt: at.Add(-time.Minute)},
	})

	if !report.CheckedAt.Equal(at) {
		t.Errorf("CheckedAt = %v, want latest record time", report.CheckedAt)
	}

	out := report.String()
	for _, want := range []string{"Channel: stable", "1.1 (stable)", "up to date", "1 update available"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if got := newCheckReport("", nil).String(); got != "No update check results." {
		t.Errorf("empty report = %q", got)
	}
}

func TestInstallReportString(t *testing.T) {
	report := &InstallReport{Results: []InstallResult{
		{Name: "client", From: "1.0", To: "1.1", Status: types.StatusRestartPending},
		{Name: "plugin-foo", To: "2.1", Status: types.StatusUpdated},
		{Name: "plugin-bar", Status: types.StatusIdle, Error: "download failed"},
		{Name: "plugin-baz", Status: types.StatusIdle},
	}}

	if report.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", report.Failures())
	}
	if !report.RestartRequired() {
		t.Error("RestartRequired() = false")
	}

	out := report.String()
	for _, want := range []string{
		"✓ client 1.0 → 1.1",
		"✓ plugin-foo - → 2.1",
		"✗ plugin-bar: download failed",
		"· plugin-baz is up to date",
		"Restart parley to finish updating.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if got := (&InstallReport{}).String(); !strings.Contains(got, "Nothing to install") {
		t.Errorf("empty report = %q", got)
	}
}

func TestHistoryReportString(t *testing.T) {
	report := newHistoryReport([]*store.InstallRecord{
		{ID: "a", Component: "plugin-foo", FromVersion: "1.0", ToVersion: "1.1", Status: types.StatusUpdated, At: time.Now()},
		{ID: "b", Component: "client", FromVersion: "1.0", Status: types.StatusIdle, Error: "install failed", At: time.Now()},
	})

	out := report.String()
	for _, want := range []string{"COMPONENT", "plugin-foo", "updated", "failed: install failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if got := newHistoryReport(nil).String(); got != "No installs recorded." {
		t.Errorf("empty report = %q", got)
	}
}
