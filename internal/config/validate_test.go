package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/parley-irc/parley/internal/types"
)

func TestValidateDefaults(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Errorf("Validate(Default()) error = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "nightly channel",
			mutate: func(c *Config) { c.Updater.Channel = types.ChannelNightly },
		},
		{
			name:   "none channel",
			mutate: func(c *Config) { c.Updater.Channel = types.ChannelNone },
		},
		{
			name:    "unknown channel",
			mutate:  func(c *Config) { c.Updater.Channel = "beta" },
			wantErr: "updater.channel",
		},
		{
			name:    "missing channel",
			mutate:  func(c *Config) { c.Updater.Channel = "" },
			wantErr: "updater.channel",
		},
		{
			name:    "unsupported version",
			mutate:  func(c *Config) { c.Version = 2 },
			wantErr: "version",
		},
		{
			name:    "bad interval",
			mutate:  func(c *Config) { c.Updater.Interval = "often" },
			wantErr: "updater.interval",
		},
		{
			name:    "interval too short",
			mutate:  func(c *Config) { c.Updater.Interval = "10s" },
			wantErr: "updater.interval",
		},
		{
			name:    "bad component name",
			mutate:  func(c *Config) { c.Updater.Components = map[string]bool{"plugin foo": true} },
			wantErr: "updater.components",
		},
		{
			name:   "good component names",
			mutate: func(c *Config) { c.Updater.Components = map[string]bool{"client": false, "plugin-foo.v2": true} },
		},
		{
			name:    "relative nightly url",
			mutate:  func(c *Config) { c.Updater.NightlyURL = "nightlies/json" },
			wantErr: "updater.nightly_url",
		},
		{
			name:    "ftp service url",
			mutate:  func(c *Config) { c.Updater.ServiceURL = "ftp://updates.example.com/" },
			wantErr: "updater.service_url",
		},
		{
			name:    "owner without repo",
			mutate:  func(c *Config) { c.Updater.ReleaseRepo = "" },
			wantErr: "updater.release_repo",
		},
		{
			name:   "no release source",
			mutate: func(c *Config) { c.Updater.ReleaseOwner, c.Updater.ReleaseRepo = "", "" },
		},
		{
			name:    "missing state dir",
			mutate:  func(c *Config) { c.Paths.StateDir = "" },
			wantErr: "paths.state_dir",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "bad metrics address",
			mutate:  func(c *Config) { c.Metrics.Listen = "9464" },
			wantErr: "metrics.listen",
		},
		{
			name:   "metrics address",
			mutate: func(c *Config) { c.Metrics.Listen = ":9464" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want field %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Version = 0
	cfg.Updater.Channel = "weekly"
	cfg.Updater.Interval = "soon"
	cfg.Paths.PluginsDir = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() expected error")
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Validate() error type = %T, want ValidationErrors", err)
	}

	fields := make(map[string]bool)
	for _, e := range verrs {
		fields[e.Field] = true
	}
	for _, want := range []string{"version", "updater.channel", "updater.interval", "paths.plugins_dir"} {
		if !fields[want] {
			t.Errorf("missing error for %s in %v", want, err)
		}
	}
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "updater.channel", Message: "channel is required"}
	if got := err.Error(); got != "updater.channel: channel is required" {
		t.Errorf("Error() = %q", got)
	}

	errs := ValidationErrors{err, {Field: "log.level", Message: "bad"}}
	want := "validation errors:\n  - updater.channel: channel is required\n  - log.level: bad"
	if got := errs.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
