package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

// componentNamePattern validates keys of updater.components.
var componentNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the config for required fields and valid values.
// All errors are reported together as ValidationErrors.
func Validate(c *Config) error {
	var errs ValidationErrors

	if c.Version != CurrentVersion {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (expected %d)", c.Version, CurrentVersion),
		})
	}

	errs = append(errs, validateUpdater(c.Updater)...)
	errs = append(errs, validatePaths(c.Paths)...)

	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "debug", "info", "warn", "warning", "error":
		default:
			errs = append(errs, ValidationError{
				Field:   "log.level",
				Message: fmt.Sprintf("invalid level '%s' (must be debug, info, warn, or error)", c.Log.Level),
			})
		}
	}

	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics.listen",
				Message: fmt.Sprintf("invalid address '%s' (expected host:port)", c.Metrics.Listen),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateUpdater(u UpdaterConfig) []ValidationError {
	var errs []ValidationError

	if err := u.Channel.Validate(); err != nil {
		errs = append(errs, ValidationError{Field: "updater.channel", Message: err.Error()})
	}

	if u.Interval != "" {
		d, err := time.ParseDuration(u.Interval)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "updater.interval",
				Message: fmt.Sprintf("invalid duration '%s'", u.Interval),
			})
		} else if d < time.Minute {
			errs = append(errs, ValidationError{
				Field:   "updater.interval",
				Message: "must be at least 1m",
			})
		}
	}

	names := make([]string, 0, len(u.Components))
	for name := range u.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !componentNamePattern.MatchString(name) {
			errs = append(errs, ValidationError{
				Field:   "updater.components",
				Message: fmt.Sprintf("invalid component name '%s'", name),
			})
		}
	}

	for field, raw := range map[string]string{
		"updater.nightly_url": u.NightlyURL,
		"updater.service_url": u.ServiceURL,
	} {
		if raw == "" {
			continue
		}
		if parsed, err := url.ParseRequestURI(raw); err != nil || parsed.Host == "" ||
			(parsed.Scheme != "http" && parsed.Scheme != "https") {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid URL '%s' (must be http or https)", raw),
			})
		}
	}

	if (u.ReleaseOwner == "") != (u.ReleaseRepo == "") {
		errs = append(errs, ValidationError{
			Field:   "updater.release_repo",
			Message: "release_owner and release_repo must be set together",
		})
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func validatePaths(p PathsConfig) []ValidationError {
	var errs []ValidationError
	for _, f := range []struct {
		field string
		value string
	}{
		{"paths.plugins_dir", p.PluginsDir},
		{"paths.state_dir", p.StateDir},
		{"paths.download_dir", p.DownloadDir},
	} {
		if f.value == "" {
			errs = append(errs, ValidationError{Field: f.field, Message: "path is required"})
		}
	}
	return errs
}
