package update

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/parley-irc/parley/internal/log"
	"github.com/parley-irc/parley/internal/types"
)

// DefaultNightlyURL serves the latest nightly build manifest.
const DefaultNightlyURL = "https://nightlies.parley-irc.org/json/latest"

// nightlyFileRegex splits a build file name into component name and version,
// e.g. "random-test-10.1-3-gabc1234-nightly.tar.gz".
var nightlyFileRegex = regexp.MustCompile(`^(.*?)-([^-]+(?:-[0-9]+-g[0-9a-f]+)?)-nightly\.[a-z0-9.]+$`)

// NightlyChecker compares components against the nightly build manifest. It
// only produces results while the nightly channel is selected.
type NightlyChecker struct {
	channelScope
	url    string
	client *http.Client
	log    zerolog.Logger
}

// nightlyEntry is one component in the manifest.
type nightlyEntry struct {
	Version Version `json:"version"`
	URL     string  `json:"url,omitempty"`
}

// nightlyFile is one build in the file listing form of the manifest.
type nightlyFile struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	MTime string `json:"mtime"`
	Size  int64  `json:"size"`
}

// NewNightlyChecker creates a checker reading the manifest at url.
func NewNightlyChecker(url string) *NightlyChecker {
	if url == "" {
		url = DefaultNightlyURL
	}
	return &NightlyChecker{
		url: strings.TrimRight(url, "/"),
		client: &http.Client{
			Timeout: DefaultCheckTimeout,
		},
		log: log.WithComponent("checker").With().Str("checker", "nightly").Logger(),
	}
}

// WithHTTPClient replaces the HTTP client used to fetch the manifest.
func (c *NightlyChecker) WithHTTPClient(client *http.Client) *NightlyChecker {
	c.client = client
	return c
}

// SetChannel changes the channel the checker follows.
func (c *NightlyChecker) SetChannel(name string) {
	c.channelScope.SetChannel(c.log, name)
}

// Name implements Checker.
func (c *NightlyChecker) Name() string {
	return "nightly"
}

// CheckForUpdates implements Checker.
func (c *NightlyChecker) CheckForUpdates(ctx context.Context, components []Component) CheckResults {
	results := make(CheckResults)

	if channel := c.Channel(); channel != types.ChannelNightly {
		c.log.Debug().Str("channel", channel.String()).Msg("Channel is not nightly, skipping")
		return results
	}

	c.log.Info().Msg("Retrieving latest versions")
	body, err := getPage(ctx, c.client, c.url, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("Error when getting update page")
		return results
	}

	manifest, err := parseNightlyManifest(body, c.url)
	if err != nil {
		c.log.Warn().Err(err).Msg("Malformed nightly manifest")
		return results
	}

	for _, comp := range components {
		entry, ok := manifest[comp.Name()]
		if !ok {
			continue
		}
		if !entry.Version.IsValid() {
			c.log.Warn().Str("component", comp.Name()).Str("version", entry.Version.String()).
				Msg("Ignoring manifest entry with invalid version")
			continue
		}
		// only newer builds are reported
		if entry.Version.NewerThan(comp.Version()) {
			results.Put(UpdateAvailable(comp, c.Name(), entry.Version, "", entry.URL))
		}
	}
	return results
}

// parseNightlyManifest accepts either an object keyed by component name or
// the list of build files published by the nightly server.
func parseNightlyManifest(body []byte, base string) (map[string]nightlyEntry, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty manifest")
	}

	switch trimmed[0] {
	case '{':
		var entries map[string]nightlyEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		for name, entry := range entries {
			if entry.URL == "" {
				entry.URL = base + "/" + name
				entries[name] = entry
			}
		}
		return entries, nil

	case '[':
		var files []*nightlyFile
		if err := json.Unmarshal(trimmed, &files); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		entries := make(map[string]nightlyEntry, len(files))
		for _, f := range files {
			// broken listings contain null entries
			if f == nil {
				continue
			}
			m := nightlyFileRegex.FindStringSubmatch(f.Name)
			if m == nil {
				continue
			}
			entry := nightlyEntry{Version: NewVersion(m[2]), URL: base + "/" + f.Name}
			if existing, ok := entries[m[1]]; ok && !entry.Version.NewerThan(existing.Version) {
				continue
			}
			entries[m[1]] = entry
		}
		return entries, nil

	default:
		return nil, errors.New("manifest is neither a JSON object nor a JSON array")
	}
}
