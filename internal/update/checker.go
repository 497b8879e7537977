package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/parley-irc/parley/internal/log"
	"github.com/parley-irc/parley/internal/types"
)

// DefaultCheckTimeout bounds a single manifest request.
const DefaultCheckTimeout = 30 * time.Second

// channelScope holds the release channel a checker follows. The channel can
// be changed while checks are running.
type channelScope struct {
	mu      sync.RWMutex
	channel types.Channel
}

// SetChannel switches to the named channel. Unknown names disable the checker.
func (s *channelScope) SetChannel(logger zerolog.Logger, name string) {
	channel, err := types.ParseChannel(name)
	if err != nil {
		logger.Warn().Err(err).Str("channel", name).Msg("Unknown channel")
	} else {
		logger.Info().Str("channel", channel.String()).Msg("Changing channel")
	}
	s.mu.Lock()
	s.channel = channel
	s.mu.Unlock()
}

// Channel returns the current channel.
func (s *channelScope) Channel() types.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.channel == "" {
		return types.ChannelNone
	}
	return s.channel
}

// getPage performs a GET and returns the body of a 200 response.
func getPage(ctx context.Context, client *http.Client, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ReleaseChecker checks the client against the latest GitHub release. It only
// runs on the stable channel and only answers for client components.
type ReleaseChecker struct {
	channelScope
	githubToken string // Optional, for rate limiting
	owner       string // Repository owner
	repo        string // Repository name
	platform    Platform
	client      *http.Client
	baseURL     string // Base URL for GitHub API (for testing)
	log         zerolog.Logger
}

// GitHubRelease represents a GitHub release response
type GitHubRelease struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	HTMLURL    string `json:"html_url"`
	Prerelease bool   `json:"prerelease"`
	Assets     []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// NewReleaseChecker creates a checker for owner/repo releases.
func NewReleaseChecker(owner, repo string) *ReleaseChecker {
	return &ReleaseChecker{
		channelScope: channelScope{channel: types.ChannelStable},
		owner:        owner,
		repo:         repo,
		platform:     Detect(),
		client: &http.Client{
			Timeout: DefaultCheckTimeout,
		},
		baseURL: "https://api.github.com",
		log:     log.WithComponent("checker").With().Str("checker", "release").Logger(),
	}
}

// WithToken sets an optional GitHub token for authentication
func (c *ReleaseChecker) WithToken(token string) *ReleaseChecker {
	c.githubToken = token
	return c
}

// WithBaseURL points the checker at a different API root.
func (c *ReleaseChecker) WithBaseURL(url string) *ReleaseChecker {
	c.baseURL = url
	return c
}

// WithPlatform overrides the platform used to pick release assets.
func (c *ReleaseChecker) WithPlatform(p Platform) *ReleaseChecker {
	c.platform = p
	return c
}

// SetChannel changes the channel the checker follows.
func (c *ReleaseChecker) SetChannel(name string) {
	c.channelScope.SetChannel(c.log, name)
}

// Name implements Checker.
func (c *ReleaseChecker) Name() string {
	return "release"
}

// CheckForUpdates implements Checker.
func (c *ReleaseChecker) CheckForUpdates(ctx context.Context, components []Component) CheckResults {
	results := make(CheckResults)

	if channel := c.Channel(); channel != types.ChannelStable {
		c.log.Debug().Str("channel", channel.String()).Msg("Channel is not stable, skipping")
		return results
	}

	var clients []Component
	for _, comp := range components {
		if comp.Kind() == types.ComponentClient {
			clients = append(clients, comp)
		}
	}
	if len(clients) == 0 {
		return results
	}
	if !c.platform.IsSupported() {
		c.log.Debug().Str("platform", c.platform.String()).Msg("Client cannot update itself on this platform, skipping")
		return results
	}

	release, err := c.getLatestRelease(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to get latest release")
		return results
	}

	latest := NewVersion(NormalizeVersion(release.TagName))
	if !latest.IsValid() {
		c.log.Warn().Str("tag", release.TagName).Msg("Latest release has an unparseable version")
		return results
	}

	assetURL := c.findAssetURL(release)
	for _, comp := range clients {
		if !latest.NewerThan(comp.Version()) {
			results.Put(NoUpdate(comp, c.Name()))
			continue
		}
		if assetURL == "" {
			c.log.Warn().Str("platform", c.platform.String()).Msg("Release has no binary for this platform")
			continue
		}
		results.Put(UpdateAvailable(comp, c.Name(), latest, release.TagName, assetURL))
	}
	return results
}

// getLatestRelease fetches the latest release from GitHub API
func (c *ReleaseChecker) getLatestRelease(ctx context.Context) (*GitHubRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, c.owner, c.repo)

	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if c.githubToken != "" {
		headers["Authorization"] = "Bearer " + c.githubToken
	}

	body, err := getPage(ctx, c.client, url, headers)
	if err != nil {
		return nil, err
	}

	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &release, nil
}

// findAssetURL returns the URL of the most preferred asset for the
// configured platform.
func (c *ReleaseChecker) findAssetURL(release *GitHubRelease) string {
	urls := make(map[string]string, len(release.Assets))
	for _, asset := range release.Assets {
		urls[asset.Name] = asset.BrowserDownloadURL
	}
	for _, name := range c.platform.AssetNames() {
		if u, ok := urls[name]; ok {
			return u
		}
	}
	return ""
}
