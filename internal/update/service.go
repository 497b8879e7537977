package update

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/parley-irc/parley/internal/log"
	"github.com/parley-irc/parley/internal/types"
)

// DefaultServiceURL is the update service queried on release channels.
const DefaultServiceURL = "https://updates.parley-irc.org/"

// ServiceChecker asks the update service about every component in one
// request. It answers on the stable and unstable channels.
//
// The request is a form post with a single data field of the form
// "name,CHANNEL,version;" repeated per component. The service replies with
// one line per component:
//
//	outofdate <name> <channel> <version> <friendly version> <url>
//	uptodate <channel> <name>
//	error <message...>
type ServiceChecker struct {
	channelScope
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewServiceChecker creates a checker posting to url.
func NewServiceChecker(url string) *ServiceChecker {
	if url == "" {
		url = DefaultServiceURL
	}
	return &ServiceChecker{
		channelScope: channelScope{channel: types.ChannelStable},
		url:          url,
		client: &http.Client{
			Timeout: DefaultCheckTimeout,
		},
		log: log.WithComponent("checker").With().Str("checker", "service").Logger(),
	}
}

// WithHTTPClient replaces the HTTP client used to reach the service.
func (c *ServiceChecker) WithHTTPClient(client *http.Client) *ServiceChecker {
	c.client = client
	return c
}

// SetChannel changes the channel the checker follows.
func (c *ServiceChecker) SetChannel(name string) {
	c.channelScope.SetChannel(c.log, name)
}

// Name implements Checker.
func (c *ServiceChecker) Name() string {
	return "service"
}

// CheckForUpdates implements Checker.
func (c *ServiceChecker) CheckForUpdates(ctx context.Context, components []Component) CheckResults {
	results := make(CheckResults)

	channel := c.Channel()
	if !channel.IsRelease() {
		c.log.Debug().Str("channel", channel.String()).Msg("Channel is not a release channel, skipping")
		return results
	}
	if len(components) == 0 {
		return results
	}

	byName := make(map[string]Component, len(components))
	for _, comp := range components {
		byName[comp.Name()] = comp
	}

	payload := buildServicePayload(channel, components)
	c.log.Debug().Str("payload", payload).Msg("Constructed update payload")

	body, err := c.post(ctx, payload)
	if err != nil {
		c.log.Warn().Err(err).Msg("Error when checking for updates")
		return results
	}

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		comp := byName[serviceLineComponent(line)]
		if comp == nil {
			c.log.Warn().Str("line", line).Msg("Unable to extract component from line")
			continue
		}
		if result, ok := c.parseLine(comp, line); ok {
			results.Put(result)
		}
	}
	if err := scanner.Err(); err != nil {
		c.log.Warn().Err(err).Msg("Error reading update response")
	}

	return results
}

func (c *ServiceChecker) post(ctx context.Context, payload string) ([]byte, error) {
	form := url.Values{"data": {payload}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", c.url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *ServiceChecker) parseLine(comp Component, line string) (CheckResult, bool) {
	parts := strings.Fields(line)
	switch parts[0] {
	case "outofdate":
		if len(parts) < 6 {
			c.log.Error().Str("line", line).Msg("Truncated outofdate line")
			return CheckResult{}, false
		}
		if _, err := url.ParseRequestURI(parts[5]); err != nil {
			c.log.Error().Err(err).Str("line", line).Msg("Unable to construct URL for update")
			return CheckResult{}, false
		}
		return UpdateAvailable(comp, c.Name(), NewVersion(parts[3]), parts[4], parts[5]), true
	case "uptodate":
		return NoUpdate(comp, c.Name()), true
	case "error":
		c.log.Warn().Str("line", line).Msg("Error received from update server")
	default:
		c.log.Error().Str("line", line).Msg("Unknown update line received from server")
	}
	return CheckResult{}, false
}

func buildServicePayload(channel types.Channel, components []Component) string {
	var b strings.Builder
	for _, comp := range components {
		fmt.Fprintf(&b, "%s,%s,%s;", comp.Name(), channel.Upper(), comp.Version())
	}
	return b.String()
}

// serviceLineComponent extracts the component name a reply line refers to.
func serviceLineComponent(line string) string {
	parts := strings.Fields(line)
	if len(parts) >= 2 && parts[0] == "outofdate" {
		return parts[1]
	}
	if len(parts) >= 3 {
		return parts[2]
	}
	return ""
}
