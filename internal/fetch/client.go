package fetch

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jfourny/profilescout/internal/crawler"
)

// Markers that identify pages explicitly signalling a gone profile or a
// restricted view; those are permanent regardless of HTTP status.
var defaultRestrictedMarkers = []string{
	"profile was not found",
	"this profile is not available",
	"page not found",
	"authwall",
	"access to this profile is restricted",
}

// Client is the renderer adapter handed to the coordinator. It first issues a
// cheap static probe; when the probe sees a JS shell the fetch is promoted to
// the headless browser. Error statuses are classified without paying for a
// render, and every attempt releases its browser tab on exit.
type Client struct {
	probe    *Probe
	headless *HeadlessRenderer
	detector *Heuristic
	agents   *AgentRotator
	markers  [][]byte
	logger   *zap.Logger
}

// NewClient assembles the render pipeline. probe may be nil to always go
// straight to the headless renderer.
func NewClient(probe *Probe, headless *HeadlessRenderer, detector *Heuristic, agents *AgentRotator, logger *zap.Logger) *Client {
	if agents == nil {
		agents = NewAgentRotator(nil)
	}
	if detector == nil {
		detector = NewHeuristic(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	markers := make([][]byte, 0, len(defaultRestrictedMarkers))
	for _, m := range defaultRestrictedMarkers {
		markers = append(markers, []byte(m))
	}
	return &Client{
		probe:    probe,
		headless: headless,
		detector: detector,
		agents:   agents,
		markers:  markers,
		logger:   logger,
	}
}

// Render fetches rawURL and returns the rendered result with its outcome
// classified. err is non-nil whenever the outcome is not OK.
func (c *Client) Render(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	start := time.Now()
	ua := c.agents.Next()

	if c.probe != nil {
		pr, err := c.probe.Fetch(ctx, rawURL, ua)
		if err != nil {
			return c.failTransport(rawURL, time.Since(start), err)
		}
		if pr.StatusCode != 200 {
			return c.classify(rawURL, pr.FinalURL, pr.StatusCode, pr.Body, time.Since(start), false)
		}
		if !c.detector.NeedsRender(pr.StatusCode, pr.Body) {
			return c.classify(rawURL, pr.FinalURL, pr.StatusCode, pr.Body, time.Since(start), false)
		}
		c.logger.Debug("probe promoted to headless render", zap.String("url", rawURL))
	}

	hr, err := c.headless.Render(ctx, rawURL, ua)
	if err != nil {
		return c.failTransport(rawURL, time.Since(start), err)
	}
	return c.classify(rawURL, hr.FinalURL, hr.StatusCode, hr.Body, time.Since(start), true)
}

// Close releases the underlying browser.
func (c *Client) Close() {
	if c.headless != nil {
		c.headless.Close()
	}
}

func (c *Client) failTransport(rawURL string, latency time.Duration, err error) (crawler.FetchResult, error) {
	var ferr *crawler.FetchError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		ferr = crawler.NewRenderTimeoutError(rawURL, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		ferr = crawler.NewRenderTimeoutError(rawURL, err)
	default:
		ferr = crawler.NewNavigationError(rawURL, err)
	}
	return crawler.FetchResult{
		URL:     rawURL,
		Latency: latency,
		Outcome: ferr.Outcome(),
	}, ferr
}

func (c *Client) classify(
	rawURL, finalURL string,
	status int,
	body []byte,
	latency time.Duration,
	usedHeadless bool,
) (crawler.FetchResult, error) {
	res := crawler.FetchResult{
		URL:          rawURL,
		FinalURL:     finalURL,
		StatusCode:   status,
		Body:         body,
		Latency:      latency,
		UsedHeadless: usedHeadless,
	}

	var ferr *crawler.FetchError
	switch {
	case status == 429 || status >= 500:
		ferr = crawler.NewThrottledError(rawURL, status)
	case status >= 400:
		ferr = crawler.NewPermanentStatusError(rawURL, status)
	default:
		if marker := c.restrictedMarker(body); marker != "" {
			ferr = crawler.NewRestrictedPageError(rawURL, marker)
		}
	}
	if ferr != nil {
		res.Outcome = ferr.Outcome()
		res.Body = nil
		return res, ferr
	}
	res.Outcome = crawler.OutcomeOK
	return res, nil
}

func (c *Client) restrictedMarker(body []byte) string {
	lowered := bytes.ToLower(body)
	for _, marker := range c.markers {
		if bytes.Contains(lowered, marker) {
			return strings.TrimSpace(string(marker))
		}
	}
	return ""
}
