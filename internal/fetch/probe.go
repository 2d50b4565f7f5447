package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// ProbeConfig controls the static probe fetcher.
type ProbeConfig struct {
	Timeout time.Duration
}

// ProbeResult is the raw output of a static fetch. Non-2xx statuses are
// reported here rather than as errors so the caller can classify them.
type ProbeResult struct {
	StatusCode int
	Body       []byte
	FinalURL   string
	Latency    time.Duration
}

// Probe issues cheap static HTTP fetches via Colly, used to classify error
// pages and detect JS shells before paying for a browser render.
type Probe struct {
	cfg  ProbeConfig
	base *colly.Collector
}

// NewProbe builds a Probe.
func NewProbe(cfg ProbeConfig) *Probe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	// colly v2.1.0's Async option ignores its argument and always enables
	// async mode; rely on the synchronous default instead.
	c := colly.NewCollector()
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Probe{cfg: cfg, base: c}
}

// Fetch executes a single GET. A non-nil error means no HTTP response was
// obtained at all (DNS failure, connection refused, timeout).
func (p *Probe) Fetch(ctx context.Context, rawURL, userAgent string) (ProbeResult, error) {
	collector := p.base.Clone()
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.UserAgent = userAgent
	collector.SetRequestTimeout(p.cfg.Timeout)

	var (
		result   ProbeResult
		gotResp  bool
		fetchErr error
	)
	start := time.Now()

	record := func(r *colly.Response) {
		result = ProbeResult{
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			FinalURL:   r.Request.URL.String(),
			Latency:    time.Since(start),
		}
		gotResp = r.StatusCode != 0
	}
	collector.OnResponse(record)
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			record(r)
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return ProbeResult{Latency: time.Since(start)}, fmt.Errorf("probe fetch canceled: %w", ctx.Err())
	case err := <-done:
		if gotResp {
			// A status code was obtained; classification happens upstream
			// even when Colly flags the status as an error.
			return result, nil
		}
		if fetchErr != nil {
			return ProbeResult{Latency: time.Since(start)}, fmt.Errorf("probe fetch: %w", fetchErr)
		}
		if err != nil {
			return ProbeResult{Latency: time.Since(start)}, fmt.Errorf("probe visit: %w", err)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
