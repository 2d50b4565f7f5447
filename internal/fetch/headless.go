package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HeadlessConfig controls the chromedp renderer.
type HeadlessConfig struct {
	NavTimeout time.Duration
	// HostQPS is the politeness floor applied per host underneath the
	// adaptive throttle; zero disables it.
	HostQPS float64
}

// HeadlessResult is the raw output of one browser render.
type HeadlessResult struct {
	StatusCode int
	Body       []byte
	FinalURL   string
}

// HeadlessRenderer drives headless Chrome through chromedp. One browser
// process is shared across the run; each render runs in a fresh tab that is
// torn down on every exit path.
type HeadlessRenderer struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	timeout         time.Duration
	hostQPS         float64
	hostLimiters    sync.Map
	logger          *zap.Logger
}

// NewHeadlessRenderer launches and warms up the browser. A failure here is a
// run-wide fatal condition, surfaced before any fetch is attempted.
func NewHeadlessRenderer(cfg HeadlessConfig, logger *zap.Logger) (*HeadlessRenderer, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &HeadlessRenderer{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		timeout:         cfg.NavTimeout,
		hostQPS:         cfg.HostQPS,
		logger:          logger,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (r *HeadlessRenderer) Close() {
	if r == nil {
		return
	}
	r.browserCancel()
	r.allocatorCancel()
}

// Render navigates to rawURL with JavaScript enabled and returns the DOM
// snapshot once the body is ready.
func (r *HeadlessRenderer) Render(ctx context.Context, rawURL, userAgent string) (HeadlessResult, error) {
	if err := r.waitHostBudget(ctx, rawURL); err != nil {
		return HeadlessResult{}, fmt.Errorf("render rate floor: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	var html string
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(userAgent),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return HeadlessResult{}, fmt.Errorf("chromedp run: %w", err)
	}

	status, finalURL := meta.snapshot(rawURL)
	return HeadlessResult{
		StatusCode: status,
		Body:       []byte(html),
		FinalURL:   finalURL,
	}, nil
}

func (r *HeadlessRenderer) waitHostBudget(ctx context.Context, rawURL string) error {
	if r.hostQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := r.hostLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(r.hostQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

// forwardCancel propagates cancellation of the caller context into the tab
// task so a run-level stop tears down an in-flight navigation.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

type responseMeta struct {
	once   sync.Once
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.once.Do(func() {
		m.status = int(resp.Response.Status)
		m.url = resp.Response.URL
	})
}

func (m *responseMeta) snapshot(fallbackURL string) (int, string) {
	status := m.status
	if status == 0 {
		status = 200
	}
	u := m.url
	if u == "" {
		u = fallbackURL
	}
	return status, u
}
