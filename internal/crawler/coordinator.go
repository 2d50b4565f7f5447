package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jfourny/profilescout/internal/metrics"
)

// CoordinatorConfig captures the knobs that shape a single crawl run.
type CoordinatorConfig struct {
	SeedURL  string
	MaxPages int
}

// Coordinator orchestrates the crawl: it schedules fetches one at a time,
// applies throttling and retry, feeds discovered profile links back into the
// queue through the dedup gate, and emits finished records. All queue and
// counter mutation happens on the single Run loop.
type Coordinator struct {
	cfg      CoordinatorConfig
	renderer Renderer
	search   SearchParser
	profiles ProfileParser
	sink     RecordSink
	archive  Archiver
	retry    RetryPolicy
	throttle *Throttle
	visited  *VisitedSet
	clock    Clock
	pause    Pauser
	logger   *zap.Logger

	stats RunStats
	queue []CrawlRequest
}

// NewCoordinator constructs a Coordinator. archive may be nil to disable
// snapshot archival; clock and pause may be nil to use the system defaults.
func NewCoordinator(
	cfg CoordinatorConfig,
	renderer Renderer,
	search SearchParser,
	profiles ProfileParser,
	sink RecordSink,
	archive Archiver,
	retry RetryPolicy,
	throttle *Throttle,
	clock Clock,
	pause Pauser,
	logger *zap.Logger,
) *Coordinator {
	if clock == nil {
		clock = SystemClock{}
	}
	if pause == nil {
		pause = TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	return &Coordinator{
		cfg:      cfg,
		renderer: renderer,
		search:   search,
		profiles: profiles,
		sink:     sink,
		archive:  archive,
		retry:    retry,
		throttle: throttle,
		visited:  NewVisitedSet(),
		clock:    clock,
		pause:    pause,
		logger:   logger,
	}
}

// Stats exposes the live counters for the ops server.
func (c *Coordinator) Stats() *RunStats {
	return &c.stats
}

// Run executes the crawl until the queue drains or ctx is canceled, then
// returns the run summary. The loop terminates because the queue only grows
// via bounded pagination and dedup-gated profile discovery.
func (c *Coordinator) Run(ctx context.Context) (RunSummary, error) {
	runID := uuid.NewString()
	startedAt := c.clock.Now()
	c.logger.Info("run started",
		zap.String("run_id", runID),
		zap.String("seed_url", c.cfg.SeedURL),
		zap.Int("max_pages", c.cfg.MaxPages),
	)

	c.enqueue(CrawlRequest{URL: c.cfg.SeedURL, Kind: KindSearch, Page: 1})

	for ctx.Err() == nil {
		req, wait, ok := c.next()
		if !ok {
			break
		}
		if wait > 0 {
			c.pause.Pause(ctx, wait)
			continue
		}
		c.pause.Pause(ctx, c.throttle.NextDelay())
		if ctx.Err() != nil {
			break
		}
		c.process(ctx, req)
	}

	summary := c.stats.Snapshot()
	summary.RunID = runID
	summary.SeedURL = c.cfg.SeedURL
	summary.StartedAt = startedAt
	summary.FinishedAt = c.clock.Now()
	c.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.Int64("requests_issued", summary.RequestsIssued),
		zap.Int64("search_fetches", summary.SearchFetches),
		zap.Int64("profile_fetches", summary.ProfileFetches),
		zap.Int64("profiles_emitted", summary.ProfilesEmitted),
		zap.Int64("profiles_filtered", summary.ProfilesFiltered),
		zap.Int64("permanent_failures", summary.PermanentFailures),
		zap.Int64("retries", summary.Retries),
	)
	return summary, ctx.Err()
}

// next pops the eligible request with the earliest not-before time. When the
// queue is non-empty but nothing is eligible yet, it returns the wait until
// the earliest request becomes due.
func (c *Coordinator) next() (CrawlRequest, time.Duration, bool) {
	if len(c.queue) == 0 {
		return CrawlRequest{}, 0, false
	}
	best := 0
	for i := 1; i < len(c.queue); i++ {
		if c.queue[i].NotBefore.Before(c.queue[best].NotBefore) {
			best = i
		}
	}
	now := c.clock.Now()
	if wait := c.queue[best].NotBefore.Sub(now); wait > 0 {
		return CrawlRequest{}, wait, true
	}
	req := c.queue[best]
	c.queue = append(c.queue[:best], c.queue[best+1:]...)
	return req, 0, true
}

func (c *Coordinator) enqueue(req CrawlRequest) {
	c.queue = append(c.queue, req)
}

func (c *Coordinator) process(ctx context.Context, req CrawlRequest) {
	res, err := c.renderer.Render(ctx, req.URL)
	c.stats.RequestsIssued.Add(1)
	if ctx.Err() != nil {
		// The in-flight fetch was interrupted by shutdown; do not count it
		// against the request.
		return
	}
	c.throttle.Observe(res.Outcome, res.Latency)
	metrics.ObserveFetch(string(req.Kind), string(res.Outcome), res.Latency)

	switch res.Outcome {
	case OutcomeOK:
		c.handleSuccess(ctx, req, res)
	case OutcomeTransient:
		c.handleTransient(req, err)
	default:
		c.stats.PermanentFailures.Add(1)
		c.logger.Error("permanent fetch failure",
			zap.String("url", req.URL),
			zap.String("kind", string(req.Kind)),
			zap.Int("attempt", req.Attempts+1),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) handleSuccess(ctx context.Context, req CrawlRequest, res FetchResult) {
	if c.archive != nil {
		if _, err := c.archive.Archive(ctx, req.URL, res.Body); err != nil {
			c.logger.Warn("snapshot archive failed", zap.String("url", req.URL), zap.Error(err))
		}
	}
	switch req.Kind {
	case KindSearch:
		c.handleSearchPage(req, res)
	case KindProfile:
		c.handleProfilePage(ctx, req, res)
	}
}

func (c *Coordinator) handleSearchPage(req CrawlRequest, res FetchResult) {
	c.stats.SearchFetches.Add(1)
	pageURL := res.FinalURL
	if pageURL == "" {
		pageURL = req.URL
	}
	page, err := c.search.ParseSearch(res.Body, pageURL)
	if err != nil {
		c.logger.Warn("search page parse failed, pagination stops",
			zap.String("url", req.URL),
			zap.Int("page", req.Page),
			zap.Error(err),
		)
		return
	}

	enqueued := 0
	for _, u := range page.ProfileURLs {
		if c.visited.MarkIfNew(u) {
			c.enqueue(CrawlRequest{URL: u, Kind: KindProfile})
			enqueued++
		}
	}
	c.logger.Debug("search page parsed",
		zap.String("url", req.URL),
		zap.Int("page", req.Page),
		zap.Int("links", len(page.ProfileURLs)),
		zap.Int("scheduled", enqueued),
	)

	if len(page.ProfileURLs) == 0 {
		c.logger.Info("search page yielded no profiles, treating as end of results",
			zap.String("url", req.URL), zap.Int("page", req.Page))
		return
	}
	if page.NextURL == "" {
		return
	}
	if req.Page >= c.cfg.MaxPages {
		c.logger.Info("max page count reached", zap.Int("page", req.Page))
		return
	}
	c.enqueue(CrawlRequest{URL: page.NextURL, Kind: KindSearch, Page: req.Page + 1})
}

func (c *Coordinator) handleProfilePage(ctx context.Context, req CrawlRequest, res FetchResult) {
	c.stats.ProfileFetches.Add(1)
	rec, err := c.profiles.ParseProfile(res.Body, req.URL, c.clock.Now())
	if err != nil {
		c.stats.PermanentFailures.Add(1)
		metrics.ObserveProfile("extract_error")
		c.logger.Error("profile extraction failed",
			zap.String("url", req.URL),
			zap.Error(err),
		)
		return
	}
	if len(rec.Educations) == 0 {
		c.stats.ProfilesFiltered.Add(1)
		metrics.ObserveProfile("filtered")
		c.logger.Debug("profile dropped, no qualifying education", zap.String("url", req.URL))
		return
	}
	if err := c.sink.Emit(ctx, rec); err != nil {
		c.logger.Error("record emit failed", zap.String("url", req.URL), zap.Error(err))
		return
	}
	c.stats.ProfilesEmitted.Add(1)
	metrics.ObserveProfile("emitted")
	c.logger.Info("profile emitted",
		zap.String("name", rec.Name),
		zap.String("url", rec.ProfileURL),
	)
}

func (c *Coordinator) handleTransient(req CrawlRequest, err error) {
	attempts := req.Attempts + 1
	if c.retry.ShouldRetry(OutcomeTransient, attempts) {
		delay := c.retry.Backoff(attempts)
		c.stats.Retries.Add(1)
		metrics.ObserveBackoff(delay)
		c.logger.Warn("transient fetch failure, retry scheduled",
			zap.String("url", req.URL),
			zap.String("kind", string(req.Kind)),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		req.Attempts = attempts
		req.NotBefore = c.clock.Now().Add(delay)
		c.enqueue(req)
		return
	}
	c.stats.PermanentFailures.Add(1)
	if req.Kind == KindSearch {
		c.logger.Error("search page retries exhausted, pagination stops",
			zap.String("url", req.URL),
			zap.Int("page", req.Page),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return
	}
	c.logger.Error("profile retries exhausted, marked permanently failed",
		zap.String("url", req.URL),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
}
