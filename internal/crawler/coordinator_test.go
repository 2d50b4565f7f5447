package crawler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfourny/profilescout/internal/crawler"
)

const (
	searchPage1 = "https://example.com/search?page=1"
	searchPage2 = "https://example.com/search?page=2"
	profileA    = "https://example.com/in/alice"
	profileB    = "https://example.com/in/bob"
	profileC    = "https://example.com/in/carol"
)

// fakeClock advances only when the paired pauser sleeps, so scheduled retries
// become due deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type instantPauser struct {
	clock  *fakeClock
	pauses []time.Duration
}

func (p *instantPauser) Pause(_ context.Context, delay time.Duration) {
	p.pauses = append(p.pauses, delay)
	if delay > 0 {
		p.clock.advance(delay)
	}
}

type renderStep struct {
	res crawler.FetchResult
	err error
}

// scriptedRenderer replays canned results per URL, in order.
type scriptedRenderer struct {
	steps map[string][]renderStep
	calls map[string]int
}

func newScriptedRenderer() *scriptedRenderer {
	return &scriptedRenderer{
		steps: make(map[string][]renderStep),
		calls: make(map[string]int),
	}
}

func (r *scriptedRenderer) on(url string, steps ...renderStep) {
	r.steps[url] = append(r.steps[url], steps...)
}

func (r *scriptedRenderer) Render(_ context.Context, rawURL string) (crawler.FetchResult, error) {
	r.calls[rawURL]++
	queue := r.steps[rawURL]
	if len(queue) == 0 {
		return crawler.FetchResult{URL: rawURL, Outcome: crawler.OutcomePermanent},
			crawler.NewPermanentStatusError(rawURL, 404)
	}
	step := queue[0]
	if len(queue) > 1 {
		r.steps[rawURL] = queue[1:]
	}
	return step.res, step.err
}

func okStep(url string, body string) renderStep {
	return renderStep{res: crawler.FetchResult{
		URL:        url,
		FinalURL:   url,
		StatusCode: 200,
		Body:       []byte(body),
		Latency:    50 * time.Millisecond,
		Outcome:    crawler.OutcomeOK,
	}}
}

func transientStep(url string) renderStep {
	ferr := crawler.NewThrottledError(url, 429)
	return renderStep{
		res: crawler.FetchResult{URL: url, StatusCode: 429, Outcome: crawler.OutcomeTransient},
		err: ferr,
	}
}

// mapSearchParser resolves search pages by the body the renderer returned.
type mapSearchParser struct {
	pages map[string]crawler.SearchPage
}

func (p *mapSearchParser) ParseSearch(body []byte, _ string) (crawler.SearchPage, error) {
	page, ok := p.pages[string(body)]
	if !ok {
		return crawler.SearchPage{}, errors.New("unexpected search body")
	}
	return page, nil
}

// mapProfileParser resolves profile records by URL; URLs absent from the map
// yield a record with no qualifying educations.
type mapProfileParser struct {
	qualified map[string]bool
	failures  map[string]error
}

func (p *mapProfileParser) ParseProfile(_ []byte, profileURL string, scrapedAt time.Time) (crawler.ProfileRecord, error) {
	if err := p.failures[profileURL]; err != nil {
		return crawler.ProfileRecord{}, err
	}
	rec := crawler.ProfileRecord{
		Name:       "Test Person",
		ProfileURL: profileURL,
		Skills:     []string{},
		ScrapedAt:  scrapedAt,
	}
	if p.qualified[profileURL] {
		rec.Educations = []crawler.Education{{Institution: "Université de Paris", Field: "Computer Science"}}
	}
	return rec, nil
}

type captureSink struct {
	records []crawler.ProfileRecord
	err     error
}

func (s *captureSink) Emit(_ context.Context, rec crawler.ProfileRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type captureArchiver struct {
	urls []string
}

func (a *captureArchiver) Archive(_ context.Context, rawURL string, _ []byte) (string, error) {
	a.urls = append(a.urls, rawURL)
	return "pages/" + rawURL, nil
}

func newTestCoordinator(
	t *testing.T,
	cfg crawler.CoordinatorConfig,
	renderer crawler.Renderer,
	search crawler.SearchParser,
	profiles crawler.ProfileParser,
	sink crawler.RecordSink,
	archive crawler.Archiver,
) *crawler.Coordinator {
	t.Helper()
	clock := newFakeClock()
	return crawler.NewCoordinator(
		cfg,
		renderer,
		search,
		profiles,
		sink,
		archive,
		crawler.NewExponentialRetryPolicy(3, time.Millisecond, 8*time.Millisecond),
		crawler.NewThrottle(time.Millisecond, 10*time.Millisecond),
		clock,
		&instantPauser{clock: clock},
		nil,
	)
}

func TestRunCrawlsSearchAndProfiles(t *testing.T) {
	renderer := newScriptedRenderer()
	renderer.on(searchPage1, okStep(searchPage1, "search1"))
	renderer.on(searchPage2, okStep(searchPage2, "search2"))
	renderer.on(profileA, okStep(profileA, "profileA"))
	renderer.on(profileB, okStep(profileB, "profileB"))
	renderer.on(profileC,
		transientStep(profileC),
		transientStep(profileC),
		transientStep(profileC),
	)

	search := &mapSearchParser{pages: map[string]crawler.SearchPage{
		"search1": {ProfileURLs: []string{profileA, profileB}, NextURL: searchPage2},
		// profileB repeats on page two; the dedup gate must drop it.
		"search2": {ProfileURLs: []string{profileB, profileC}},
	}}
	profiles := &mapProfileParser{qualified: map[string]bool{profileA: true}}
	sink := &captureSink{}
	archive := &captureArchiver{}

	coord := newTestCoordinator(t, crawler.CoordinatorConfig{SeedURL: searchPage1, MaxPages: 10},
		renderer, search, profiles, sink, archive)

	summary, err := coord.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(7), summary.RequestsIssued, "2 searches + 2 profiles + 3 attempts on the failing one")
	assert.Equal(t, int64(2), summary.SearchFetches)
	assert.Equal(t, int64(2), summary.ProfileFetches)
	assert.Equal(t, int64(1), summary.ProfilesEmitted)
	assert.Equal(t, int64(1), summary.ProfilesFiltered)
	assert.Equal(t, int64(2), summary.Retries)
	assert.Equal(t, int64(1), summary.PermanentFailures)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, searchPage1, summary.SeedURL)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	require.Len(t, sink.records, 1)
	assert.Equal(t, profileA, sink.records[0].ProfileURL)

	assert.Equal(t, 1, renderer.calls[profileB], "duplicate discovery must not refetch")
	assert.Equal(t, 3, renderer.calls[profileC], "three attempts total, then give up")

	// Only successful fetches are archived.
	assert.ElementsMatch(t, []string{searchPage1, searchPage2, profileA, profileB}, archive.urls)
}

func TestRunTwoPageWalkEmitsOnlyQualifyingProfiles(t *testing.T) {
	profileD := "https://example.com/in/dave"

	renderer := newScriptedRenderer()
	renderer.on(searchPage1, okStep(searchPage1, "search1"))
	renderer.on(searchPage2, okStep(searchPage2, "search2"))
	for _, u := range []string{profileA, profileB, profileC, profileD} {
		renderer.on(u, okStep(u, u))
	}

	search := &mapSearchParser{pages: map[string]crawler.SearchPage{
		"search1": {ProfileURLs: []string{profileA, profileB, profileC}, NextURL: searchPage2},
		"search2": {ProfileURLs: []string{profileD}},
	}}
	profiles := &mapProfileParser{qualified: map[string]bool{profileA: true, profileD: true}}
	sink := &captureSink{}

	coord := newTestCoordinator(t, crawler.CoordinatorConfig{SeedURL: searchPage1, MaxPages: 10},
		renderer, search, profiles, sink, nil)

	summary, err := coord.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.SearchFetches)
	assert.Equal(t, int64(4), summary.ProfileFetches)
	assert.Equal(t, int64(2), summary.ProfilesEmitted)
	assert.Equal(t, int64(2), summary.ProfilesFiltered)
	assert.Zero(t, summary.PermanentFailures)
	require.Len(t, sink.records, 2)
}

func TestRunStopsPaginationAtMaxPages(t *testing.T) {
	renderer := newScriptedRenderer()
	renderer.on(searchPage1, okStep(searchPage1, "page"))
	renderer.on(searchPage2, okStep(searchPage2, "page"))
	renderer.on(profileA, okStep(profileA, "profileA"))

	// Every page advertises a next page; the page budget must stop the walk.
	search := &mapSearchParser{pages: map[string]crawler.SearchPage{
		"page": {ProfileURLs: []string{profileA}, NextURL: searchPage2},
	}}
	sink := &captureSink{}

	coord := newTestCoordinator(t, crawler.CoordinatorConfig{SeedURL: searchPage1, MaxPages: 2},
		renderer, search, &mapProfileParser{}, sink, nil)

	summary, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.SearchFetches)
}

func TestRunSurvivesSelfPointingNextURL(t *testing.T) {
	renderer := newScriptedRenderer()
	renderer.on(searchPage1,
		okStep(searchPage1, "page"),
		okStep(searchPage1, "page"),
		okStep(searchPage1, "page"),
	)
	renderer.on(profileA, okStep(profileA, "profileA"))

	// A page that links to itself must terminate via the page budget, not spin.
	search := &mapSearchParser{pages: map[string]crawler.SearchPage{
		"page": {ProfileURLs: []string{profileA}, NextURL: searchPage1},
	}}

	coord := newTestCoordinator(t, crawler.CoordinatorConfig{SeedURL: searchPage1, MaxPages: 3},
		renderer, search, &mapProfileParser{}, &captureSink{}, nil)

	summary, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.SearchFetches)
}

func TestRunRetriesSearchPageThenResumes(t *testing.T) {
	renderer := newScriptedRenderer()
	renderer.on(searchPage1,
		transientStep(searchPage1),
		okStep(searchPage1, "page"),
	)
	renderer.on(profileA, okStep(profileA, "profileA"))

	search := &mapSearchParser{pages: map[string]crawler.SearchPage{
		"page": {ProfileURLs: []string{profileA}},
	}}
	profiles := &mapProfileParser{qualified: map[string]bool{profileA: true}}
	sink := &captureSink{}

	coord := newTestCoordinator(t, crawler.CoordinatorConfig{SeedURL: searchPage1, MaxPages: 1},
		renderer, search, profiles, sink, nil)

	summary, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.SearchFetches)
	assert.Equal(t, int64(1), summary.Retries)
	assert.Equal(t, int64(1), summary.ProfilesEmitted)
	assert.Zero(t, summary.PermanentFailures)
}

func TestRunCountsExtractionFailureAsPermanent(t *testing.T) {
	renderer := newScriptedRenderer()
	renderer.on(searchPage1, okStep(searchPage1, "page"))
	renderer.on(profileA, okStep(profileA, "profileA"))

	search := &mapSearchParser{pages: map[string]crawler.SearchPage{
		"page": {ProfileURLs: []string{profileA}},
	}}
	profiles := &mapProfileParser{failures: map[string]error{
		profileA: &crawler.ExtractionError{URL: profileA, Field: "name"},
	}}
	sink := &captureSink{}

	coord := newTestCoordinator(t, crawler.CoordinatorConfig{SeedURL: searchPage1, MaxPages: 1},
		renderer, search, profiles, sink, nil)

	summary, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.PermanentFailures)
	assert.Zero(t, summary.ProfilesEmitted)
	assert.Zero(t, summary.ProfilesFiltered)
	assert.Empty(t, sink.records)
}

func TestRunContinuesWhenSinkFails(t *testing.T) {
	renderer := newScriptedRenderer()
	renderer.on(searchPage1, okStep(searchPage1, "page"))
	renderer.on(profileA, okStep(profileA, "profileA"))
	renderer.on(profileB, okStep(profileB, "profileB"))

	search := &mapSearchParser{pages: map[string]crawler.SearchPage{
		"page": {ProfileURLs: []string{profileA, profileB}},
	}}
	profiles := &mapProfileParser{qualified: map[string]bool{profileA: true, profileB: true}}
	sink := &captureSink{err: errors.New("disk full")}

	coord := newTestCoordinator(t, crawler.CoordinatorConfig{SeedURL: searchPage1, MaxPages: 1},
		renderer, search, profiles, sink, nil)

	summary, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.ProfileFetches, "an emit failure must not abort the run")
	assert.Zero(t, summary.ProfilesEmitted)
}

func TestRunReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	renderer := newScriptedRenderer()
	renderer.on(searchPage1, okStep(searchPage1, "page"))

	coord := newTestCoordinator(t, crawler.CoordinatorConfig{SeedURL: searchPage1, MaxPages: 1},
		renderer, &mapSearchParser{}, &mapProfileParser{}, &captureSink{}, nil)

	summary, err := coord.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.RequestsIssued, "nothing runs under a canceled context")
}

func TestStatsSnapshotReadableDuringRun(t *testing.T) {
	renderer := newScriptedRenderer()
	renderer.on(searchPage1, okStep(searchPage1, "page"))

	search := &mapSearchParser{pages: map[string]crawler.SearchPage{
		"page": {},
	}}

	coord := newTestCoordinator(t, crawler.CoordinatorConfig{SeedURL: searchPage1, MaxPages: 1},
		renderer, search, &mapProfileParser{}, &captureSink{}, nil)

	stats := coord.Stats()
	require.NotNil(t, stats)
	assert.Zero(t, stats.Snapshot().RequestsIssued)

	_, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Snapshot().RequestsIssued)
}
