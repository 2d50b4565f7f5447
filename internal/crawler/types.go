// Package crawler defines core types shared across subsystems.
package crawler

import (
	"sync/atomic"
	"time"
)

// RequestKind distinguishes search-result pages from profile pages.
type RequestKind string

// Request kinds handled by the coordinator.
const (
	KindSearch  RequestKind = "search"
	KindProfile RequestKind = "profile"
)

// Outcome classifies a fetch attempt.
type Outcome string

// Fetch outcomes.
const (
	OutcomeOK        Outcome = "ok"
	OutcomeTransient Outcome = "transient"
	OutcomePermanent Outcome = "permanent"
)

// CrawlRequest is one unit of work in the coordinator queue. A request is
// created when a URL is first scheduled and destroyed on terminal success or
// give-up; retries re-enqueue the same request with a bumped attempt count.
type CrawlRequest struct {
	URL       string
	Kind      RequestKind
	Attempts  int
	NotBefore time.Time
	// Page is the 1-based search page index; zero for profile requests.
	Page int
}

// FetchResult is the rendered output of a single fetch attempt.
type FetchResult struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Body         []byte
	Latency      time.Duration
	Outcome      Outcome
	UsedHeadless bool
}

// Education is one qualifying education entry on a profile.
type Education struct {
	Institution string `json:"institution"`
	Field       string `json:"field"`
	Years       string `json:"years,omitempty"`
}

// ProfileRecord is the structured record emitted for each qualifying profile.
// ProfileURL uniquely identifies a record; at most one record is emitted per
// profile URL per run.
type ProfileRecord struct {
	Name            string      `json:"name"`
	Headline        string      `json:"headline"`
	Location        string      `json:"location"`
	CurrentPosition string      `json:"current_position"`
	Educations      []Education `json:"educations_in_france"`
	Skills          []string    `json:"skills"`
	ProfileURL      string      `json:"profile_url"`
	ScrapedAt       time.Time   `json:"scraped_at"`
}

// SearchPage is the parsed form of one search-results page.
type SearchPage struct {
	ProfileURLs []string
	NextURL     string
}

// RunStats tracks run-level counters. Counters are written by the single
// coordinator loop and read concurrently by the ops server.
type RunStats struct {
	RequestsIssued    atomic.Int64
	SearchFetches     atomic.Int64
	ProfileFetches    atomic.Int64
	ProfilesEmitted   atomic.Int64
	ProfilesFiltered  atomic.Int64
	PermanentFailures atomic.Int64
	Retries           atomic.Int64
}

// RunSummary is an immutable snapshot of RunStats plus run metadata.
type RunSummary struct {
	RunID             string    `json:"run_id"`
	SeedURL           string    `json:"seed_url"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at,omitzero"`
	RequestsIssued    int64     `json:"requests_issued"`
	SearchFetches     int64     `json:"search_fetches"`
	ProfileFetches    int64     `json:"profile_fetches"`
	ProfilesEmitted   int64     `json:"profiles_emitted"`
	ProfilesFiltered  int64     `json:"profiles_filtered"`
	PermanentFailures int64     `json:"permanent_failures"`
	Retries           int64     `json:"retries"`
}

// Snapshot copies the live counters into a RunSummary.
func (s *RunStats) Snapshot() RunSummary {
	return RunSummary{
		RequestsIssued:    s.RequestsIssued.Load(),
		SearchFetches:     s.SearchFetches.Load(),
		ProfileFetches:    s.ProfileFetches.Load(),
		ProfilesEmitted:   s.ProfilesEmitted.Load(),
		ProfilesFiltered:  s.ProfilesFiltered.Load(),
		PermanentFailures: s.PermanentFailures.Load(),
		Retries:           s.Retries.Load(),
	}
}
