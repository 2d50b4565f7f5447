package crawler

import (
	"context"
	"time"
)

// Renderer turns a URL into fully rendered HTML. Implementations own the
// browser session and must release it on every exit path. The returned
// FetchResult always carries an Outcome; err is non-nil whenever the outcome
// is not OutcomeOK.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (FetchResult, error)
}

// SearchParser extracts profile links and the next-page link from a rendered
// search-results page.
type SearchParser interface {
	ParseSearch(body []byte, pageURL string) (SearchPage, error)
}

// ProfileParser builds a ProfileRecord from rendered profile HTML. Education
// entries not matching the configured country and field keywords are dropped
// during parsing; callers decide what to do with a record left with none.
type ProfileParser interface {
	ParseProfile(body []byte, profileURL string, scrapedAt time.Time) (ProfileRecord, error)
}

// RecordSink consumes emitted profile records.
type RecordSink interface {
	Emit(ctx context.Context, rec ProfileRecord) error
}

// Archiver persists raw rendered HTML snapshots for later reprocessing.
type Archiver interface {
	Archive(ctx context.Context, rawURL string, body []byte) (string, error)
}

// RetryPolicy decides whether a transient failure is retried and how long to
// wait before the next attempt.
type RetryPolicy interface {
	ShouldRetry(outcome Outcome, attempts int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Pauser abstracts how the coordinator waits between fetches so tests can
// inject an instant fake.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}
