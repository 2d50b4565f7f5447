package crawler

import (
	"context"
	"sync"
	"time"
)

// VisitedSet tracks profile URLs that have already been scheduled. It is
// consulted at enqueue time, before a URL enters the queue, so the same
// profile discovered on two search pages cannot be double-scheduled. The set
// never shrinks within a run.
type VisitedSet struct {
	seen sync.Map
}

// NewVisitedSet creates an empty set scoped to one crawl run.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (v *VisitedSet) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	_, loaded := v.seen.LoadOrStore(url, struct{}{})
	return !loaded
}

// TimerPauser waits on a real timer, returning early on context cancellation.
type TimerPauser struct{}

// Pause blocks for delay or until ctx finishes.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// SystemClock implements Clock using time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
