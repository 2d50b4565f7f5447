package crawler

import (
	"sync"
	"time"
)

// Throttle adapts the inter-fetch delay to observed outcomes and latency.
// The delay starts at the floor, grows multiplicatively when the target
// signals load-shedding, and decays back toward the floor on success. It
// never leaves the [floor, ceiling] band.
type Throttle struct {
	mu            sync.Mutex
	floor         time.Duration
	ceiling       time.Duration
	current       time.Duration
	failureStreak int
	successStreak int
}

// Throttle growth factor applied on each transient failure, as a ratio.
const (
	throttleGrowthNum = 17
	throttleGrowthDen = 10
)

// NewThrottle creates a controller starting at the floor delay.
func NewThrottle(floor, ceiling time.Duration) *Throttle {
	if floor <= 0 {
		floor = time.Second
	}
	if ceiling < floor {
		ceiling = floor
	}
	return &Throttle{
		floor:   floor,
		ceiling: ceiling,
		current: floor,
	}
}

// NextDelay returns the delay to apply before the next fetch.
func (t *Throttle) NextDelay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Observe feeds one fetch outcome back into the controller.
func (t *Throttle) Observe(outcome Outcome, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch outcome {
	case OutcomeTransient:
		t.failureStreak++
		t.successStreak = 0
		t.current = t.clamp(t.current * throttleGrowthNum / throttleGrowthDen)
	case OutcomeOK, OutcomePermanent:
		// Permanent errors are not load-shedding signals; they relax the
		// delay the same way a success does.
		t.successStreak++
		t.failureStreak = 0
		target := t.floor
		if latency > target {
			target = latency
		}
		t.current = t.clamp((t.current + target) / 2)
	}
}

// FailureStreak reports the current run of consecutive transient failures.
func (t *Throttle) FailureStreak() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failureStreak
}

func (t *Throttle) clamp(d time.Duration) time.Duration {
	if d < t.floor {
		return t.floor
	}
	if d > t.ceiling {
		return t.ceiling
	}
	return d
}
