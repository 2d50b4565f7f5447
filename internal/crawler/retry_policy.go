package crawler

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// ExponentialRetryPolicy retries transient failures with jittered exponential
// backoff until the attempt budget is spent.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy. Non-positive arguments fall back
// to three attempts, a one second base, and a thirty second cap.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// ShouldRetry reports whether a request that has already made the given
// number of attempts gets another one. Permanent outcomes never retry.
func (p *ExponentialRetryPolicy) ShouldRetry(outcome Outcome, attempts int) bool {
	if outcome != OutcomeTransient {
		return false
	}
	return attempts < p.maxAttempts
}

// Backoff returns the delay before the Nth retry: base * 2^(n-1) capped at
// the max, plus up to 25% jitter to avoid lockstep retries.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay) + randomJitter(time.Duration(delay)/4)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
