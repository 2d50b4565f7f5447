package crawler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfourny/profilescout/internal/crawler"
)

func TestShouldRetry(t *testing.T) {
	p := crawler.NewExponentialRetryPolicy(3, time.Second, 30*time.Second)

	t.Run("TransientWithinBudget", func(t *testing.T) {
		assert.True(t, p.ShouldRetry(crawler.OutcomeTransient, 1))
		assert.True(t, p.ShouldRetry(crawler.OutcomeTransient, 2))
	})

	t.Run("BudgetExhausted", func(t *testing.T) {
		assert.False(t, p.ShouldRetry(crawler.OutcomeTransient, 3))
		assert.False(t, p.ShouldRetry(crawler.OutcomeTransient, 4))
	})

	t.Run("PermanentNeverRetries", func(t *testing.T) {
		assert.False(t, p.ShouldRetry(crawler.OutcomePermanent, 1))
		assert.False(t, p.ShouldRetry(crawler.OutcomeOK, 1))
	})
}

func TestBackoffDoublesPerAttempt(t *testing.T) {
	p := crawler.NewExponentialRetryPolicy(5, time.Second, 30*time.Second)

	for attempt, base := range map[int]time.Duration{
		1: 1 * time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
	} {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, base, "attempt %d", attempt)
		// Jitter adds at most a quarter of the base delay.
		require.Less(t, d, base+base/4+time.Millisecond, "attempt %d", attempt)
	}
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	p := crawler.NewExponentialRetryPolicy(10, time.Second, 4*time.Second)

	d := p.Backoff(9)
	assert.GreaterOrEqual(t, d, 4*time.Second)
	assert.Less(t, d, 5*time.Second+time.Millisecond)
}

func TestPolicyDefaults(t *testing.T) {
	p := crawler.NewExponentialRetryPolicy(0, 0, 0)
	assert.True(t, p.ShouldRetry(crawler.OutcomeTransient, 2))
	assert.False(t, p.ShouldRetry(crawler.OutcomeTransient, 3))
	assert.GreaterOrEqual(t, p.Backoff(1), time.Second)
}
