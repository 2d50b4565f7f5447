// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal         *prometheus.CounterVec
	fetchDurationSeconds *prometheus.HistogramVec
	backoffDelaySeconds  prometheus.Histogram
	profilesTotal        *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profilescout_fetches_total",
				Help: "Total fetch attempts, labeled by request kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "profilescout_fetch_duration_seconds",
				Help:    "Histogram of render latencies, labeled by request kind.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		)

		backoffDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "profilescout_backoff_delay_seconds",
				Help:    "Histogram of retry backoff delays.",
				Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32},
			},
		)

		profilesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "profilescout_profiles_total",
				Help: "Profile pages processed, labeled by result (emitted, filtered, extract_error).",
			},
			[]string{"result"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt.
func ObserveFetch(kind, outcome string, latency time.Duration) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(kind, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(kind).Observe(latency.Seconds())
}

// ObserveBackoff records a scheduled retry delay.
func ObserveBackoff(delay time.Duration) {
	if backoffDelaySeconds == nil {
		return
	}
	backoffDelaySeconds.Observe(delay.Seconds())
}

// ObserveProfile records the disposition of one processed profile page.
func ObserveProfile(result string) {
	if profilesTotal == nil {
		return
	}
	profilesTotal.WithLabelValues(result).Inc()
}
