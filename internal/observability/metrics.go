package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedAssembleLatency records how long a full feed assembly takes, by sort mode.
	FeedAssembleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quadra_feed_assemble_seconds",
		Help:    "Feed assembly latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"sort"})

	// EnrichmentDegradations counts enrichment lookups that fell back to defaults.
	EnrichmentDegradations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadra_feed_enrichment_degraded_total",
		Help: "Total number of feed enrichment lookups that degraded to defaults",
	}, []string{"field"})

	// LikeToggles counts like toggles by content kind and outcome.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadra_like_toggles_total",
		Help: "Total number of like toggles",
	}, []string{"kind", "result"})

	// StaleResponsesDiscarded counts feed responses dropped because a newer request superseded them.
	StaleResponsesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadra_feed_stale_responses_total",
		Help: "Total number of feed responses discarded as stale",
	})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadra_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// LiveSessions is the gauge of open live feed sessions.
	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quadra_live_feed_sessions",
		Help: "Number of open live feed sessions",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadra_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackAssemble returns a function that records assembly latency when called (e.g. defer).
func TrackAssemble(sort string) func() {
	start := time.Now()
	return func() {
		FeedAssembleLatency.WithLabelValues(sort).Observe(time.Since(start).Seconds())
	}
}
