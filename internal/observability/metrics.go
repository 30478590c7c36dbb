package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesTotal counts applied votes by subject type and transition
	// (cast, flip, retract).
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_votes_total",
		Help: "Total number of applied votes by subject type and transition",
	}, []string{"subject_type", "transition"})

	// VoteConflicts counts write conflicts seen by the vote ledger, including
	// ones that were resolved by a retry.
	VoteConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_vote_conflicts_total",
		Help: "Total number of vote write conflicts",
	}, []string{"subject_type"})

	// VoteRetries counts automatic vote retries.
	VoteRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_vote_retries_total",
		Help: "Total number of automatic vote retries after a write conflict",
	})

	// RankDuration records time spent ranking a snapshot by policy.
	RankDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_rank_duration_seconds",
		Help:    "Time spent ranking a subject snapshot",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	}, []string{"policy"})

	// FeedCacheResults counts feed snapshot cache lookups by result (hit, miss, bypass).
	FeedCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_feed_cache_results_total",
		Help: "Feed snapshot cache lookups by result",
	}, []string{"result"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObserveRank records how long ranking took for policy.
func ObserveRank(policy string, start time.Time) {
	RankDuration.WithLabelValues(policy).Observe(time.Since(start).Seconds())
}
