// Package observability holds the Prometheus metrics exported at /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorsTotal counts Redis errors by command name.
	RedisErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadkit_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// PageLockWaitSeconds records time spent acquiring the per-page advisory
	// lock before a tree mutation.
	PageLockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "threadkit_page_lock_wait_seconds",
		Help:    "Time spent acquiring the per-page advisory lock",
		Buckets: prometheus.DefBuckets,
	})

	// PageLockExhaustedTotal counts lock-acquisition timeouts that surface to
	// callers as an Unavailable error.
	PageLockExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "threadkit_page_lock_exhausted_total",
		Help: "Total number of page lock acquisitions that exhausted retries",
	})

	// VoteTransitionsTotal counts vote state-machine transitions by final state.
	VoteTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadkit_vote_transitions_total",
		Help: "Total vote transitions by final vote state",
	}, []string{"final"})

	// WebSocketConnectionsActive is the gauge of currently open WS connections.
	WebSocketConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "threadkit_websocket_connections_active",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDropsTotal counts messages dropped by a slow
	// consumer's bounded broadcast channel.
	WebSocketBackpressureDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadkit_websocket_backpressure_drops_total",
		Help: "Total WebSocket messages dropped due to backpressure",
	}, []string{"page_id"})

	// BatcherFlushLatencySeconds records the duration of one batcher flush
	// cycle.
	BatcherFlushLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "threadkit_batcher_flush_latency_seconds",
		Help:    "Duration of one Redis batcher flush cycle",
		Buckets: prometheus.DefBuckets,
	})

	// BatcherQueueDepth is the gauge of queued entries at the start of the
	// most recent flush, by queue name.
	BatcherQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "threadkit_batcher_queue_depth",
		Help: "Queued batcher entries at the start of the most recent flush",
	}, []string{"queue"})

	// RateLimitRejectionsTotal counts 429 responses by layer (ip/apikey/user).
	RateLimitRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadkit_rate_limit_rejections_total",
		Help: "Total rate-limit rejections by layer",
	}, []string{"layer"})
)
