package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catnip_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"operation"})

	// DocstoreOpLatency records document store operation latency by operation
	// and collection.
	DocstoreOpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catnip_docstore_op_latency_seconds",
		Help:    "Document store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// CounterDrift counts occasions where a denormalized counter had to be
	// reconciled against observed membership.
	CounterDrift = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catnip_counter_drift_total",
		Help: "Denormalized counter reconciliations by collection and field",
	}, []string{"collection", "field"})

	// ExperienceGranted counts companion experience points granted by activity kind.
	ExperienceGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catnip_experience_granted_total",
		Help: "Companion experience points granted by activity kind",
	}, []string{"activity"})

	// LiveSubscriptions is the gauge of active WebSocket post subscriptions.
	LiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catnip_live_subscriptions",
		Help: "Number of active WebSocket post subscriptions",
	})
)

// TrackOp returns a function that records document store operation latency
// when called (e.g. defer).
func TrackOp(operation, collection string) func() {
	start := time.Now()
	return func() {
		DocstoreOpLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}
