package persist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors of the package, registered with the default registry.
var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graft_persist_calls_total",
		Help: "Cumulative number of persist calls, by operation and status.",
	}, []string{"op", "status"})
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graft_persist_operations_total",
		Help: "Cumulative number of executed row operations, by entity and kind.",
	}, []string{"entity", "op"})
	durationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graft_persist_duration_seconds",
		Help:    "Duration of persist calls, including commit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)
