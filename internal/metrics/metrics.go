package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StorageOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardbox_storage_ops_total",
		Help: "Storage operations by backend, operation, and outcome.",
	}, []string{"backend", "op", "status"})

	StorageOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cardbox_storage_op_duration_seconds",
		Help:    "Storage operation latency.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"backend", "op"})

	CardsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardbox_cards_total",
		Help: "Cards in the active store, updated on list operations.",
	})
)

// ObserveOp records one storage operation outcome.
func ObserveOp(backend, op string, start time.Time, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	StorageOpsTotal.WithLabelValues(backend, op, status).Inc()
	StorageOpDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}
