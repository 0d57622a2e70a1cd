package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/chatlog-go/core/metrics"
	"github.com/codewandler/chatlog-go/ports/kv"
)

// StoreMetrics implements kv.StoreMetrics.
type StoreMetrics struct {
	opDuration *prometheus.HistogramVec
	opsTotal   *prometheus.CounterVec
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_op_duration_seconds",
			Help:      "List store operation time in seconds",
			Buckets:   defaultBuckets,
		}, []string{"op"}),

		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_ops_total",
			Help:      "Total number of list store operations",
		}, []string{"op", "success"}),
	}

	reg.MustRegister(m.opDuration, m.opsTotal)
	return m
}

func (m *StoreMetrics) OpDuration(op string) metrics.Timer {
	return newTimer(m.opDuration.WithLabelValues(op))
}

func (m *StoreMetrics) OpCompleted(op string, success bool) {
	m.opsTotal.WithLabelValues(op, boolToStr(success)).Inc()
}

var _ kv.StoreMetrics = (*StoreMetrics)(nil)
