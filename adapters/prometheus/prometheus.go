// Package prometheus implements the actor and store metrics ports with
// Prometheus collectors.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/chatlog-go/core/metrics"
)

const namespace = "chatlog"

// timer observes the elapsed seconds into a histogram.
type timer struct {
	h     prometheus.Observer
	start time.Time
}

func newTimer(h prometheus.Observer) metrics.Timer {
	return &timer{h: h, start: time.Now()}
}

func (t *timer) ObserveDuration() {
	t.h.Observe(time.Since(t.start).Seconds())
}

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5,
}

// AllMetrics bundles the collectors of both ports.
type AllMetrics struct {
	Actor *ActorMetrics
	Store *StoreMetrics
}

// NewAllMetrics registers every collector with reg.
func NewAllMetrics(reg prometheus.Registerer) *AllMetrics {
	return &AllMetrics{
		Actor: NewActorMetrics(reg),
		Store: NewStoreMetrics(reg),
	}
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
