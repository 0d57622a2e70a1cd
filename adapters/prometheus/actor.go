package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/chatlog-go/core/actor"
	"github.com/codewandler/chatlog-go/core/metrics"
)

// ActorMetrics implements actor.ActorMetrics.
type ActorMetrics struct {
	messageDuration *prometheus.HistogramVec
	messagesTotal   *prometheus.CounterVec
	panicTotal      *prometheus.CounterVec
	mailboxDepth    *prometheus.GaugeVec
	repliesDropped  *prometheus.CounterVec
}

func NewActorMetrics(reg prometheus.Registerer) *ActorMetrics {
	m := &ActorMetrics{
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "actor_message_duration_seconds",
			Help:      "Message handling time in seconds",
			Buckets:   defaultBuckets,
		}, []string{"message_type"}),

		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actor_messages_total",
			Help:      "Total number of messages processed",
		}, []string{"message_type", "success"}),

		panicTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actor_panics_total",
			Help:      "Total number of handler panics",
		}, []string{"message_type"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actor_mailbox_depth",
			Help:      "Current mailbox queue depth",
		}, []string{"actor_id"}),

		repliesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actor_replies_dropped_total",
			Help:      "Replies discarded because the requester stopped waiting",
		}, []string{"message_type"}),
	}

	reg.MustRegister(
		m.messageDuration,
		m.messagesTotal,
		m.panicTotal,
		m.mailboxDepth,
		m.repliesDropped,
	)

	return m
}

func (m *ActorMetrics) MessageDuration(msgType string) metrics.Timer {
	return newTimer(m.messageDuration.WithLabelValues(msgType))
}

func (m *ActorMetrics) MessageProcessed(msgType string, success bool) {
	m.messagesTotal.WithLabelValues(msgType, boolToStr(success)).Inc()
}

func (m *ActorMetrics) MessagePanic(msgType string) {
	m.panicTotal.WithLabelValues(msgType).Inc()
}

func (m *ActorMetrics) MailboxDepth(actorID string, depth int) {
	m.mailboxDepth.WithLabelValues(actorID).Set(float64(depth))
}

func (m *ActorMetrics) ReplyDropped(msgType string) {
	m.repliesDropped.WithLabelValues(msgType).Inc()
}

var _ actor.ActorMetrics = (*ActorMetrics)(nil)
