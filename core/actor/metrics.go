package actor

import "github.com/codewandler/chatlog-go/core/metrics"

// ActorMetrics instruments mailbox processing. Implementations must be safe
// for concurrent use.
type ActorMetrics interface {
	MessageDuration(msgType string) metrics.Timer
	MessageProcessed(msgType string, success bool)
	MessagePanic(msgType string)

	MailboxDepth(actorID string, depth int)

	// ReplyDropped counts replies discarded because the requester stopped
	// waiting.
	ReplyDropped(msgType string)
}

type nopActorMetrics struct{}

func (nopActorMetrics) MessageDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopActorMetrics) MessageProcessed(string, bool)        {}
func (nopActorMetrics) MessagePanic(string)                  {}
func (nopActorMetrics) MailboxDepth(string, int)             {}
func (nopActorMetrics) ReplyDropped(string)                  {}

// NopActorMetrics returns an ActorMetrics that records nothing.
func NopActorMetrics() ActorMetrics { return nopActorMetrics{} }
