package actor

import "errors"

var (
	ErrActorStopped = errors.New("actor stopped")

	// ErrRequestTimeout is returned by Request when no reply arrived before the
	// caller's deadline. The actor may still complete the work; its reply is
	// then discarded.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrNoActiveInvocation is returned when the current caller is queried
	// outside the handling of a message.
	ErrNoActiveInvocation = errors.New("no active invocation")

	ErrReplyMismatch = errors.New("reply does not match request")
	ErrHandlerPanic  = errors.New("handler panicked")
)
