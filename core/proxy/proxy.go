// Package proxy gives typed access to untyped actor references: a Proxy turns
// a strongly typed call into a mailbox message, and CurrentCaller resolves the
// sender of the message being handled as a typed handle.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codewandler/chatlog-go/core/actor"
)

// ErrCallerType is returned when the current caller does not implement the
// requested handle type.
var ErrCallerType = errors.New("caller does not implement handle type")

type Options struct {
	// Sender is attached to every message sent through the proxy.
	Sender actor.Caller
	// Timeout bounds Call; zero leaves it to the context.
	Timeout time.Duration
}

// Proxy forwards IN messages to target and expects OUT replies.
type Proxy[IN any, OUT any] struct {
	target actor.Ref
	opts   Options
}

func New[IN any, OUT any](target actor.Ref, opts Options) *Proxy[IN, OUT] {
	return &Proxy[IN, OUT]{target: target, opts: opts}
}

func (p *Proxy[IN, OUT]) sendOpts() []actor.SendOption {
	var so []actor.SendOption
	if p.opts.Sender != nil {
		so = append(so, actor.WithSender(p.opts.Sender))
	}
	if p.opts.Timeout > 0 {
		so = append(so, actor.WithTimeout(p.opts.Timeout))
	}
	return so
}

// Call performs a request-reply round trip.
func (p *Proxy[IN, OUT]) Call(ctx context.Context, in IN) (*OUT, error) {
	return actor.Request[IN, OUT](ctx, p.target, in, p.sendOpts()...)
}

// Tell sends in one-way.
func (p *Proxy[IN, OUT]) Tell(ctx context.Context, in IN) error {
	return actor.Tell(ctx, p.target, in, p.sendOpts()...)
}

// CurrentCaller returns the sender of the message hc was created for, typed
// as T. It fails with actor.ErrNoActiveInvocation outside a running handler or
// when the message carries no sender.
func CurrentCaller[T any](hc actor.HandlerCtx) (T, error) {
	var zero T
	if hc == nil {
		return zero, actor.ErrNoActiveInvocation
	}
	inv := hc.Invocation()
	if !inv.Active() {
		return zero, actor.ErrNoActiveInvocation
	}
	sender := inv.Sender()
	if sender == nil {
		return zero, fmt.Errorf("%w: message %s has no sender", actor.ErrNoActiveInvocation, inv.ID())
	}
	typed, ok := sender.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T", ErrCallerType, sender)
	}
	return typed, nil
}
