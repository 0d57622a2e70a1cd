package actor

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type (
	// HandlerCtx is passed to every handler. It is only meaningful for the
	// duration of the call it was created for.
	HandlerCtx interface {
		context.Context
		Log() *slog.Logger
		Self() Ref
		// Invocation returns the record of the message being handled, or nil
		// during Init.
		Invocation() *Invocation
	}

	// Invocation describes the message currently being handled: its request
	// ID, its type and the caller that sent it.
	Invocation struct {
		id      string
		msgType string
		sender  Caller
		active  atomic.Bool
	}
)

func newInvocation(env Envelope) *Invocation {
	inv := &Invocation{id: env.ID, msgType: env.Type, sender: env.Sender}
	inv.active.Store(true)
	return inv
}

func (i *Invocation) ID() string     { return i.id }
func (i *Invocation) Type() string   { return i.msgType }
func (i *Invocation) Sender() Caller { return i.sender }

// Active reports whether the handler for this invocation is still running.
func (i *Invocation) Active() bool { return i != nil && i.active.Load() }

func (i *Invocation) end() { i.active.Store(false) }

type handlerCtx struct {
	context.Context
	log  *slog.Logger
	self Ref
	inv  *Invocation
}

func (hc *handlerCtx) Log() *slog.Logger       { return hc.log }
func (hc *handlerCtx) Self() Ref               { return hc.self }
func (hc *handlerCtx) Invocation() *Invocation { return hc.inv }

var _ HandlerCtx = (*handlerCtx)(nil)
