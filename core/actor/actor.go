package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type (
	// Caller identifies whoever sent a message. Typed handles (see the proxy
	// package) are richer interfaces implemented by callers.
	Caller interface {
		ID() string
	}

	// Ref is anything messages can be delivered to.
	Ref interface {
		Caller
		Send(ctx context.Context, env Envelope) error
	}

	Actor interface {
		Ref
		Stop()
		Done() <-chan struct{}
	}

	// Failure describes a one-way message whose handler returned an error, or
	// a request whose requester was gone by the time it failed.
	Failure struct {
		ActorID string
		MsgID   string
		MsgType string
		Sender  Caller
		Err     error
	}

	// OnError receives failures nobody is waiting for. It is the hook for a
	// supervising collaborator; the actor itself never retries.
	OnError func(f Failure)

	OnPanic func(recovered any, stack []byte, env Envelope)
)

type Options struct {
	ID          string
	MailboxSize int
	Context     context.Context
	Logger      *slog.Logger
	OnPanic     OnPanic
	OnError     OnError
	Metrics     ActorMetrics
}

type BaseActor struct {
	id      string
	ctx     context.Context
	log     *slog.Logger
	metrics ActorMetrics

	mailbox chan Envelope

	stop chan struct{}
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	senders sync.WaitGroup

	onPanic OnPanic
	onError OnError
}

// New starts an actor that feeds its mailbox to handler, one message at a
// time.
func New(opt Options, handler RawHandler) Actor {
	if opt.ID == "" {
		opt.ID = "actor-" + gonanoid.Must(8)
	}
	if opt.MailboxSize <= 0 {
		opt.MailboxSize = 1024
	}
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Metrics == nil {
		opt.Metrics = NopActorMetrics()
	}

	log := opt.Logger.With(slog.String("actor", opt.ID))

	if opt.OnPanic == nil {
		opt.OnPanic = func(recovered any, stack []byte, env Envelope) {
			log.Error("actor panicked", slog.Any("recovered", recovered), slog.String("stack", string(stack)), slog.String("msg_type", env.Type))
		}
	}
	if opt.OnError == nil {
		opt.OnError = func(f Failure) {
			log.Error(
				"dead letter",
				slog.String("msg_id", f.MsgID),
				slog.String("msg_type", f.MsgType),
				slog.Any("error", f.Err),
			)
		}
	}

	a := &BaseActor{
		id:      opt.ID,
		ctx:     opt.Context,
		log:     log,
		metrics: opt.Metrics,
		mailbox: make(chan Envelope, opt.MailboxSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		onPanic: opt.OnPanic,
		onError: opt.OnError,
	}

	go a.loop(handler)
	return a
}

func (a *BaseActor) ID() string { return a.id }

// Done is closed when the actor stops.
func (a *BaseActor) Done() <-chan struct{} { return a.done }

// Stop requests shutdown and waits for the message in flight to finish.
// Messages still queued are not handled. One-way messages among them are
// reported to OnError and requests are answered with ErrActorStopped.
func (a *BaseActor) Stop() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.stop)
	}
	a.mu.Unlock()
	<-a.done
}

// Send enqueues e, blocking only while the mailbox is full.
func (a *BaseActor) Send(ctx context.Context, e Envelope) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrActorStopped
	}
	a.senders.Add(1)
	a.mu.Unlock()
	defer a.senders.Done()

	if e.ID == "" {
		e.ID = gonanoid.Must()
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("send failed: %w", ctx.Err())
	case <-a.stop:
		return ErrActorStopped
	case <-a.ctx.Done():
		return ErrActorStopped
	case a.mailbox <- e:
		a.metrics.MailboxDepth(a.id, len(a.mailbox))
		return nil
	}
}

// ---- internals ----

func (a *BaseActor) loop(h RawHandler) {
	defer close(a.done)
	defer a.drain()

	if err := h.InitHandler(&handlerCtx{Context: a.ctx, log: a.log, self: a}); err != nil {
		a.log.Error("failed to init handler", slog.Any("error", err))
	}

	for {
		// stop wins over a non-empty mailbox
		select {
		case <-a.stop:
			return
		case <-a.ctx.Done():
			return
		default:
		}

		select {
		case <-a.stop:
			return
		case <-a.ctx.Done():
			return
		case env := <-a.mailbox:
			a.metrics.MailboxDepth(a.id, len(a.mailbox))
			a.handle(h, env)
		}
	}
}

// drain runs once the loop has exited. It closes the actor to new sends, waits
// for sends already admitted, and rejects everything left in the mailbox.
func (a *BaseActor) drain() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	admitted := make(chan struct{})
	go func() {
		a.senders.Wait()
		close(admitted)
	}()

	n := 0
	defer func() {
		if n > 0 {
			a.log.Debug("rejected queued messages", slog.Int("count", n))
		}
		a.metrics.MailboxDepth(a.id, 0)
	}()
	for {
		select {
		case env := <-a.mailbox:
			a.reject(env)
			n++
		case <-admitted:
			for {
				select {
				case env := <-a.mailbox:
					a.reject(env)
					n++
				default:
					return
				}
			}
		}
	}
}

func (a *BaseActor) reject(env Envelope) {
	if env.Reply == nil {
		a.fail(env, ErrActorStopped)
		return
	}
	a.reply(env, Reply{ID: env.ID, Error: ErrActorStopped})
}

func (a *BaseActor) handle(h RawHandler, env Envelope) {
	inv := newInvocation(env)
	hc := &handlerCtx{
		Context: a.ctx,
		log:     a.log.With(slog.String("msg_id", env.ID)),
		self:    a,
		inv:     inv,
	}

	timer := a.metrics.MessageDuration(env.Type)
	res, err := a.safeHandle(h, hc, env)
	inv.end()
	timer.ObserveDuration()
	a.metrics.MessageProcessed(env.Type, err == nil)

	if env.Reply == nil {
		if err != nil {
			a.fail(env, err)
		}
		return
	}

	a.reply(env, Reply{ID: env.ID, Result: res, Error: err})
}

func (a *BaseActor) safeHandle(h RawHandler, hc HandlerCtx, env Envelope) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.metrics.MessagePanic(env.Type)
			a.onPanic(r, debug.Stack(), env)
			res, err = nil, fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h.HandleMessage(hc, env.Type, env.Data)
}

// reply delivers r unless the requester has stopped waiting, in which case the
// reply is dropped.
func (a *BaseActor) reply(env Envelope, r Reply) {
	if env.Abandoned != nil {
		select {
		case <-env.Abandoned:
			a.drop(env, r)
			return
		default:
		}
	}
	select {
	case env.Reply <- r:
	default:
		a.drop(env, r)
	}
}

func (a *BaseActor) drop(env Envelope, r Reply) {
	a.metrics.ReplyDropped(env.Type)
	a.log.Debug("discarding orphaned reply", slog.String("msg_id", env.ID), slog.String("msg_type", env.Type))
	if r.Error != nil {
		a.fail(env, r.Error)
	}
}

func (a *BaseActor) fail(env Envelope, err error) {
	a.onError(Failure{
		ActorID: a.id,
		MsgID:   env.ID,
		MsgType: env.Type,
		Sender:  env.Sender,
		Err:     err,
	})
}

var _ Actor = (*BaseActor)(nil)
