package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/codewandler/chatlog-go/internal/codec"
)

type (
	// Reply carries the result of a handler execution back to a requester.
	Reply struct {
		ID     string // ID of the request this reply answers
		Result any
		Error  error
	}

	// Envelope wraps a message for delivery to an actor's mailbox.
	Envelope struct {
		ID     string // request ID, assigned on send when empty
		Type   string // message type name used for dispatch
		Data   []byte // encoded payload
		Sender Caller // explicit reply destination, may be nil

		// Reply is nil for one-way messages.
		Reply chan Reply
		// Abandoned is closed once the requester no longer waits for Reply.
		Abandoned <-chan struct{}
	}

	// RawHandler is the low-level interface for handling actor messages.
	// Most users should use [TypedHandlers] instead of implementing this directly.
	RawHandler interface {
		InitHandler(hc HandlerCtx) error
		HandleMessage(hc HandlerCtx, mt string, data []byte) (any, error)
	}

	MsgHandlerFunc  func(hc HandlerCtx, msg any) (any, error)
	HandlerInitFunc func(hc HandlerCtx) error

	// HandlerRegistrar allows registering message handlers with the actor.
	HandlerRegistrar interface {
		Register(r Registration)
	}

	// Registration binds a message type to its decoder and handler.
	Registration struct {
		MsgType string
		New     func() any
		Handle  MsgHandlerFunc
		Init    HandlerInitFunc
	}

	// HandlerRegistration is a function that registers handlers with a registrar.
	// Create these using [HandleMsg], [HandleRequest], etc.
	HandlerRegistration func(registrar HandlerRegistrar)
)

// TypedHandlerRegistry dispatches incoming messages to typed handlers by
// message type.
type TypedHandlerRegistry struct {
	mu             sync.RWMutex
	codec          codec.Codec
	inits          []HandlerInitFunc
	handlers       map[string]Registration
	defaultHandler MsgHandlerFunc
}

// ToActor creates and starts an actor using this handler registry.
func (t *TypedHandlerRegistry) ToActor(opts Options) Actor {
	return New(opts, t)
}

func (t *TypedHandlerRegistry) Register(r Registration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.MsgType == "*" {
		t.defaultHandler = r.Handle
	} else if r.MsgType != "" && r.Handle != nil {
		t.handlers[r.MsgType] = r
	}
	if r.Init != nil {
		t.inits = append(t.inits, r.Init)
	}
}

// InitHandler runs all registered init funcs. Called by the actor on startup.
func (t *TypedHandlerRegistry) InitHandler(hc HandlerCtx) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, i := range t.inits {
		if err := i(hc); err != nil {
			return fmt.Errorf("failed to init handler: %w", err)
		}
	}
	return nil
}

// HandleMessage decodes data and dispatches it to the handler registered for mt.
func (t *TypedHandlerRegistry) HandleMessage(hc HandlerCtx, mt string, data []byte) (any, error) {
	t.mu.RLock()
	r, ok := t.handlers[mt]
	dh := t.defaultHandler
	t.mu.RUnlock()

	if !ok {
		if dh != nil {
			return dh(hc, data)
		}
		return nil, fmt.Errorf("no handler for msg: msg_type=%s", mt)
	}

	msg := r.New()
	if err := t.codec.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", mt, err)
	}
	return r.Handle(hc, msg)
}

// TypedHandlers creates a new handler registry with the given handlers.
//
//	registry := actor.TypedHandlers(
//	    actor.HandleMsg[MyCommand](handleMyCommand),
//	    actor.HandleRequest[MyQuery, MyResponse](handleMyQuery),
//	)
//	myActor := registry.ToActor(actor.Options{})
func TypedHandlers(handlers ...HandlerRegistration) *TypedHandlerRegistry {
	th := &TypedHandlerRegistry{
		codec:    codec.Default,
		handlers: make(map[string]Registration),
	}
	for _, h := range handlers {
		h(th)
	}
	return th
}

// DefaultHandler registers a fallback for unmatched message types. The raw
// payload ([]byte) is passed as msg.
func DefaultHandler(h func(HandlerCtx, any) (any, error)) HandlerRegistration {
	return func(registrar HandlerRegistrar) {
		registrar.Register(Registration{MsgType: "*", Handle: h})
	}
}

// Init registers a function run once when the actor starts.
func Init(initFunc HandlerInitFunc) HandlerRegistration {
	return func(registrar HandlerRegistrar) {
		registrar.Register(Registration{Init: initFunc})
	}
}

// HandleMsg registers a one-way handler for IN. Errors are reported to the
// actor's OnError hook unless the message was sent as a request.
func HandleMsg[IN any](h func(hc HandlerCtx, msg IN) error) HandlerRegistration {
	return HandleRequest[IN, struct{}](func(hc HandlerCtx, msg IN) (*struct{}, error) {
		return nil, h(hc, msg)
	})
}

// HandleRequest registers a request-reply handler for IN returning *OUT.
func HandleRequest[IN any, OUT any](h func(hc HandlerCtx, msg IN) (*OUT, error)) HandlerRegistration {
	mt := msgTypeFor[IN]()
	return func(registrar HandlerRegistrar) {
		registrar.Register(Registration{
			MsgType: mt,
			New:     func() any { return new(IN) },
			Handle: func(hc HandlerCtx, msg any) (any, error) {
				in, ok := msg.(*IN)
				if !ok {
					return nil, fmt.Errorf("invalid request message type: %T", msg)
				}
				out, err := h(hc, *in)
				if err != nil {
					return nil, err
				}
				return out, nil
			},
		})
	}
}

// ---- sending ----

type sendOpts struct {
	id      string
	sender  Caller
	timeout time.Duration
}

type SendOption func(*sendOpts)

// WithSender attaches the caller handle the receiver can resolve during
// handling.
func WithSender(c Caller) SendOption {
	return func(o *sendOpts) { o.sender = c }
}

// WithMessageID overrides the generated message/request ID.
func WithMessageID(id string) SendOption {
	return func(o *sendOpts) { o.id = id }
}

// WithTimeout bounds how long Request waits for the reply.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOpts) { o.timeout = d }
}

func newSendOpts(opts []SendOption) sendOpts {
	o := sendOpts{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = gonanoid.Must()
	}
	return o
}

// Tell sends a one-way message. It returns as soon as the message is
// enqueued; handler errors go to the receiver's OnError hook.
func Tell[IN any](ctx context.Context, r Ref, msg IN, opts ...SendOption) error {
	data, err := codec.Default.Marshal(msg)
	if err != nil {
		return err
	}
	return RawTell(ctx, r, msgTypeFor[IN](), data, opts...)
}

// RawTell sends a pre-encoded one-way message.
func RawTell(ctx context.Context, r Ref, msgType string, data []byte, opts ...SendOption) error {
	o := newSendOpts(opts)
	return r.Send(ctx, Envelope{ID: o.id, Type: msgType, Data: data, Sender: o.sender})
}

// Request sends msg and waits for the handler's *OUT.
func Request[IN any, OUT any](ctx context.Context, r Ref, msg IN, opts ...SendOption) (*OUT, error) {
	data, err := codec.Default.Marshal(msg)
	if err != nil {
		return nil, err
	}
	res, err := RawRequest(ctx, r, msgTypeFor[IN](), data, opts...)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	out, ok := res.(*OUT)
	if !ok {
		return nil, fmt.Errorf("unexpected reply type %T for %s", res, msgTypeFor[IN]())
	}
	return out, nil
}

// RawRequest sends a pre-encoded request and waits for the reply, the
// deadline, or the receiver stopping.
func RawRequest(ctx context.Context, r Ref, msgType string, data []byte, opts ...SendOption) (any, error) {
	o := newSendOpts(opts)
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	replyChan := make(chan Reply, 1)
	abandoned := make(chan struct{})
	defer close(abandoned)

	env := Envelope{
		ID:        o.id,
		Type:      msgType,
		Data:      data,
		Sender:    o.sender,
		Reply:     replyChan,
		Abandoned: abandoned,
	}
	if err := r.Send(ctx, env); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s (request %s)", ErrRequestTimeout, msgType, o.id)
		}
		return nil, err
	}

	var stopped <-chan struct{}
	if d, ok := r.(interface{ Done() <-chan struct{} }); ok {
		stopped = d.Done()
	}

	select {
	case reply := <-replyChan:
		return unwrapReply(env, reply)
	case <-stopped:
		select {
		case reply := <-replyChan:
			return unwrapReply(env, reply)
		default:
			return nil, ErrActorStopped
		}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s (request %s)", ErrRequestTimeout, msgType, o.id)
		}
		return nil, ctx.Err()
	}
}

func unwrapReply(env Envelope, reply Reply) (any, error) {
	if reply.ID != env.ID {
		return nil, fmt.Errorf("%w: request %s, reply %s", ErrReplyMismatch, env.ID, reply.ID)
	}
	return reply.Result, reply.Error
}
