// Package actor provides a mailbox-based actor runtime.
//
// Each actor owns exactly one mailbox and drains it on a single goroutine:
// messages are handled one at a time, to completion, in arrival order. State
// touched only from handlers therefore needs no locking.
//
// # Handlers
//
//	a := actor.TypedHandlers(
//	    actor.HandleMsg[AppendCmd](func(hc actor.HandlerCtx, cmd AppendCmd) error {
//	        return store.Append(hc, cmd.Key, cmd.Value)
//	    }),
//	    actor.HandleRequest[GetQuery, Result](func(hc actor.HandlerCtx, q GetQuery) (*Result, error) {
//	        return load(hc, q.Key)
//	    }),
//	).ToActor(actor.Options{})
//
// Messages are dispatched by type name, derived from the Go type or from a
// MsgType() string method.
//
// # Sending
//
// [Tell] is one-way: it returns once the message is enqueued. A handler error
// for a one-way message is handed to [Options.OnError]; by default it is
// logged as a dead letter.
//
// [Request] blocks until the reply arrives or the context ends:
//
//	res, err := actor.Request[GetQuery, Result](ctx, a, GetQuery{Key: "k"}, actor.WithTimeout(time.Second))
//
// On deadline expiry Request returns [ErrRequestTimeout]. The actor still
// finishes the message; the reply is then discarded and counted via
// [ActorMetrics.ReplyDropped]. Every request has its own reply channel and
// replies are tagged with the request ID, so a late reply never reaches
// another request.
//
// # Stopping
//
// [Actor.Stop] and cancellation of [Options.Context] let the message in flight
// finish. Whatever is still queued is rejected with [ErrActorStopped]: one-way
// messages are reported to OnError and requests are answered with the error.
//
// # Callers
//
// [WithSender] attaches an explicit caller handle to a message. During
// handling it is available from [HandlerCtx.Invocation]; the invocation
// record is deactivated when the handler returns.
package actor
