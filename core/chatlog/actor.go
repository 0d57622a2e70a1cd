package chatlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codewandler/chatlog-go/core/actor"
	"github.com/codewandler/chatlog-go/core/proxy"
	"github.com/codewandler/chatlog-go/internal/codec"
	"github.com/codewandler/chatlog-go/ports/kv"
)

// AppendObserver is the typed caller handle notified when a one-way append
// could not be stored.
type AppendObserver interface {
	actor.Caller
	AppendFailed(key Key, entry Entry, err error)
}

type Options struct {
	ID          string
	Context     context.Context
	Logger      *slog.Logger
	MailboxSize int
	Codec       codec.Codec
	// OnError receives append failures; see actor.Options.
	OnError actor.OnError
	Metrics actor.ActorMetrics
}

// NewActor starts a chat log actor persisting to store. All keys sent to it
// share its mailbox.
func NewActor(store kv.Store, opts Options) actor.Actor {
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	return actor.TypedHandlers(Handlers(store, opts.Codec)...).ToActor(actor.Options{
		ID:          opts.ID,
		Context:     opts.Context,
		Logger:      opts.Logger,
		MailboxSize: opts.MailboxSize,
		OnError:     opts.OnError,
		Metrics:     opts.Metrics,
	})
}

// Handlers returns the chat log message handlers.
func Handlers(store kv.Store, c codec.Codec) []actor.HandlerRegistration {
	return []actor.HandlerRegistration{
		actor.Init(func(hc actor.HandlerCtx) error {
			hc.Log().Debug("chat log actor started")
			return nil
		}),
		actor.HandleMsg[ChatMessage](func(hc actor.HandlerCtx, m ChatMessage) error {
			err := appendEntry(hc, store, c, m)
			if err == nil {
				return nil
			}
			if obs, cerr := proxy.CurrentCaller[AppendObserver](hc); cerr == nil {
				obs.AppendFailed(m.Key, m.Entry, err)
			}
			return err
		}),
		actor.HandleRequest[GetChatLog, ChatLog](func(hc actor.HandlerCtx, q GetChatLog) (*ChatLog, error) {
			return readLog(hc, store, c, q.Key)
		}),
		actor.DefaultHandler(func(hc actor.HandlerCtx, _ any) (any, error) {
			mt := hc.Invocation().Type()
			hc.Log().Warn("unknown message", slog.String("msg_type", mt))
			return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, mt)
		}),
	}
}

func appendEntry(ctx context.Context, store kv.Store, c codec.Codec, m ChatMessage) error {
	if m.Key == "" {
		return ErrKeyRequired
	}
	return storageErr("append", m.Key, kv.Append(ctx, store, c, string(m.Key), m.Entry))
}

func readLog(ctx context.Context, store kv.Store, c codec.Codec, key Key) (*ChatLog, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	entries, err := kv.Read[Entry](ctx, store, c, string(key))
	if err != nil {
		return nil, storageErr("read", key, err)
	}
	return &ChatLog{Key: key, Entries: entries}, nil
}

// storageErr makes sure store failures carry ErrStorageUnavailable. Codec
// failures pass through.
func storageErr(op string, key Key, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, kv.ErrCorruptValue):
		return err
	case errors.Is(err, kv.ErrStorageUnavailable):
		return fmt.Errorf("%s %q: %w", op, key, err)
	default:
		return kv.Unavailable(fmt.Sprintf("%s %q", op, key), err)
	}
}
