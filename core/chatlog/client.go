package chatlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codewandler/chatlog-go/core/actor"
)

const DefaultRequestTimeout = 5 * time.Second

type ClientOptions struct {
	ID             string
	Logger         *slog.Logger
	RequestTimeout time.Duration
	// OnAppendError is told about appends the actor failed to store.
	OnAppendError func(key Key, entry Entry, err error)
	Now           func() time.Time
}

// Client is the caller-side API of the chat log. It sends itself along with
// every append, so storage failures find their way back through
// AppendFailed.
type Client struct {
	id       string
	resolver Resolver
	log      *slog.Logger
	timeout  time.Duration
	onErr    func(Key, Entry, error)
	now      func() time.Time
}

func NewClient(r Resolver, opts ClientOptions) *Client {
	if opts.ID == "" {
		opts.ID = "client-" + uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		id:       opts.ID,
		resolver: r,
		log:      opts.Logger.With(slog.String("client", opts.ID)),
		timeout:  opts.RequestTimeout,
		onErr:    opts.OnAppendError,
		now:      opts.Now,
	}
}

func (c *Client) ID() string { return c.id }

// Append enqueues entry for key and returns without waiting for it to be
// stored. Only enqueue failures are returned. The entry ID doubles as the
// message ID, so failures reported to OnError name the entry.
func (c *Client) Append(ctx context.Context, key Key, entry Entry) error {
	if key == "" {
		return ErrKeyRequired
	}
	ref, err := c.resolver.Resolve(key)
	if err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = c.now().UTC()
	}
	return actor.Tell(ctx, ref, ChatMessage{Key: key, Entry: entry}, actor.WithSender(c), actor.WithMessageID(entry.ID))
}

// ReadLog returns the log at key, including every append enqueued by this
// client before the call.
func (c *Client) ReadLog(ctx context.Context, key Key) (*ChatLog, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}
	ref, err := c.resolver.Resolve(key)
	if err != nil {
		return nil, err
	}
	return actor.Request[GetChatLog, ChatLog](ctx, ref, GetChatLog{Key: key}, actor.WithSender(c), actor.WithTimeout(c.timeout))
}

func (c *Client) AppendFailed(key Key, entry Entry, err error) {
	c.log.Warn("append failed", slog.String("key", string(key)), slog.String("entry_id", entry.ID), slog.Any("error", err))
	if c.onErr != nil {
		c.onErr(key, entry, err)
	}
}

var _ AppendObserver = (*Client)(nil)
