package nats

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/crypto/blake2b"

	"github.com/codewandler/chatlog-go/ports/kv"
)

const (
	defaultStreamName    = "CHATLOG"
	defaultSubjectPrefix = "chatlog"
	defaultOpTimeout     = 5 * time.Second
	fetchBatch           = 100
	consumerInactivity   = 30 * time.Second

	headerKey = "x-chatlog-key"
)

type ListStoreConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	StreamName    string
	SubjectPrefix string // SubjectPrefix is the prefix of every list subject

	// OpTimeout bounds each store operation (default 5s).
	OpTimeout time.Duration

	// Zero means unlimited for the limits below.
	MaxAge   time.Duration
	MaxBytes int64
	MaxMsgs  int64
}

// ListStore keeps each list in its own subject of a single JetStream stream.
// Subjects are derived from a hash of the key, so any string is a valid key.
type ListStore struct {
	nc            *natsgo.Conn
	release       closeFunc
	js            jetstream.JetStream
	stream        jetstream.Stream
	log           *slog.Logger
	subjectPrefix string
	opTimeout     time.Duration
}

func NewListStore(cfg ListStoreConfig) (*ListStore, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, release, err := doConnect()
	if err != nil {
		return nil, kv.Unavailable("connect", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		release()
		return nil, kv.Unavailable("jetstream", err)
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}
	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	// 0 means unlimited in our config, -1 in NATS
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = -1
	}
	maxMsgs := cfg.MaxMsgs
	if maxMsgs == 0 {
		maxMsgs = -1
	}

	log = log.With(
		slog.String("store", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subject_prefix", subjectPrefix),
	)

	stream, info, err := ensureStream(js, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    cfg.MaxAge,
		MaxBytes:  maxBytes,
		MaxMsgs:   maxMsgs,
	})
	if err != nil {
		release()
		return nil, kv.Unavailable("ensure stream", err)
	}
	log.Debug("ensured stream", slog.Uint64("msgs", info.State.Msgs))

	return &ListStore{
		nc:            nc,
		release:       release,
		js:            js,
		stream:        stream,
		log:           log,
		subjectPrefix: subjectPrefix,
		opTimeout:     opTimeout,
	}, nil
}

func (s *ListStore) Close() error {
	s.js.CleanupPublisher()
	s.release()
	s.log.Debug("closed list store")
	return nil
}

func (s *ListStore) AppendToList(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return kv.ErrKeyRequired
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	subject := s.subjectFor(key)
	msg := natsgo.NewMsg(subject)
	msg.Header.Set(headerKey, key)
	msg.Data = value

	if _, err := s.js.PublishMsg(ctx, msg); err != nil {
		return kv.Unavailable("publish to "+subject, err)
	}
	return nil
}

func (s *ListStore) ReadList(ctx context.Context, key string) (values [][]byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var (
		startAt = time.Now()
		subject = s.subjectFor(key)
	)
	defer func() {
		if err == nil {
			s.log.Debug(
				"read list",
				slog.String("key", key),
				slog.Int("count", len(values)),
				slog.Duration("duration", time.Since(startAt)),
			)
		}
	}()

	// the last sequence on the subject bounds the read
	last, err := s.stream.GetLastMsgForSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return [][]byte{}, nil
		}
		return nil, kv.Unavailable("last message of "+subject, err)
	}

	cc, err := s.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		FilterSubjects:    []string{subject},
		InactiveThreshold: consumerInactivity,
	})
	if err != nil {
		return nil, kv.Unavailable("consumer for "+subject, err)
	}
	defer s.deleteConsumer(cc)

	values, err = s.consume(ctx, cc, key, last.Sequence)
	if err != nil {
		return nil, kv.Unavailable("read "+subject, err)
	}
	return values, nil
}

func (s *ListStore) consume(ctx context.Context, cc jetstream.Consumer, key string, endSeq uint64) ([][]byte, error) {
	values := make([][]byte, 0)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mb, err := cc.Fetch(fetchBatch, jetstream.FetchMaxWait(250*time.Millisecond))
		if err != nil {
			return nil, err
		}

		for msg := range mb.Messages() {
			md, err := msg.Metadata()
			if err != nil {
				return nil, err
			}
			// subjects are hashed; the header disambiguates collisions
			if msg.Headers().Get(headerKey) == key {
				values = append(values, msg.Data())
			}
			if md.Sequence.Stream >= endSeq {
				return values, nil
			}
		}
		if err := mb.Error(); err != nil && !errors.Is(err, jetstream.ErrNoMessages) {
			return nil, err
		}
	}
}

// deleteConsumer removes the ordered consumer of a finished read. The server
// also reaps it after consumerInactivity if this fails.
func (s *ListStore) deleteConsumer(cc jetstream.Consumer) {
	info := cc.CachedInfo()
	if info == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()
	if err := s.stream.DeleteConsumer(ctx, info.Name); err != nil && !errors.Is(err, jetstream.ErrConsumerNotFound) {
		s.log.Debug("failed to delete consumer", slog.String("consumer", info.Name), slog.Any("error", err))
	}
}

// Reset purges every list in the stream.
func (s *ListStore) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.stream.Purge(ctx); err != nil {
		return kv.Unavailable("purge", err)
	}
	s.log.Info("purged stream")
	return nil
}

func (s *ListStore) subjectFor(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return s.subjectPrefix + "." + hex.EncodeToString(sum[:16])
}

func ensureStream(js jetstream.JetStream, cfg jetstream.StreamConfig) (jetstream.Stream, *jetstream.StreamInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*natsgo.DefaultTimeout)
	defer cancel()

	s, err := js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create stream %s: %w", cfg.Name, err)
	}
	si, err := s.Info(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, si, nil
}

var _ kv.Store = (*ListStore)(nil)
