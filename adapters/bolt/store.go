// Package bolt stores chat log lists in a local bbolt file, one bucket per
// key.
package bolt

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/codewandler/chatlog-go/ports/kv"
)

type Config struct {
	Path string
	Log  *slog.Logger

	// OpenTimeout bounds waiting for the file lock (default 1s).
	OpenTimeout time.Duration
}

type Store struct {
	db  *bbolt.DB
	log *slog.Logger
}

func Open(cfg Config) (*Store, error) {
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = time.Second
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("store", "bolt"), slog.String("path", cfg.Path))

	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, kv.Unavailable("open "+cfg.Path, err)
	}
	log.Debug("opened store")
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AppendToList(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return kv.ErrKeyRequired
	}
	if err := ctx.Err(); err != nil {
		return kv.Unavailable("append", err)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), value)
	})
	return kv.Unavailable("append", err)
}

func (s *Store) ReadList(ctx context.Context, key string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, kv.Unavailable("read", err)
	}
	values := make([][]byte, 0)
	if key == "" {
		return values, nil
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(key))
		if b == nil {
			return nil
		}
		// big-endian sequence keys iterate in append order
		return b.ForEach(func(_, v []byte) error {
			// v is only valid for the life of the transaction
			values = append(values, append([]byte(nil), v...))
			return nil
		})
	})
	if err != nil {
		return nil, kv.Unavailable("read", err)
	}
	return values, nil
}

// Reset drops every bucket.
func (s *Store) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return kv.Unavailable("reset", err)
	}
	var dropped int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		dropped = len(names)
		return nil
	})
	if err != nil {
		return kv.Unavailable("reset", err)
	}
	s.log.Info("reset store", slog.Int("lists", dropped))
	return nil
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

var _ kv.Store = (*Store)(nil)
