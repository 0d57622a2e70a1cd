// Package backend opens the kv.Store selected by the configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codewandler/chatlog-go/adapters/bolt"
	"github.com/codewandler/chatlog-go/adapters/nats"
	"github.com/codewandler/chatlog-go/adapters/postgres"
	"github.com/codewandler/chatlog-go/adapters/sqlite"
	"github.com/codewandler/chatlog-go/internal/config"
	"github.com/codewandler/chatlog-go/ports/kv"
)

// CloseFunc releases the resources of an opened store.
type CloseFunc func() error

func nopClose() error { return nil }

// Open returns the configured store. The caller must call the returned
// CloseFunc when done.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (kv.Store, CloseFunc, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Debug("opening store", slog.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendMemory:
		return kv.NewMemStore(), nopClose, nil

	case config.BackendBolt:
		s, err := bolt.Open(bolt.Config{Path: cfg.Bolt.Path, Log: log})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendNats:
		s, err := nats.NewListStore(nats.ListStoreConfig{
			Connect:    nats.ConnectURL(cfg.Nats.URL),
			Log:        log,
			StreamName: cfg.Nats.Stream,
			OpTimeout:  cfg.RequestTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.BackendPostgres:
		s, closePool, err := postgres.Connect(ctx, cfg.Postgres.DSN,
			postgres.WithTableName(cfg.Postgres.Table),
			postgres.WithLogger(log),
		)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { closePool(); return nil }, nil

	case config.BackendSqlite:
		s, err := sqlite.Open(cfg.Sqlite.Path, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
