// Package postgres stores chat log lists as rows of a single table, ordered
// by a BIGSERIAL sequence.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codewandler/chatlog-go/ports/kv"
)

const defaultTableName = "chatlog_entries"

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Option func(*Store)

// WithTableName overrides the table name. The name is quoted.
func WithTableName(name string) Option {
	return func(s *Store) {
		s.table = pgx.Identifier{name}.Sanitize()
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

type Store struct {
	db    Querier
	table string
	log   *slog.Logger
}

func New(db Querier, opts ...Option) *Store {
	s := &Store{db: db, table: defaultTableName, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("store", "postgres"), slog.String("table", s.table))
	return s
}

// Connect opens a pool for dsn and makes sure the schema exists. The returned
// close func releases the pool.
func Connect(ctx context.Context, dsn string, opts ...Option) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, kv.Unavailable("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, kv.Unavailable("ping", err)
	}
	s := New(pool, opts...)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
		seq      BIGSERIAL PRIMARY KEY,
		list_key TEXT      NOT NULL,
		value    BYTEA     NOT NULL
	);
	CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (list_key, seq)`,
		s.table, pgx.Identifier{unquote(s.table) + "_key_idx"}.Sanitize())

	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return kv.Unavailable("ensure schema", err)
	}
	return nil
}

func (s *Store) AppendToList(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return kv.ErrKeyRequired
	}
	if value == nil {
		value = []byte{}
	}
	query := fmt.Sprintf(`INSERT INTO %s (list_key, value) VALUES ($1, $2)`, s.table)
	if _, err := s.db.Exec(ctx, query, key, value); err != nil {
		return kv.Unavailable("append", err)
	}
	return nil
}

func (s *Store) ReadList(ctx context.Context, key string) ([][]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE list_key = $1 ORDER BY seq ASC`, s.table)

	rows, err := s.db.Query(ctx, query, key)
	if err != nil {
		return nil, kv.Unavailable("read", err)
	}
	defer rows.Close()

	values := make([][]byte, 0)
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, kv.Unavailable("scan", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, kv.Unavailable("read", err)
	}
	return values, nil
}

// Reset truncates the table and restarts the sequence.
func (s *Store) Reset(ctx context.Context) error {
	query := fmt.Sprintf(`TRUNCATE TABLE %s RESTART IDENTITY`, s.table)
	if _, err := s.db.Exec(ctx, query); err != nil {
		return kv.Unavailable("reset", err)
	}
	s.log.Info("reset store")
	return nil
}

func unquote(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return ident[1 : len(ident)-1]
	}
	return ident
}

var _ kv.Store = (*Store)(nil)
