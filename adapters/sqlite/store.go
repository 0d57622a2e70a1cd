// Package sqlite stores chat log lists in a SQLite database through gorm.
package sqlite

import (
	"context"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/codewandler/chatlog-go/ports/kv"
)

// Row is one appended value. Rows of a list are ordered by ID.
type Row struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	ListKey string `gorm:"index;not null"`
	Value   []byte `gorm:"not null"`
}

func (Row) TableName() string { return "chatlog_entries" }

type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for a private in-memory database.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, kv.Unavailable("open "+path, err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, kv.Unavailable("open "+path, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db, log)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Row{}); err != nil {
		return nil, kv.Unavailable("migrate", err)
	}
	return &Store{db: db, log: log.With(slog.String("store", "sqlite"))}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) AppendToList(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return kv.ErrKeyRequired
	}
	if value == nil {
		value = []byte{}
	}
	if err := s.db.WithContext(ctx).Create(&Row{ListKey: key, Value: value}).Error; err != nil {
		return kv.Unavailable("append", err)
	}
	return nil
}

func (s *Store) ReadList(ctx context.Context, key string) ([][]byte, error) {
	var rows []Row
	err := s.db.WithContext(ctx).
		Where("list_key = ?", key).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, kv.Unavailable("read", err)
	}

	values := make([][]byte, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.Value)
	}
	return values, nil
}

func (s *Store) Reset(ctx context.Context) error {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Row{})
	if res.Error != nil {
		return kv.Unavailable("reset", res.Error)
	}
	s.log.Info("reset store", slog.Int64("rows", res.RowsAffected))
	return nil
}

var _ kv.Store = (*Store)(nil)
