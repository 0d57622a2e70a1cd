package kv

import (
	"context"

	"github.com/codewandler/chatlog-go/core/metrics"
)

// StoreMetrics instruments store operations ("append", "read", "reset").
type StoreMetrics interface {
	OpDuration(op string) metrics.Timer
	OpCompleted(op string, success bool)
}

type nopStoreMetrics struct{}

func (nopStoreMetrics) OpDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopStoreMetrics) OpCompleted(string, bool)        {}

func NopStoreMetrics() StoreMetrics { return nopStoreMetrics{} }

type instrumented struct {
	Store
	m StoreMetrics
}

// Instrument decorates store so every operation is timed and counted.
func Instrument(store Store, m StoreMetrics) Store {
	if m == nil {
		return store
	}
	return &instrumented{Store: store, m: m}
}

func (s *instrumented) AppendToList(ctx context.Context, key string, value []byte) error {
	defer s.m.OpDuration("append").ObserveDuration()
	err := s.Store.AppendToList(ctx, key, value)
	s.m.OpCompleted("append", err == nil)
	return err
}

func (s *instrumented) ReadList(ctx context.Context, key string) ([][]byte, error) {
	defer s.m.OpDuration("read").ObserveDuration()
	values, err := s.Store.ReadList(ctx, key)
	s.m.OpCompleted("read", err == nil)
	return values, err
}

func (s *instrumented) Reset(ctx context.Context) error {
	defer s.m.OpDuration("reset").ObserveDuration()
	err := s.Store.Reset(ctx)
	s.m.OpCompleted("reset", err == nil)
	return err
}
