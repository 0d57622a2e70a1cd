// Package kv defines the persistent list store the chat log writes to: an
// ordered, append-only list per key plus a destructive reset of the whole
// store.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/codewandler/chatlog-go/internal/codec"
)

var (
	// ErrStorageUnavailable wraps every backend or connectivity failure.
	// Stores never retry; that is left to whoever supervises the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrKeyRequired = errors.New("key is required")

	// ErrCorruptValue marks values the codec could not encode or decode.
	ErrCorruptValue = errors.New("corrupt value")
)

type Store interface {
	// AppendToList appends value to the list at key, creating it if absent.
	AppendToList(ctx context.Context, key string, value []byte) error
	// ReadList returns every value at key in append order; an absent key
	// yields an empty list.
	ReadList(ctx context.Context, key string) ([][]byte, error)
	// Reset clears every key. Test and admin use only; callers must make
	// sure no other traffic is in flight.
	Reset(ctx context.Context) error
}

// Unavailable wraps err as ErrStorageUnavailable, keeping err in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

// Append encodes v with c (codec.Default if nil) and appends it to key.
func Append[T any](ctx context.Context, store Store, c codec.Codec, key string, v T) error {
	if c == nil {
		c = codec.Default
	}
	data, err := c.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: failed to encode value for %q: %w", ErrCorruptValue, key, err)
	}
	return store.AppendToList(ctx, key, data)
}

// Read decodes every value at key with c (codec.Default if nil). Store errors
// are returned as is.
func Read[T any](ctx context.Context, store Store, c codec.Codec, key string) ([]T, error) {
	if c == nil {
		c = codec.Default
	}
	values, err := store.ReadList(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(values))
	for i, data := range values {
		var v T
		if err := c.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("%w: failed to decode entry %d of %q: %w", ErrCorruptValue, i, key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
