// Package kvtest is the behaviour suite every kv.Store backend must pass.
package kvtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/chatlog-go/ports/kv"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) kv.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("append order", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.AppendToList(ctx, "debasish", []byte("hi there")))
		require.NoError(t, s.AppendToList(ctx, "debasish", []byte("hi again")))

		values, err := s.ReadList(ctx, "debasish")
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("hi there"), []byte("hi again")}, values)
	})

	t.Run("absent key is empty", func(t *testing.T) {
		s := newStore(t)
		values, err := s.ReadList(t.Context(), "nobody")
		require.NoError(t, err)
		require.Empty(t, values)
	})

	t.Run("count grows with appends", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		const n = 25
		for i := range n {
			require.NoError(t, s.AppendToList(ctx, "k", fmt.Appendf(nil, "v%d", i)))
		}
		values, err := s.ReadList(ctx, "k")
		require.NoError(t, err)
		require.Len(t, values, n)
		for i, v := range values {
			require.Equal(t, fmt.Sprintf("v%d", i), string(v))
		}
	})

	t.Run("keys are isolated", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.AppendToList(ctx, "k1", []byte("a")))
		require.NoError(t, s.AppendToList(ctx, "k2", []byte("b")))
		require.NoError(t, s.AppendToList(ctx, "k1", []byte("c")))

		v1, err := s.ReadList(ctx, "k1")
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("a"), []byte("c")}, v1)

		v2, err := s.ReadList(ctx, "k2")
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("b")}, v2)
	})

	t.Run("keys with separators", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.AppendToList(ctx, "a.b c/d*", []byte("x")))
		require.NoError(t, s.AppendToList(ctx, "a.b", []byte("y")))

		values, err := s.ReadList(ctx, "a.b c/d*")
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("x")}, values)
	})

	t.Run("reset clears every key", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.AppendToList(ctx, "k1", []byte("a")))
		require.NoError(t, s.AppendToList(ctx, "k2", []byte("b")))
		require.NoError(t, s.Reset(ctx))

		for _, k := range []string{"k1", "k2"} {
			values, err := s.ReadList(ctx, k)
			require.NoError(t, err)
			require.Empty(t, values, k)
		}

		// the store stays usable after a reset
		require.NoError(t, s.AppendToList(ctx, "k1", []byte("c")))
		values, err := s.ReadList(ctx, "k1")
		require.NoError(t, err)
		require.Equal(t, [][]byte{[]byte("c")}, values)
	})

	t.Run("reads are snapshots", func(t *testing.T) {
		s := newStore(t)
		ctx := t.Context()
		require.NoError(t, s.AppendToList(ctx, "k", []byte("a")))
		before, err := s.ReadList(ctx, "k")
		require.NoError(t, err)

		require.NoError(t, s.AppendToList(ctx, "k", []byte("b")))
		require.Len(t, before, 1)
		require.Equal(t, "a", string(before[0]))
	})
}
