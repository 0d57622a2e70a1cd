package kv_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/chatlog-go/ports/kv"
	"github.com/codewandler/chatlog-go/ports/kv/kvtest"
)

func TestMemStore(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store { return kv.NewMemStore() })
}

func TestMemStore_empty_key(t *testing.T) {
	s := kv.NewMemStore()
	require.ErrorIs(t, s.AppendToList(t.Context(), "", []byte("x")), kv.ErrKeyRequired)
}

func TestTypedHelpers(t *testing.T) {
	type Foo struct {
		Name string
		Age  int
	}
	s := kv.NewMemStore()

	loaded, err := kv.Read[Foo](t.Context(), s, nil, "foobar")
	require.NoError(t, err)
	require.Empty(t, loaded)

	require.NoError(t, kv.Append(t.Context(), s, nil, "p", Foo{Name: "P1", Age: 10}))
	require.NoError(t, kv.Append(t.Context(), s, nil, "p", Foo{Name: "P2", Age: 20}))

	loaded, err = kv.Read[Foo](t.Context(), s, nil, "p")
	require.NoError(t, err)
	require.Equal(t, []Foo{{Name: "P1", Age: 10}, {Name: "P2", Age: 20}}, loaded)
}

func TestAppend_encode_error(t *testing.T) {
	s := kv.NewMemStore()
	err := kv.Append(t.Context(), s, nil, "p", make(chan int))
	require.ErrorIs(t, err, kv.ErrCorruptValue)

	values, err := s.ReadList(t.Context(), "p")
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestRead_decode_error(t *testing.T) {
	s := kv.NewMemStore()
	require.NoError(t, s.AppendToList(t.Context(), "p", []byte("not json")))
	_, err := kv.Read[int](t.Context(), s, nil, "p")
	require.ErrorIs(t, err, kv.ErrCorruptValue)
	require.NotErrorIs(t, err, kv.ErrStorageUnavailable)
	require.ErrorContains(t, err, `failed to decode entry 0 of "p"`)
}
