package postgres

import (
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/chatlog-go/ports/kv"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestNew_defaults(t *testing.T) {
	s := New(newMock(t))
	require.Equal(t, defaultTableName, s.table)

	s = New(newMock(t), WithTableName("custom"))
	require.Equal(t, `"custom"`, s.table)
}

func TestStore_EnsureSchema(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS chatlog_entries`)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, New(mock).EnsureSchema(t.Context()))
}

func TestStore_AppendToList(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO chatlog_entries (list_key, value) VALUES ($1, $2)`)).
		WithArgs("debasish", []byte("hi there")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, New(mock).AppendToList(t.Context(), "debasish", []byte("hi there")))
}

func TestStore_AppendToList_emptyKey(t *testing.T) {
	err := New(newMock(t)).AppendToList(t.Context(), "", []byte("x"))
	require.ErrorIs(t, err, kv.ErrKeyRequired)
}

func TestStore_AppendToList_unavailable(t *testing.T) {
	mock := newMock(t)
	cause := errors.New("connection refused")
	mock.ExpectExec("INSERT INTO chatlog_entries").
		WithArgs("k", []byte("x")).
		WillReturnError(cause)

	err := New(mock).AppendToList(t.Context(), "k", []byte("x"))
	require.ErrorIs(t, err, kv.ErrStorageUnavailable)
	require.ErrorIs(t, err, cause)
}

func TestStore_ReadList(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM chatlog_entries WHERE list_key = $1 ORDER BY seq ASC`)).
		WithArgs("debasish").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).
			AddRow([]byte("hi there")).
			AddRow([]byte("hi again")))

	values, err := New(mock).ReadList(t.Context(), "debasish")
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("hi there"), []byte("hi again")}, values)
}

func TestStore_ReadList_absent(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT value FROM chatlog_entries").
		WithArgs("nobody").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	values, err := New(mock).ReadList(t.Context(), "nobody")
	require.NoError(t, err)
	require.NotNil(t, values)
	require.Empty(t, values)
}

func TestStore_ReadList_unavailable(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT value FROM chatlog_entries").
		WithArgs("k").
		WillReturnError(errors.New("timeout"))

	_, err := New(mock).ReadList(t.Context(), "k")
	require.ErrorIs(t, err, kv.ErrStorageUnavailable)
}

func TestStore_Reset(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`TRUNCATE TABLE chatlog_entries RESTART IDENTITY`)).
		WillReturnResult(pgxmock.NewResult("TRUNCATE TABLE", 0))

	require.NoError(t, New(mock).Reset(t.Context()))
}
