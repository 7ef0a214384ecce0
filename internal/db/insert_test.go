package db

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIfAbsent_Inserted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "test_sessions"`).
		WithArgs("teremok_test_results", int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	inserted, err := InsertIfAbsent(context.Background(), mock, "test_sessions",
		[]string{"legacy_source", "legacy_id"},
		[]string{"legacy_source", "legacy_id"},
		[]any{"teremok_test_results", int64(7)},
	)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIfAbsent_Conflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO "test_sessions"`).
		WithArgs("teremok_test_results", int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := InsertIfAbsent(context.Background(), mock, "test_sessions",
		[]string{"legacy_source", "legacy_id"},
		[]string{"legacy_source", "legacy_id"},
		[]any{"teremok_test_results", int64(7)},
	)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIfAbsent_ArgMismatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = InsertIfAbsent(context.Background(), mock, "test_sessions",
		[]string{"a", "b"}, []string{"a"}, []any{1})
	assert.Error(t, err)

	_, err = InsertIfAbsent(context.Background(), mock, "test_sessions",
		[]string{"a"}, nil, []any{1})
	assert.Error(t, err)
}
