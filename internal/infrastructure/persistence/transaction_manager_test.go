package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTM(t *testing.T) (*TransactionManager, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	tm := NewTransactionManager(db)
	tm.backoff = time.Millisecond
	return tm, mock
}

func TestWithTransaction_CommitsAndInjectsTx(t *testing.T) {
	tm, mock := newTestTM(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		assert.NotNil(t, ExtractTx(ctx))
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	tm, mock := newTestTM(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := tm.WithTransaction(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_ReusesOuterTx(t *testing.T) {
	tm, mock := newTestTM(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := tm.WithTransaction(context.Background(), func(outer context.Context) error {
		return tm.WithTransaction(outer, func(inner context.Context) error {
			assert.Same(t, ExtractTx(outer), ExtractTx(inner))
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_RetriesDuplicateKey(t *testing.T) {
	tm, mock := newTestTM(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err := tm.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '3-1-2024-01-01'"}
		}
		return nil
	}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	tm, mock := newTestTM(t)

	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	calls := 0
	err := tm.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 retries")
	assert.Equal(t, 3, calls)
}

func TestWithRetry_DoesNotRetryOtherErrors(t *testing.T) {
	tm, mock := newTestTM(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	calls := 0
	err := tm.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("validation failed")
	}, 5)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsUniqueViolation(&mysql.MySQLError{Number: 1213}))
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: tokens.token_number")))
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, isDeadlock(errors.New("database is locked (5) (SQLITE_BUSY)")))
}

func TestRetryDelay_JittersWithinExponentialWindow(t *testing.T) {
	base := 100 * time.Millisecond
	seen := map[time.Duration]bool{}
	for i := 0; i < 50; i++ {
		d := retryDelay(base, 2)
		assert.GreaterOrEqual(t, d, 400*time.Millisecond)
		assert.Less(t, d, 800*time.Millisecond)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "delays should not all be equal")
	assert.Zero(t, retryDelay(0, 3))
}
