package purchase_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/deskhive/deskhive-api/internal/domain/purchase"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestCompleteIfPendingWinsRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := purchase.NewRepository(db)

	id := uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE purchases").
		WithArgs(id, purchase.StatusCompleted, "card", sqlmock.AnyArg(), sqlmock.AnyArg(), purchase.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	won, err := repo.CompleteIfPending(context.Background(), id, "card", now, now.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteIfPendingLosesRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := purchase.NewRepository(db)

	id := uuid.New()
	now := time.Now()

	// Zero rows: the row already left pending, whether via a concurrent
	// winner or an earlier failure.
	mock.ExpectExec("UPDATE purchases").
		WithArgs(id, purchase.StatusCompleted, "card", sqlmock.AnyArg(), sqlmock.AnyArg(), purchase.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.CompleteIfPending(context.Background(), id, "card", now, now.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.False(t, won)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailIfPendingDoesNotTouchCompleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := purchase.NewRepository(db)

	id := uuid.New()

	mock.ExpectExec("UPDATE purchases").
		WithArgs(id, purchase.StatusFailed, purchase.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	moved, err := repo.FailIfPending(context.Background(), id)
	require.NoError(t, err)
	require.False(t, moved)
	require.NoError(t, mock.ExpectationsWereMet())
}
