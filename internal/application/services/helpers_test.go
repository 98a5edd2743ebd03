package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinicq/backend/internal/infrastructure/persistence"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(_ context.Context, to, message string) error {
	return m.Called(to, message).Error(0)
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newTestOutbox(db *sql.DB, bus *EventBus) *OutboxService {
	if bus == nil {
		bus = NewEventBus(nil)
	}
	return NewOutboxService(persistence.NewOutboxRepository(db), bus, persistence.NewTransactionManager(db), nil, nil)
}

func fixedClock(at time.Time) clock {
	return clock{now: func() time.Time { return at }, loc: at.Location()}
}
