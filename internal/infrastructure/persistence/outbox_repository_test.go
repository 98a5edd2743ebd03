package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepository_Enqueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	repo := NewOutboxRepository(db)
	repo.now = func() time.Time { return now }

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_date, last_modified_date)")).
		WithArgs(sqlmock.AnyArg(), "sms.requested", `{"to":"+1555"}`, "pending", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Enqueue(context.Background(), "sms.requested", map[string]string{"to": "+1555"})
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewOutboxRepository(db)

	q := regexp.QuoteMeta("UPDATE outbox_events SET last_modified_date = ?")
	mock.ExpectExec(q).WithArgs(sqlmock.AnyArg(), "a", "pending").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(sqlmock.AnyArg(), "b", "pending").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.ClaimEvent(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimEvent(context.Background(), "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOutboxRepository_UpdateStatusRejectsUnknown(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewOutboxRepository(db).UpdateStatus(context.Background(), "a", "weird", "")
	assert.Error(t, err)
}

func TestFixtureRepository_InsertThenUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewFixtureRepository(db)

	exists := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM clinics WHERE id = ?)")
	mock.ExpectQuery(exists).WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO clinics (id, name, city) VALUES (?, ?, ?)")).
		WithArgs(int64(1), "City Clinic", "Pune").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(exists).WithArgs(int64(1)).WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE clinics SET name = ?, city = ? WHERE id = ?")).
		WithArgs("City Clinic", "Mumbai", int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	found, err := repo.Exists(ctx, "clinics", 1)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, repo.Insert(ctx, "clinics", 1, []string{"name", "city"}, []interface{}{"City Clinic", "Pune"}))

	found, err = repo.Exists(ctx, "clinics", 1)
	require.NoError(t, err)
	assert.True(t, found)
	require.NoError(t, repo.Update(ctx, "clinics", 1, []string{"name", "city"}, []interface{}{"City Clinic", "Mumbai"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderRepository_ClaimIsConditional(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewReminderRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reminders SET attempts = ? WHERE id = ? AND status = ? AND attempts = ?")).
		WithArgs(1, "r1", "pending", 0).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Claim(context.Background(), "r1", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}
