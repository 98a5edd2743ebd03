package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicq/backend/internal/domain/models"
)

func TestUserRepository_FindByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	query := regexp.QuoteMeta("SELECT id, username, email, password, is_active, is_superuser, date_joined FROM users WHERE username = ? LIMIT 1")
	joined := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(query).WithArgs("drrao").WillReturnRows(
		sqlmock.NewRows([]string{"id", "username", "email", "password", "is_active", "is_superuser", "date_joined"}).
			AddRow(int64(3), "drrao", "", "$2a$10$hash", true, false, joined))
	mock.ExpectQuery(query).WithArgs("ghost").WillReturnRows(
		sqlmock.NewRows([]string{"id", "username", "email", "password", "is_active", "is_superuser", "date_joined"}))

	u, err := repo.FindByUsername(context.Background(), "drrao")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(3), u.ID)
	assert.Equal(t, "$2a$10$hash", u.PasswordHash)
	assert.Equal(t, joined, u.DateJoined)

	u, err = repo.FindByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_UsernameTakenOnlyCountsActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE username = ? AND is_active = ?)")).
		WithArgs("asha", true).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	taken, err := repo.UsernameTaken(context.Background(), "asha")
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestUserRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewUserRepository(db)

	joined := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (username, email, password, is_active, is_superuser, date_joined)")).
		WithArgs("asha", "", "hash", true, false, joined).
		WillReturnResult(sqlmock.NewResult(11, 1))

	u := &models.User{Username: "asha", PasswordHash: "hash", IsActive: true, DateJoined: joined}
	id, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.Equal(t, int64(11), u.ID)
}

func TestSessionRepository_GetSessionMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSessionRepository(db)

	mock.ExpectQuery("FROM user_sessions").WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "is_revoked", "last_activity", "created_at"}))

	s, err := repo.GetSession(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.Nil(t, s)
}
