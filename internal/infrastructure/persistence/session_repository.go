package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/constants"
)

// SessionRepository handles database operations for user sessions
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// InsertSession creates a new session in the database
func (r *SessionRepository) InsertSession(ctx context.Context, session *models.Session) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, expires_at, is_revoked, last_activity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		constants.TableSession)

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.ExpiresAt.UTC(),
		session.IsRevoked,
		session.LastActivity,
		session.CreatedAt.UTC(),
	)
	return err
}

// GetSession retrieves a session by its ID (the JWT jti claim)
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, expires_at, is_revoked, last_activity, created_at
		FROM %s
		WHERE id = ? LIMIT 1`,
		constants.TableSession)

	var s models.Session
	var expires, lastActivity, created nullTime

	err := conn(ctx, r.db).QueryRowContext(ctx, query, sessionID).Scan(
		&s.ID,
		&s.UserID,
		&expires,
		&s.IsRevoked,
		&lastActivity,
		&created,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	s.ExpiresAt = expires.Time
	s.LastActivity = lastActivity.ptr()
	s.CreatedAt = created.Time
	return &s, nil
}

// RevokeSession marks a session as revoked
func (r *SessionRepository) RevokeSession(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("UPDATE %s SET is_revoked = ? WHERE id = ?", constants.TableSession)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, true, sessionID)
	return err
}

// UpdateLastActivity updates the last activity timestamp
func (r *SessionRepository) UpdateLastActivity(ctx context.Context, sessionID string, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET last_activity = ? WHERE id = ?", constants.TableSession)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, at.UTC(), sessionID)
	return err
}

// DeleteExpired removes sessions that expired before cutoff
func (r *SessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", constants.TableSession)
	res, err := conn(ctx, r.db).ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
