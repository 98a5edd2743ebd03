package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/utils"
)

// OutboxEvent represents a persisted event record
type OutboxEvent struct {
	ID           string
	EventType    string
	Payload      string
	Status       string
	RetryCount   int
	ErrorMessage string
	CreatedDate  time.Time
}

// OutboxRepository handles database operations for the outbox pattern
type OutboxRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db, now: time.Now}
}

// Enqueue inserts a new event into the outbox using the transaction in ctx when present
func (r *OutboxRepository) Enqueue(ctx context.Context, eventType string, payload interface{}) (string, error) {
	id := utils.GenerateID()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_type, payload, status, retry_count, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, 0, ?, ?)`, constants.TableOutboxEvent)

	now := r.now().UTC()
	_, err = conn(ctx, r.db).ExecContext(ctx, query, id, eventType, string(payloadJSON), constants.OutboxStatusPending, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue event: %w", err)
	}
	return id, nil
}

// GetPendingEvents retrieves pending events ordered by creation time
func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, event_type, payload, retry_count
		FROM %s
		WHERE status = ?
		ORDER BY created_date ASC
		LIMIT ?`, constants.TableOutboxEvent)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, constants.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.RetryCount); err != nil {
			return nil, err
		}
		e.Status = constants.OutboxStatusPending
		events = append(events, e)
	}
	return events, rows.Err()
}

// ClaimEvent locks a pending event for the current transaction.
// A conditional UPDATE is used instead of SELECT ... FOR UPDATE SKIP LOCKED,
// which SQLite lacks; it returns false when the event is gone or already handled.
func (r *OutboxRepository) ClaimEvent(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET last_modified_date = ?
		WHERE id = ? AND status = ?`, constants.TableOutboxEvent)

	res, err := conn(ctx, r.db).ExecContext(ctx, query, r.now().UTC(), id, constants.OutboxStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateStatus updates the status and related fields of an event
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id string, status string, errMessage string) error {
	var query string
	var args []interface{}
	now := r.now().UTC()

	switch status {
	case constants.OutboxStatusProcessed:
		query = fmt.Sprintf(`
			UPDATE %s
			SET status = ?, processed_date = ?, last_modified_date = ?
			WHERE id = ?`, constants.TableOutboxEvent)
		args = []interface{}{status, now, now, id}
	case constants.OutboxStatusFailed:
		query = fmt.Sprintf(`
			UPDATE %s
			SET status = ?, error_message = ?, last_modified_date = ?
			WHERE id = ?`, constants.TableOutboxEvent)
		args = []interface{}{status, errMessage, now, id}
	default:
		return fmt.Errorf("unsupported status update: %s", status)
	}

	_, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

// IncrementRetry stores the new retry count and error message
func (r *OutboxRepository) IncrementRetry(ctx context.Context, id string, newCount int, errMessage string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET retry_count = ?, error_message = ?, last_modified_date = ?
		WHERE id = ?`, constants.TableOutboxEvent)

	_, err := conn(ctx, r.db).ExecContext(ctx, query, newCount, errMessage, r.now().UTC(), id)
	return err
}

// CleanupProcessed deletes processed events older than cutoff
func (r *OutboxRepository) CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE status = ? AND processed_date < ?`, constants.TableOutboxEvent)

	result, err := conn(ctx, r.db).ExecContext(ctx, query, constants.OutboxStatusProcessed, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
