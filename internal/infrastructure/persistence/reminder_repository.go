package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/utils"
)

// ReminderRepository stores scheduled SMS reminders
type ReminderRepository struct {
	db *sql.DB
}

// NewReminderRepository creates a new ReminderRepository
func NewReminderRepository(db *sql.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Insert schedules a reminder; the ID is generated when empty
func (r *ReminderRepository) Insert(ctx context.Context, rem *models.Reminder) error {
	if rem.ID == "" {
		rem.ID = utils.GenerateID()
	}
	if rem.Status == "" {
		rem.Status = constants.ReminderStatusPending
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, phone, message, scheduled_for, status, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, constants.TableReminder)

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		rem.ID, rem.Phone, rem.Message, rem.ScheduledFor.UTC(), rem.Status, rem.Attempts, rem.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}
	return nil
}

// Due returns pending reminders scheduled at or before now, oldest first
func (r *ReminderRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.Reminder, error) {
	query := fmt.Sprintf(`
		SELECT id, phone, message, scheduled_for, status, attempts, created_at
		FROM %s
		WHERE status = ? AND scheduled_for <= ?
		ORDER BY scheduled_for ASC
		LIMIT ?`, constants.TableReminder)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, constants.ReminderStatusPending, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()

	var out []*models.Reminder
	for rows.Next() {
		var rem models.Reminder
		var scheduled, created nullTime
		if err := rows.Scan(&rem.ID, &rem.Phone, &rem.Message, &scheduled, &rem.Status, &rem.Attempts, &created); err != nil {
			return nil, err
		}
		rem.ScheduledFor = scheduled.Time
		rem.CreatedAt = created.Time
		out = append(out, &rem)
	}
	return out, rows.Err()
}

// Claim flips a pending reminder to sending-in-progress by bumping attempts.
// It returns false when another dispatcher got there first.
func (r *ReminderRepository) Claim(ctx context.Context, id string, attempts int) (bool, error) {
	query := fmt.Sprintf("UPDATE %s SET attempts = ? WHERE id = ? AND status = ? AND attempts = ?", constants.TableReminder)
	res, err := conn(ctx, r.db).ExecContext(ctx, query, attempts+1, id, constants.ReminderStatusPending, attempts)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkSent records a successful delivery
func (r *ReminderRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, sent_at = ?, last_error = NULL WHERE id = ?", constants.TableReminder)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, constants.ReminderStatusSent, at.UTC(), id)
	return err
}

// MarkError stores the failure; final=true gives up on the reminder
func (r *ReminderRepository) MarkError(ctx context.Context, id string, errMessage string, final bool) error {
	status := constants.ReminderStatusPending
	if final {
		status = constants.ReminderStatusFailed
	}
	query := fmt.Sprintf("UPDATE %s SET status = ?, last_error = ? WHERE id = ?", constants.TableReminder)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, status, errMessage, id)
	return err
}

// CountByStatus returns the number of reminders in each status
func (r *ReminderRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	query := fmt.Sprintf("SELECT status, COUNT(*) FROM %s GROUP BY status", constants.TableReminder)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
