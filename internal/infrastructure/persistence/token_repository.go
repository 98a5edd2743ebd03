package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/clinicq/backend/internal/domain"
	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/constants"
)

const tokenSelect = `
	SELECT t.id, t.patient_id, t.doctor_id, t.clinic_id, t.token_number, t.date, t.created_at,
		t.completed_at, t.appointment_time, t.status, t.distance_km,
		p.name, p.age, p.phone_number, p.user_id, u.username, d.name, c.name
	FROM tokens t
	JOIN patients p ON p.id = t.patient_id
	LEFT JOIN users u ON u.id = p.user_id
	JOIN doctors d ON d.id = t.doctor_id
	JOIN clinics c ON c.id = t.clinic_id`

// TokenRepository handles queue tokens
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func scanToken(row Scannable) (*models.Token, error) {
	var t models.Token
	var created, completed nullTime
	var apptTime, phone, username sql.NullString
	var distance sql.NullFloat64
	var userID sql.NullInt64
	var status string
	p := &models.Patient{}

	if err := row.Scan(
		&t.ID, &t.PatientID, &t.DoctorID, &t.ClinicID, &t.TokenNumber, &t.Date, &created,
		&completed, &apptTime, &status, &distance,
		&p.Name, &p.Age, &phone, &userID, &username, &t.DoctorName, &t.ClinicName,
	); err != nil {
		return nil, err
	}

	t.CreatedAt = created.Time
	t.CompletedAt = completed.ptr()
	t.AppointmentTime = nullStringPtr(apptTime)
	t.Status = domain.TokenStatus(status)
	t.DistanceKm = nullFloatPtr(distance)

	p.ID = t.PatientID
	p.PhoneNumber = nullStringPtr(phone)
	p.UserID = nullInt64Ptr(userID)
	if userID.Valid {
		p.User = &models.UserRef{ID: userID.Int64, Username: username.String}
	}
	t.Patient = p
	return &t, nil
}

func statusArgs(statuses []domain.TokenStatus) (string, []interface{}) {
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return placeholders(len(statuses)), args
}

func (r *TokenRepository) queryTokens(ctx context.Context, query string, args ...interface{}) ([]*models.Token, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]*models.Token, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *TokenRepository) queryToken(ctx context.Context, query string, args ...interface{}) (*models.Token, error) {
	t, err := scanToken(conn(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return t, nil
}

// NextNumber returns 1 + the highest token number issued by the clinic on date.
// Callers insert in the same transaction; the unique key on
// (token_number, clinic_id, date) rejects a concurrent duplicate.
func (r *TokenRepository) NextNumber(ctx context.Context, clinicID int64, date string) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(token_number), 0) FROM %s WHERE clinic_id = ? AND date = ?", constants.TableToken)
	var last int
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, clinicID, date).Scan(&last); err != nil {
		return 0, fmt.Errorf("failed to compute next token number: %w", err)
	}
	return last + 1, nil
}

// Insert stores a new token and sets its ID
func (r *TokenRepository) Insert(ctx context.Context, t *models.Token) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (patient_id, doctor_id, clinic_id, token_number, date, created_at, appointment_time, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableToken)

	res, err := conn(ctx, r.db).ExecContext(ctx, query,
		t.PatientID, t.DoctorID, t.ClinicID, t.TokenNumber, t.Date, t.CreatedAt.UTC(), t.AppointmentTime, string(t.Status))
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// Get returns the token or nil
func (r *TokenRepository) Get(ctx context.Context, id int64) (*models.Token, error) {
	return r.queryToken(ctx, tokenSelect+" WHERE t.id = ?", id)
}

// GetForClinic returns the token only if it belongs to clinicID on date
func (r *TokenRepository) GetForClinic(ctx context.Context, id, clinicID int64, date string) (*models.Token, error) {
	return r.queryToken(ctx, tokenSelect+" WHERE t.id = ? AND t.clinic_id = ? AND t.date = ?", id, clinicID, date)
}

// LatestForPatient returns the patient's most recent token on date in one of statuses
func (r *TokenRepository) LatestForPatient(ctx context.Context, patientID int64, date string, statuses []domain.TokenStatus) (*models.Token, error) {
	in, args := statusArgs(statuses)
	query := tokenSelect + " WHERE t.patient_id = ? AND t.date = ? AND t.status IN (" + in + ") ORDER BY t.created_at DESC, t.id DESC LIMIT 1"
	return r.queryToken(ctx, query, append([]interface{}{patientID, date}, args...)...)
}

// HasActive reports whether the patient holds a token on date that is neither completed nor cancelled
func (r *TokenRepository) HasActive(ctx context.Context, patientID int64, date string) (bool, error) {
	query := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE patient_id = ? AND date = ? AND status NOT IN (?, ?))",
		constants.TableToken)
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx, query, patientID, date,
		string(domain.StatusCompleted), string(domain.StatusCancelled)).Scan(&exists)
	return exists, err
}

// UpdateStatus writes a new status; completedAt is stored when non-nil
func (r *TokenRepository) UpdateStatus(ctx context.Context, id int64, status domain.TokenStatus, completedAt *time.Time) error {
	var err error
	if completedAt != nil {
		query := fmt.Sprintf("UPDATE %s SET status = ?, completed_at = ? WHERE id = ?", constants.TableToken)
		_, err = conn(ctx, r.db).ExecContext(ctx, query, string(status), completedAt.UTC(), id)
	} else {
		query := fmt.Sprintf("UPDATE %s SET status = ? WHERE id = ?", constants.TableToken)
		_, err = conn(ctx, r.db).ExecContext(ctx, query, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update token %d: %w", id, err)
	}
	return nil
}

// ConfirmArrival marks the token confirmed and records the measured distance
func (r *TokenRepository) ConfirmArrival(ctx context.Context, id int64, distanceKm float64) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, distance_km = ? WHERE id = ?", constants.TableToken)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, string(domain.StatusConfirmed), distanceKm, id)
	return err
}

// ListForClinic returns the clinic's tokens on date in the given statuses, oldest first
func (r *TokenRepository) ListForClinic(ctx context.Context, clinicID int64, date string, statuses []domain.TokenStatus) ([]*models.Token, error) {
	in, args := statusArgs(statuses)
	query := tokenSelect + " WHERE t.clinic_id = ? AND t.date = ? AND t.status IN (" + in + ") ORDER BY t.created_at, t.id"
	return r.queryTokens(ctx, query, append([]interface{}{clinicID, date}, args...)...)
}

// LiveQueue returns the anonymized queue of a doctor ordered by token number
func (r *TokenRepository) LiveQueue(ctx context.Context, doctorID int64, date string, statuses []domain.TokenStatus) ([]models.QueueEntry, error) {
	in, args := statusArgs(statuses)
	query := fmt.Sprintf(
		"SELECT id, token_number, status, appointment_time FROM %s WHERE doctor_id = ? AND date = ? AND status IN (%s) ORDER BY token_number",
		constants.TableToken, in)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, append([]interface{}{doctorID, date}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load live queue: %w", err)
	}
	defer rows.Close()

	queue := make([]models.QueueEntry, 0)
	for rows.Next() {
		var e models.QueueEntry
		var number int
		var status string
		var appt sql.NullString
		if err := rows.Scan(&e.ID, &number, &status, &appt); err != nil {
			return nil, err
		}
		e.TokenNumber = strconv.Itoa(number)
		e.Status = domain.TokenStatus(status)
		e.AppointmentTime = nullStringPtr(appt)
		queue = append(queue, e)
	}
	return queue, rows.Err()
}

// BookedTimes returns the appointment times a doctor already has on date (cancelled excluded)
func (r *TokenRepository) BookedTimes(ctx context.Context, doctorID int64, date string) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT appointment_time FROM %s WHERE doctor_id = ? AND date = ? AND appointment_time IS NOT NULL AND status <> ?",
		constants.TableToken)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, doctorID, date, string(domain.StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("failed to load booked times: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountForClinic returns how many tokens the clinic issued on date
func (r *TokenRepository) CountForClinic(ctx context.Context, clinicID int64, date string) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE clinic_id = ? AND date = ?", constants.TableToken)
	var n int64
	err := conn(ctx, r.db).QueryRowContext(ctx, query, clinicID, date).Scan(&n)
	return n, err
}

// CompletedWaits returns completed_at - created_at for the clinic's completed tokens on date
func (r *TokenRepository) CompletedWaits(ctx context.Context, clinicID int64, date string) ([]time.Duration, error) {
	query := fmt.Sprintf(
		"SELECT created_at, completed_at FROM %s WHERE clinic_id = ? AND date = ? AND status = ? AND completed_at IS NOT NULL",
		constants.TableToken)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, clinicID, date, string(domain.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to load completed tokens: %w", err)
	}
	defer rows.Close()

	var waits []time.Duration
	for rows.Next() {
		var created, completed nullTime
		if err := rows.Scan(&created, &completed); err != nil {
			return nil, err
		}
		waits = append(waits, completed.Time.Sub(created.Time))
	}
	return waits, rows.Err()
}

// StatusCounts returns token counts per status for the clinic on date
func (r *TokenRepository) StatusCounts(ctx context.Context, clinicID int64, date string) (map[string]int64, error) {
	query := fmt.Sprintf("SELECT status, COUNT(*) FROM %s WHERE clinic_id = ? AND date = ? GROUP BY status", constants.TableToken)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, clinicID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to count tokens: %w", err)
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

// DoctorWorkload returns token counts per doctor for the clinic on date, busiest first
func (r *TokenRepository) DoctorWorkload(ctx context.Context, clinicID int64, date string) ([]models.DoctorLoad, error) {
	query := fmt.Sprintf(`
		SELECT d.name, COUNT(t.id) AS cnt
		FROM %s t JOIN %s d ON d.id = t.doctor_id
		WHERE t.clinic_id = ? AND t.date = ?
		GROUP BY d.id, d.name
		ORDER BY cnt DESC, d.name`, constants.TableToken, constants.TableDoctor)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, clinicID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load doctor workload: %w", err)
	}
	defer rows.Close()

	loads := make([]models.DoctorLoad, 0)
	for rows.Next() {
		var l models.DoctorLoad
		if err := rows.Scan(&l.DoctorName, &l.Count); err != nil {
			return nil, err
		}
		loads = append(loads, l)
	}
	return loads, rows.Err()
}
