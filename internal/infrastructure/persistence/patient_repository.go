package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/constants"
)

const patientSelect = `
	SELECT p.id, p.user_id, u.username, p.name, p.age, p.phone_number, p.is_phone_verified, p.otp, p.otp_expiry
	FROM patients p
	LEFT JOIN users u ON u.id = p.user_id`

// PatientRepository handles database operations for patients
type PatientRepository struct {
	db *sql.DB
}

// NewPatientRepository creates a new PatientRepository
func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func scanPatient(row Scannable) (*models.Patient, error) {
	var p models.Patient
	var userID sql.NullInt64
	var username, phone, otp sql.NullString
	var otpExpiry nullTime
	if err := row.Scan(&p.ID, &userID, &username, &p.Name, &p.Age, &phone, &p.IsPhoneVerified, &otp, &otpExpiry); err != nil {
		return nil, err
	}
	p.UserID = nullInt64Ptr(userID)
	if userID.Valid {
		p.User = &models.UserRef{ID: userID.Int64, Username: username.String}
	}
	p.PhoneNumber = nullStringPtr(phone)
	p.OTP = nullStringPtr(otp)
	p.OTPExpiry = otpExpiry.ptr()
	return &p, nil
}

func (r *PatientRepository) findOne(ctx context.Context, where string, arg interface{}) (*models.Patient, error) {
	p, err := scanPatient(conn(ctx, r.db).QueryRowContext(ctx, patientSelect+" WHERE "+where+" LIMIT 1", arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	return p, nil
}

// Get returns the patient or nil
func (r *PatientRepository) Get(ctx context.Context, id int64) (*models.Patient, error) {
	return r.findOne(ctx, "p.id = ?", id)
}

// GetByUser returns the patient profile of a login, or nil
func (r *PatientRepository) GetByUser(ctx context.Context, userID int64) (*models.Patient, error) {
	return r.findOne(ctx, "p.user_id = ?", userID)
}

// GetByPhone returns the patient owning a phone number, or nil
func (r *PatientRepository) GetByPhone(ctx context.Context, phone string) (*models.Patient, error) {
	return r.findOne(ctx, "p.phone_number = ?", phone)
}

// PhoneTaken reports whether a patient with an active login already uses phone
func (r *PatientRepository) PhoneTaken(ctx context.Context, phone string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS(
			SELECT 1 FROM %s p JOIN %s u ON u.id = p.user_id
			WHERE p.phone_number = ? AND u.is_active = ?
		)`, constants.TablePatient, constants.TableUser)

	var exists bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, phone, true).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts a patient and returns its ID
func (r *PatientRepository) Create(ctx context.Context, p *models.Patient) (int64, error) {
	query := fmt.Sprintf(
		"INSERT INTO %s (user_id, name, age, phone_number, is_phone_verified) VALUES (?, ?, ?, ?, ?)",
		constants.TablePatient)

	res, err := conn(ctx, r.db).ExecContext(ctx, query, p.UserID, p.Name, p.Age, p.PhoneNumber, p.IsPhoneVerified)
	if err != nil {
		return 0, fmt.Errorf("failed to create patient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

// AttachUser links an existing (walk-in) patient record to a new login
func (r *PatientRepository) AttachUser(ctx context.Context, patientID, userID int64, name string, age int) error {
	query := fmt.Sprintf("UPDATE %s SET user_id = ?, name = ?, age = ? WHERE id = ?", constants.TablePatient)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, userID, name, age, patientID)
	return err
}

// SetOTP stores a one-time code and its expiry
func (r *PatientRepository) SetOTP(ctx context.Context, patientID int64, code string, expiry time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET otp = ?, otp_expiry = ? WHERE id = ?", constants.TablePatient)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, code, expiry.UTC(), patientID)
	return err
}

// MarkPhoneVerified clears the code and flags the phone as verified
func (r *PatientRepository) MarkPhoneVerified(ctx context.Context, patientID int64) error {
	query := fmt.Sprintf("UPDATE %s SET is_phone_verified = ?, otp = NULL, otp_expiry = NULL WHERE id = ?", constants.TablePatient)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, true, patientID)
	return err
}
