package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/constants"
)

// ClinicRepository handles clinics and the staff attached to them
type ClinicRepository struct {
	db *sql.DB
}

// NewClinicRepository creates a new ClinicRepository
func NewClinicRepository(db *sql.DB) *ClinicRepository {
	return &ClinicRepository{db: db}
}

func scanClinic(row Scannable) (*models.Clinic, error) {
	var c models.Clinic
	var lat, lon sql.NullFloat64
	if err := row.Scan(&c.ID, &c.Name, &c.Address, &c.City, &lat, &lon); err != nil {
		return nil, err
	}
	c.Latitude = nullFloatPtr(lat)
	c.Longitude = nullFloatPtr(lon)
	return &c, nil
}

// List returns every clinic ordered by ID, the order IVR menus are read in
func (r *ClinicRepository) List(ctx context.Context) ([]*models.Clinic, error) {
	query := fmt.Sprintf("SELECT id, name, address, city, latitude, longitude FROM %s ORDER BY id", constants.TableClinic)
	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	defer rows.Close()

	clinics := make([]*models.Clinic, 0)
	for rows.Next() {
		c, err := scanClinic(rows)
		if err != nil {
			return nil, err
		}
		clinics = append(clinics, c)
	}
	return clinics, rows.Err()
}

// Get returns the clinic or nil
func (r *ClinicRepository) Get(ctx context.Context, id int64) (*models.Clinic, error) {
	query := fmt.Sprintf("SELECT id, name, address, city, latitude, longitude FROM %s WHERE id = ?", constants.TableClinic)
	c, err := scanClinic(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load clinic %d: %w", id, err)
	}
	return c, nil
}

const doctorSelect = `
	SELECT d.id, d.user_id, u.username, d.name, d.specialization, d.clinic_id, d.role
	FROM doctors d
	LEFT JOIN users u ON u.id = d.user_id`

func scanDoctor(row Scannable) (*models.Doctor, error) {
	var d models.Doctor
	var userID, clinicID sql.NullInt64
	var username sql.NullString
	if err := row.Scan(&d.ID, &userID, &username, &d.Name, &d.Specialization, &clinicID, &d.Role); err != nil {
		return nil, err
	}
	d.UserID = nullInt64Ptr(userID)
	d.ClinicID = nullInt64Ptr(clinicID)
	if userID.Valid {
		d.User = &models.UserRef{ID: userID.Int64, Username: username.String}
	}
	return &d, nil
}

func (r *ClinicRepository) queryDoctors(ctx context.Context, query string, args ...interface{}) ([]*models.Doctor, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	defer rows.Close()

	doctors := make([]*models.Doctor, 0)
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

// Doctors returns the doctors of a clinic ordered by ID
func (r *ClinicRepository) Doctors(ctx context.Context, clinicID int64) ([]*models.Doctor, error) {
	return r.queryDoctors(ctx, doctorSelect+" WHERE d.clinic_id = ? ORDER BY d.id", clinicID)
}

// AllDoctors returns every doctor that belongs to a clinic, grouped by clinic
func (r *ClinicRepository) AllDoctors(ctx context.Context) ([]*models.Doctor, error) {
	return r.queryDoctors(ctx, doctorSelect+" WHERE d.clinic_id IS NOT NULL ORDER BY d.clinic_id, d.id")
}

// GetDoctor returns the doctor or nil
func (r *ClinicRepository) GetDoctor(ctx context.Context, id int64) (*models.Doctor, error) {
	d, err := scanDoctor(conn(ctx, r.db).QueryRowContext(ctx, doctorSelect+" WHERE d.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load doctor %d: %w", id, err)
	}
	return d, nil
}

// DoctorByUser returns the doctor profile of a login, or nil
func (r *ClinicRepository) DoctorByUser(ctx context.Context, userID int64) (*models.Doctor, error) {
	d, err := scanDoctor(conn(ctx, r.db).QueryRowContext(ctx, doctorSelect+" WHERE d.user_id = ?", userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load doctor for user %d: %w", userID, err)
	}
	return d, nil
}

// ReceptionistByUser returns the receptionist profile of a login, or nil
func (r *ClinicRepository) ReceptionistByUser(ctx context.Context, userID int64) (*models.Receptionist, error) {
	query := fmt.Sprintf(`
		SELECT rc.id, rc.user_id, u.username, rc.clinic_id, rc.role
		FROM %s rc
		JOIN %s u ON u.id = rc.user_id
		WHERE rc.user_id = ?`, constants.TableReceptionist, constants.TableUser)

	var rc models.Receptionist
	var clinicID sql.NullInt64
	err := conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&rc.ID, &rc.UserID, &rc.Username, &clinicID, &rc.Role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load receptionist for user %d: %w", userID, err)
	}
	rc.ClinicID = nullInt64Ptr(clinicID)
	return &rc, nil
}

// LeastLoadedDoctor picks the clinic's doctor with the fewest tokens on date.
// Ties go to the lowest doctor ID. Returns nil when the clinic has no doctors.
func (r *ClinicRepository) LeastLoadedDoctor(ctx context.Context, clinicID int64, date string) (*models.Doctor, error) {
	query := fmt.Sprintf(`
		SELECT d.id, d.user_id, u.username, d.name, d.specialization, d.clinic_id, d.role
		FROM %s d
		LEFT JOIN %s u ON u.id = d.user_id
		LEFT JOIN %s t ON t.doctor_id = d.id AND t.date = ?
		WHERE d.clinic_id = ?
		GROUP BY d.id, d.user_id, u.username, d.name, d.specialization, d.clinic_id, d.role
		ORDER BY COUNT(t.id) ASC, d.id ASC
		LIMIT 1`, constants.TableDoctor, constants.TableUser, constants.TableToken)

	d, err := scanDoctor(conn(ctx, r.db).QueryRowContext(ctx, query, date, clinicID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick doctor for clinic %d: %w", clinicID, err)
	}
	return d, nil
}
