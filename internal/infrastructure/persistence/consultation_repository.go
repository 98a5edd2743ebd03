package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/constants"
)

// ConsultationRepository handles consultations and their prescription items
type ConsultationRepository struct {
	db *sql.DB
}

// NewConsultationRepository creates a new ConsultationRepository
func NewConsultationRepository(db *sql.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// Insert stores the consultation and every item; run it inside a transaction
func (r *ConsultationRepository) Insert(ctx context.Context, c *models.Consultation) error {
	exec := conn(ctx, r.db)

	query := fmt.Sprintf("INSERT INTO %s (patient_id, doctor_id, date, notes) VALUES (?, ?, ?, ?)", constants.TableConsultation)
	res, err := exec.ExecContext(ctx, query, c.PatientID, c.DoctorID, c.Date.UTC(), c.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert consultation: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	itemQuery := fmt.Sprintf(`
		INSERT INTO %s (consultation_id, medicine_name, dosage, duration_days, timing_morning, timing_afternoon, timing_evening)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, constants.TablePrescriptionItem)

	for _, item := range c.Items {
		item.ConsultationID = c.ID
		res, err := exec.ExecContext(ctx, itemQuery, c.ID, item.MedicineName, item.Dosage, item.DurationDays,
			item.TimingMorning, item.TimingAfternoon, item.TimingEvening)
		if err != nil {
			return fmt.Errorf("failed to insert prescription item %q: %w", item.MedicineName, err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

// ListForPatient returns the patient's consultations, newest first, with doctor and items
func (r *ConsultationRepository) ListForPatient(ctx context.Context, patientID int64) ([]*models.Consultation, error) {
	query := fmt.Sprintf(`
		SELECT c.id, c.patient_id, c.doctor_id, c.date, c.notes,
			d.name, d.specialization, d.user_id, u.username
		FROM %s c
		JOIN %s d ON d.id = c.doctor_id
		LEFT JOIN %s u ON u.id = d.user_id
		WHERE c.patient_id = ?
		ORDER BY c.date DESC, c.id DESC`, constants.TableConsultation, constants.TableDoctor, constants.TableUser)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load consultations: %w", err)
	}

	consultations := make([]*models.Consultation, 0)
	byID := make(map[int64]*models.Consultation)
	for rows.Next() {
		var c models.Consultation
		var date nullTime
		var doctorUser sql.NullInt64
		var username sql.NullString
		d := &models.Doctor{}
		if err := rows.Scan(&c.ID, &c.PatientID, &c.DoctorID, &date, &c.Notes,
			&d.Name, &d.Specialization, &doctorUser, &username); err != nil {
			rows.Close()
			return nil, err
		}
		c.Date = date.Time
		d.ID = c.DoctorID
		d.UserID = nullInt64Ptr(doctorUser)
		if doctorUser.Valid {
			d.User = &models.UserRef{ID: doctorUser.Int64, Username: username.String}
		}
		c.Doctor = d
		c.Items = make([]*models.PrescriptionItem, 0)
		consultations = append(consultations, &c)
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(consultations) == 0 {
		return consultations, nil
	}

	// Items are loaded after the first cursor is closed; SQLite has a single connection
	ids := make([]interface{}, 0, len(consultations))
	for _, c := range consultations {
		ids = append(ids, c.ID)
	}
	itemQuery := fmt.Sprintf(`
		SELECT id, consultation_id, medicine_name, dosage, duration_days, timing_morning, timing_afternoon, timing_evening
		FROM %s WHERE consultation_id IN (%s) ORDER BY id`, constants.TablePrescriptionItem, placeholders(len(ids)))

	itemRows, err := conn(ctx, r.db).QueryContext(ctx, itemQuery, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to load prescription items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it models.PrescriptionItem
		if err := itemRows.Scan(&it.ID, &it.ConsultationID, &it.MedicineName, &it.Dosage, &it.DurationDays,
			&it.TimingMorning, &it.TimingAfternoon, &it.TimingEvening); err != nil {
			return nil, err
		}
		if c := byID[it.ConsultationID]; c != nil {
			c.Items = append(c.Items, &it)
		}
	}
	return consultations, itemRows.Err()
}
