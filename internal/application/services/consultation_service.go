package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/pkg/auth"
	"github.com/clinicq/backend/pkg/errors"
)

// ConsultationService records consultations and prescription history
type ConsultationService struct {
	consultations *persistence.ConsultationRepository
	patients      *persistence.PatientRepository
	clinics       *persistence.ClinicRepository
	txManager     *persistence.TransactionManager
	tokens        *TokenService
	reminders     *ReminderService
	logger        *zap.Logger
	now           func() time.Time
}

// NewConsultationService creates a new ConsultationService
func NewConsultationService(
	consultations *persistence.ConsultationRepository,
	patients *persistence.PatientRepository,
	clinics *persistence.ClinicRepository,
	txManager *persistence.TransactionManager,
	tokens *TokenService,
	reminders *ReminderService,
	logger *zap.Logger,
) *ConsultationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsultationService{
		consultations: consultations,
		patients:      patients,
		clinics:       clinics,
		txManager:     txManager,
		tokens:        tokens,
		reminders:     reminders,
		logger:        logger,
		now:           time.Now,
	}
}

// PrescriptionInput is one prescribed medicine
type PrescriptionInput struct {
	MedicineName    string `json:"medicine_name"`
	Dosage          string `json:"dosage"`
	DurationDays    int    `json:"duration_days"`
	TimingMorning   bool   `json:"timing_morning"`
	TimingAfternoon bool   `json:"timing_afternoon"`
	TimingEvening   bool   `json:"timing_evening"`
}

// MaxDurationDays bounds a prescription; each day expands into reminder rows
const MaxDurationDays = 365

// ConsultationInput is the doctor's consultation form
type ConsultationInput struct {
	PatientID         int64               `json:"patient"`
	Notes             string              `json:"notes"`
	PrescriptionItems []PrescriptionInput `json:"prescription_items"`
}

func (in ConsultationInput) items() ([]*models.PrescriptionItem, error) {
	items := make([]*models.PrescriptionItem, 0, len(in.PrescriptionItems))
	for i, p := range in.PrescriptionItems {
		name := strings.TrimSpace(p.MedicineName)
		if name == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("prescription_items[%d].medicine_name", i), "This field is required.")
		}
		if p.DurationDays < 0 || p.DurationDays > MaxDurationDays {
			return nil, errors.NewValidationError(fmt.Sprintf("prescription_items[%d].duration_days", i),
				fmt.Sprintf("Must be between 0 and %d.", MaxDurationDays))
		}
		items = append(items, &models.PrescriptionItem{
			MedicineName:    name,
			Dosage:          p.Dosage,
			DurationDays:    p.DurationDays,
			TimingMorning:   p.TimingMorning,
			TimingAfternoon: p.TimingAfternoon,
			TimingEvening:   p.TimingEvening,
		})
	}
	return items, nil
}

// Create records a consultation by the signed-in doctor. In the same transaction
// the patient's active token of today is completed and dose reminders are scheduled.
func (s *ConsultationService) Create(ctx context.Context, user auth.UserSession, in ConsultationInput) (*models.Consultation, error) {
	if in.PatientID == 0 || strings.TrimSpace(in.Notes) == "" {
		return nil, errors.NewBadRequest("Patient and notes are required.")
	}
	items, err := in.items()
	if err != nil {
		return nil, err
	}

	patient, err := s.patients.Get(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, errors.NewNotFoundMessage("Patient not found.")
	}
	doctor, err := s.clinics.DoctorByUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, errors.NewForbidden("Logged-in user is not a doctor.")
	}

	c := &models.Consultation{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Date:      s.now().UTC(),
		Notes:     in.Notes,
		Doctor:    doctor,
		Items:     items,
	}

	var scheduled int
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.consultations.Insert(ctx, c); err != nil {
			return err
		}
		if _, err := s.tokens.CompleteActiveForPatient(ctx, patient.ID); err != nil {
			return err
		}
		n, err := s.reminders.Schedule(ctx, patient, items)
		scheduled = n
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("[Consultation] recorded",
		zap.Int64("consultation_id", c.ID), zap.Int64("patient_id", patient.ID), zap.Int("reminders", scheduled))
	return c, nil
}

// MyHistory returns the signed-in patient's consultations, newest first
func (s *ConsultationService) MyHistory(ctx context.Context, user auth.UserSession) ([]*models.Consultation, error) {
	if !user.IsPatient() {
		return []*models.Consultation{}, nil
	}
	patient, err := s.patients.GetByUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return []*models.Consultation{}, nil
	}
	return s.consultations.ListForPatient(ctx, patient.ID)
}

// PatientHistory returns any patient's consultations; staff only
func (s *ConsultationService) PatientHistory(ctx context.Context, user auth.UserSession, patientID int64) ([]*models.Consultation, error) {
	if !user.IsStaff() {
		return nil, errors.NewPermissionError("view", "patient history")
	}
	return s.consultations.ListForPatient(ctx, patientID)
}
