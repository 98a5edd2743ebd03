package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain"
	"github.com/clinicq/backend/internal/domain/events"
	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/pkg/auth"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/errors"
	"github.com/clinicq/backend/pkg/geo"
)

// Statuses shown on the staff dashboard and in the patient-facing queue
var (
	dashboardStatuses  = []domain.TokenStatus{domain.StatusWaiting, domain.StatusConfirmed}
	cancelableStatuses = []domain.TokenStatus{domain.StatusWaiting, domain.StatusConfirmed}
	liveQueueStatuses  = []domain.TokenStatus{domain.StatusWaiting, domain.StatusConfirmed, domain.StatusInConsultancy}
	consultedStatuses  = []domain.TokenStatus{domain.StatusWaiting, domain.StatusConfirmed, domain.StatusInConsultancy}
)

// TokenService issues queue tokens and moves them through their lifecycle
type TokenService struct {
	tokens       *persistence.TokenRepository
	patients     *persistence.PatientRepository
	clinics      *persistence.ClinicRepository
	txManager    *persistence.TransactionManager
	outbox       *OutboxService
	eventBus     *EventBus
	stateMachine *domain.TokenStateMachine
	arrivalKm    float64
	logger       *zap.Logger
	clock        clock
}

// NewTokenService creates a new TokenService
func NewTokenService(
	tokens *persistence.TokenRepository,
	patients *persistence.PatientRepository,
	clinics *persistence.ClinicRepository,
	txManager *persistence.TransactionManager,
	outbox *OutboxService,
	eventBus *EventBus,
	loc *time.Location,
	arrivalKm float64,
	logger *zap.Logger,
) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if arrivalKm <= 0 {
		arrivalKm = constants.DefaultArrivalKm
	}
	return &TokenService{
		tokens:       tokens,
		patients:     patients,
		clinics:      clinics,
		txManager:    txManager,
		outbox:       outbox,
		eventBus:     eventBus,
		stateMachine: domain.NewTokenStateMachine(),
		arrivalKm:    arrivalKm,
		logger:       logger,
		clock:        newClock(loc),
	}
}

// issue numbers and stores a token for patient with doctor. Call inside a transaction.
func (s *TokenService) issue(ctx context.Context, patient *models.Patient, doctor *models.Doctor, appointmentTime *string) (*models.Token, error) {
	if doctor.ClinicID == nil {
		return nil, errors.NewValidationError("doctor_id", "Doctor is not assigned to a clinic.")
	}
	today := s.clock.Today()

	number, err := s.tokens.NextNumber(ctx, *doctor.ClinicID, today)
	if err != nil {
		return nil, err
	}

	t := &models.Token{
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		ClinicID:        *doctor.ClinicID,
		TokenNumber:     number,
		Date:            today,
		CreatedAt:       s.clock.Now().UTC(),
		AppointmentTime: appointmentTime,
		Status:          domain.StatusWaiting,
	}
	if err := s.tokens.Insert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// reload fetches the token with its joined display fields
func (s *TokenService) reload(ctx context.Context, id int64) (*models.Token, error) {
	t, err := s.tokens.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewNotFoundError("token", fmt.Sprint(id))
	}
	return t, nil
}

func (s *TokenService) published(ctx context.Context, eventType events.EventType, t *models.Token, channel string) {
	if s.eventBus == nil {
		return
	}
	payload := events.TokenPayload{
		TokenID:     t.ID,
		ClinicID:    t.ClinicID,
		DoctorID:    t.DoctorID,
		TokenNumber: t.TokenNumber,
		Status:      string(t.Status),
		Channel:     channel,
	}
	if err := s.eventBus.Publish(ctx, eventType, payload); err != nil {
		s.logger.Warn("[Token] event handler failed", zap.String("event", eventType.String()), zap.Error(err))
	}
}

func confirmationMessage(patientName string, t *models.Token, doctor *models.Doctor, clinicName string) string {
	return fmt.Sprintf("Dear %s, your token %d for %s at %s has been confirmed.",
		patientName, t.TokenNumber, doctor.DisplayName(), clinicName)
}

func (s *TokenService) clinicName(ctx context.Context, doctor *models.Doctor) (string, error) {
	if doctor.ClinicID == nil {
		return "", nil
	}
	c, err := s.clinics.Get(ctx, *doctor.ClinicID)
	if err != nil || c == nil {
		return "", err
	}
	return c.Name, nil
}

func (s *TokenService) patientOf(ctx context.Context, user auth.UserSession) (*models.Patient, error) {
	if !user.IsPatient() {
		return nil, nil
	}
	return s.patients.GetByUser(ctx, user.UserID)
}

// CreateForPatient books a token for the signed-in patient.
// A patient holds at most one active token per day.
func (s *TokenService) CreateForPatient(ctx context.Context, user auth.UserSession, doctorID int64, appointmentTime *string) (*models.Token, error) {
	patient, err := s.patientOf(ctx, user)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, errors.NewForbidden("Only patients can create tokens.")
	}
	if doctorID == 0 {
		return nil, errors.NewBadRequest("Doctor ID is required.")
	}

	doctor, err := s.clinics.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, errors.NewNotFoundMessage("Doctor not found.")
	}

	if appointmentTime != nil {
		slot := strings.TrimSpace(*appointmentTime)
		if slot == "" {
			appointmentTime = nil
		} else if _, err := time.Parse(constants.TimeOfDayLayout, slot); err != nil {
			return nil, errors.NewValidationError("appointment_time", "Use HH:MM.")
		} else {
			appointmentTime = &slot
		}
	}

	clinicName, err := s.clinicName(ctx, doctor)
	if err != nil {
		return nil, err
	}

	var token *models.Token
	err = s.txManager.WithRetry(ctx, func(ctx context.Context) error {
		active, err := s.tokens.HasActive(ctx, patient.ID, s.clock.Today())
		if err != nil {
			return err
		}
		if active {
			return errors.NewBadRequest("You already have an active token for today.")
		}

		if appointmentTime != nil {
			booked, err := s.tokens.BookedTimes(ctx, doctor.ID, s.clock.Today())
			if err != nil {
				return err
			}
			for _, b := range booked {
				if b == *appointmentTime {
					return errors.NewBadRequest("This time slot is already booked.")
				}
			}
		}

		if token, err = s.issue(ctx, patient, doctor, appointmentTime); err != nil {
			return err
		}
		return s.outbox.EnqueueSMS(ctx, patient.Phone(), confirmationMessage(patient.Name, token, doctor, clinicName), events.SMSKindToken)
	}, constants.ActiveTokenRetries)
	if err != nil {
		return nil, err
	}

	s.logger.Info("[Token] issued", zap.Int64("token_id", token.ID), zap.Int("number", token.TokenNumber), zap.String("channel", events.ChannelPatient))
	s.published(ctx, events.TokenIssued, token, events.ChannelPatient)
	return s.reload(ctx, token.ID)
}

// GetMyToken returns the patient's latest active token of today
func (s *TokenService) GetMyToken(ctx context.Context, user auth.UserSession) (*models.Token, error) {
	patient, err := s.patientOf(ctx, user)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, errors.NewBadRequest("No patient profile found.")
	}
	t, err := s.tokens.LatestForPatient(ctx, patient.ID, s.clock.Today(), domain.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewNotFoundMessage("No active token found for today.")
	}
	return t, nil
}

// CancelForPatient cancels the patient's waiting or confirmed token of today
func (s *TokenService) CancelForPatient(ctx context.Context, user auth.UserSession) error {
	patient, err := s.patientOf(ctx, user)
	if err != nil {
		return err
	}
	if patient == nil {
		return errors.NewBadRequest("No patient profile found.")
	}

	var cancelled *models.Token
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		t, err := s.tokens.LatestForPatient(ctx, patient.ID, s.clock.Today(), cancelableStatuses)
		if err != nil {
			return err
		}
		if t == nil {
			return errors.NewNotFoundMessage("You do not have an active token to cancel.")
		}
		if t.Status, err = s.stateMachine.Transition(t.Status, domain.StatusCancelled); err != nil {
			return errors.NewBadRequest(err.Error())
		}
		cancelled = t
		return s.tokens.UpdateStatus(ctx, t.ID, t.Status, nil)
	})
	if err != nil {
		return err
	}
	s.published(ctx, events.TokenStatusChanged, cancelled, "")
	return nil
}

// ConfirmArrival marks the patient's waiting token confirmed when the given
// position is within the arrival radius of the clinic.
func (s *TokenService) ConfirmArrival(ctx context.Context, user auth.UserSession, lat, lon *float64) (*models.Token, error) {
	if lat == nil || lon == nil {
		return nil, errors.NewBadRequest("Latitude and longitude are required.")
	}
	patient, err := s.patientOf(ctx, user)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, errors.NewBadRequest("No patient profile found.")
	}

	t, err := s.tokens.LatestForPatient(ctx, patient.ID, s.clock.Today(), []domain.TokenStatus{domain.StatusWaiting})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.NewNotFoundMessage("No active token found to confirm.")
	}

	clinic, err := s.clinics.Get(ctx, t.ClinicID)
	if err != nil {
		return nil, err
	}
	if clinic == nil || !clinic.HasLocation() {
		return nil, errors.NewInternalError("Clinic location not configured.", nil)
	}

	distance := geo.Haversine(*lat, *lon, *clinic.Latitude, *clinic.Longitude)
	if distance > s.arrivalKm {
		return nil, errors.NewBadRequest(fmt.Sprintf(
			"You are approximately %.2f km away. You must be within %.1f km of the clinic to confirm.", distance, s.arrivalKm))
	}

	if _, err := s.stateMachine.Transition(t.Status, domain.StatusConfirmed); err != nil {
		return nil, errors.NewBadRequest(err.Error())
	}
	if err := s.tokens.ConfirmArrival(ctx, t.ID, distance); err != nil {
		return nil, err
	}

	s.logger.Info("[Token] arrival confirmed", zap.Int64("token_id", t.ID), zap.Float64("distance_km", distance))
	t, err = s.reload(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	s.published(ctx, events.TokenStatusChanged, t, "")
	return t, nil
}

// LiveQueue returns a doctor's anonymized queue for today
func (s *TokenService) LiveQueue(ctx context.Context, doctorID int64) ([]models.QueueEntry, error) {
	return s.tokens.LiveQueue(ctx, doctorID, s.clock.Today(), liveQueueStatuses)
}

// AvailableSlots lists the free appointment times of a doctor on date (YYYY-MM-DD).
// Slots run every SlotIntervalMinutes from opening until closing; on the current
// day only future slots are offered.
func (s *TokenService) AvailableSlots(ctx context.Context, doctorID int64, date string) ([]string, error) {
	now := s.clock.Now()
	day, err := time.ParseInLocation(constants.DateLayout, date, now.Location())
	if err != nil {
		return nil, errors.NewBadRequest("Invalid date format. Use YYYY-MM-DD.")
	}
	today := now.Format(constants.DateLayout)
	if date < today {
		return nil, errors.NewBadRequest("Cannot book slots for a past date.")
	}

	doctor, err := s.clinics.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, errors.NewNotFoundMessage("Doctor not found.")
	}

	booked, err := s.tokens.BookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	return FreeSlots(day, now, booked), nil
}

// FreeSlots computes the open slots of day given the booked HH:MM times
func FreeSlots(day, now time.Time, booked []string) []string {
	taken := make(map[string]bool, len(booked))
	for _, b := range booked {
		taken[b] = true
	}

	y, m, d := day.Date()
	loc := day.Location()
	start := time.Date(y, m, d, constants.ClinicOpens[0], constants.ClinicOpens[1], 0, 0, loc)
	end := time.Date(y, m, d, constants.ClinicCloses[0], constants.ClinicCloses[1], 0, 0, loc)
	step := time.Duration(constants.SlotIntervalMinutes) * time.Minute

	slots := make([]string, 0)
	for at := start; at.Before(end); at = at.Add(step) {
		if !at.After(now) {
			continue
		}
		label := at.Format(constants.TimeOfDayLayout)
		if !taken[label] {
			slots = append(slots, label)
		}
	}
	return slots
}

// StaffList returns today's waiting and confirmed tokens of the staff member's clinic
func (s *TokenService) StaffList(ctx context.Context, user auth.UserSession) ([]*models.Token, error) {
	if user.ClinicID == nil {
		return []*models.Token{}, nil
	}
	return s.tokens.ListForClinic(ctx, *user.ClinicID, s.clock.Today(), dashboardStatuses)
}

// WalkInInput is the front-desk form for a patient without an account
type WalkInInput struct {
	PatientName    string `json:"patient_name"`
	PatientAge     *int   `json:"patient_age"`
	PhoneNumber    string `json:"phone_number"`
	AssignedDoctor int64  `json:"assigned_doctor"`
}

// StaffCreate issues a walk-in token. The patient is looked up by phone and
// created when unknown; the doctor must work in the staff member's clinic.
func (s *TokenService) StaffCreate(ctx context.Context, user auth.UserSession, in WalkInInput) (*models.Token, error) {
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if in.PatientName == "" || in.PatientAge == nil || in.PhoneNumber == "" || in.AssignedDoctor == 0 {
		return nil, errors.NewBadRequest("Missing required fields")
	}

	doctor, err := s.clinics.GetDoctor(ctx, in.AssignedDoctor)
	if err != nil {
		return nil, err
	}
	if doctor == nil {
		return nil, errors.NewNotFoundMessage("Doctor not found")
	}
	if user.ClinicID == nil || doctor.ClinicID == nil || *doctor.ClinicID != *user.ClinicID {
		return nil, errors.NewForbidden("Doctor does not belong to your clinic.")
	}

	clinicName, err := s.clinicName(ctx, doctor)
	if err != nil {
		return nil, err
	}

	var token *models.Token
	err = s.txManager.WithRetry(ctx, func(ctx context.Context) error {
		patient, err := s.findOrCreatePatient(ctx, in.PhoneNumber, in.PatientName, *in.PatientAge)
		if err != nil {
			return err
		}
		if token, err = s.issue(ctx, patient, doctor, nil); err != nil {
			return err
		}
		return s.outbox.EnqueueSMS(ctx, patient.Phone(), confirmationMessage(patient.Name, token, doctor, clinicName), events.SMSKindToken)
	}, constants.ActiveTokenRetries)
	if err != nil {
		return nil, err
	}

	s.logger.Info("[Token] issued", zap.Int64("token_id", token.ID), zap.Int("number", token.TokenNumber), zap.String("channel", events.ChannelWalkIn))
	s.published(ctx, events.TokenIssued, token, events.ChannelWalkIn)
	return s.reload(ctx, token.ID)
}

// findOrCreatePatient returns the patient owning phone, creating one with name and age if none
func (s *TokenService) findOrCreatePatient(ctx context.Context, phone, name string, age int) (*models.Patient, error) {
	patient, err := s.patients.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if patient != nil {
		return patient, nil
	}
	patient = &models.Patient{Name: name, Age: age, PhoneNumber: &phone}
	if _, err := s.patients.Create(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

// allowedStaffTargets are the statuses staff may set by hand
var allowedStaffTargets = map[domain.TokenStatus]bool{
	domain.StatusConfirmed:     true,
	domain.StatusCompleted:     true,
	domain.StatusSkipped:       true,
	domain.StatusCancelled:     true,
	domain.StatusInConsultancy: true,
}

// UpdateStatus moves a token of the staff member's clinic (today only) to status.
// Calling a patient in sends them a text.
func (s *TokenService) UpdateStatus(ctx context.Context, user auth.UserSession, tokenID int64, status string) (*models.Token, error) {
	next, err := domain.ParseTokenStatus(status)
	if err != nil || !allowedStaffTargets[next] {
		return nil, errors.NewBadRequest("Invalid or not allowed status update.")
	}
	if user.ClinicID == nil {
		return nil, errors.NewNotFoundMessage("Not found.")
	}

	var updated *models.Token
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		t, err := s.tokens.GetForClinic(ctx, tokenID, *user.ClinicID, s.clock.Today())
		if err != nil {
			return err
		}
		if t == nil {
			return errors.NewNotFoundMessage("Not found.")
		}
		if err := s.applyStatus(ctx, t, next); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("[Token] status changed", zap.Int64("token_id", tokenID), zap.String("status", string(next)), zap.String("by", user.Username))
	s.published(ctx, events.TokenStatusChanged, updated, "")
	return s.reload(ctx, tokenID)
}

// applyStatus validates and writes a transition; call inside a transaction
func (s *TokenService) applyStatus(ctx context.Context, t *models.Token, next domain.TokenStatus) error {
	newStatus, err := s.stateMachine.Transition(t.Status, next)
	if err != nil {
		return errors.NewBadRequest(err.Error())
	}

	var completedAt *time.Time
	if newStatus == domain.StatusCompleted {
		now := s.clock.Now().UTC()
		completedAt = &now
		t.CompletedAt = completedAt
	}
	if err := s.tokens.UpdateStatus(ctx, t.ID, newStatus, completedAt); err != nil {
		return err
	}
	t.Status = newStatus

	if newStatus == domain.StatusInConsultancy && t.Patient != nil {
		msg := fmt.Sprintf("Dear %s, Dr. %s is ready to see you now. Please proceed to the consultation room.", t.Patient.Name, t.DoctorName)
		return s.outbox.EnqueueSMS(ctx, t.Patient.Phone(), msg, events.SMSKindStatusChange)
	}
	return nil
}

// CompleteActiveForPatient completes the patient's current token of today, if any.
// It joins the transaction in ctx and returns the completed token or nil.
func (s *TokenService) CompleteActiveForPatient(ctx context.Context, patientID int64) (*models.Token, error) {
	t, err := s.tokens.LatestForPatient(ctx, patientID, s.clock.Today(), consultedStatuses)
	if err != nil || t == nil {
		return nil, err
	}
	if err := s.applyStatus(ctx, t, domain.StatusCompleted); err != nil {
		return nil, err
	}
	return t, nil
}

// IVRBooking is the outcome of a phone booking
type IVRBooking struct {
	Token         *models.Token
	AlreadyActive bool
}

// IssueForIVR books a token for a caller identified only by phone number
func (s *TokenService) IssueForIVR(ctx context.Context, doctor *models.Doctor, callerPhone string) (*IVRBooking, error) {
	suffix := callerPhone
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	name := "IVR Patient " + suffix

	clinicName, err := s.clinicName(ctx, doctor)
	if err != nil {
		return nil, err
	}

	booking := &IVRBooking{}
	err = s.txManager.WithRetry(ctx, func(ctx context.Context) error {
		booking.AlreadyActive = false
		patient, err := s.findOrCreatePatient(ctx, callerPhone, name, 0)
		if err != nil {
			return err
		}
		active, err := s.tokens.HasActive(ctx, patient.ID, s.clock.Today())
		if err != nil {
			return err
		}
		if active {
			booking.AlreadyActive = true
			return nil
		}

		if booking.Token, err = s.issue(ctx, patient, doctor, nil); err != nil {
			return err
		}
		msg := fmt.Sprintf("Your token for %s at %s is %d.", doctor.DisplayName(), clinicName, booking.Token.TokenNumber)
		return s.outbox.EnqueueSMS(ctx, patient.Phone(), msg, events.SMSKindToken)
	}, constants.ActiveTokenRetries)
	if err != nil {
		return nil, err
	}

	if booking.Token != nil {
		s.logger.Info("[Token] issued", zap.Int64("token_id", booking.Token.ID), zap.Int("number", booking.Token.TokenNumber), zap.String("channel", events.ChannelIVR))
		s.published(ctx, events.TokenIssued, booking.Token, events.ChannelIVR)
	}
	return booking, nil
}
