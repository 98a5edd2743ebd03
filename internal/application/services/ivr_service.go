package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/pkg/twiml"
)

// UnknownCaller stands in for a webhook without a From number
const UnknownCaller = "Unknown"

// IVRService drives the phone menu: pick a clinic, then the next free
// doctor or a specific one, and read back the issued token
type IVRService struct {
	clinics *persistence.ClinicRepository
	tokens  *TokenService
	baseURL string
	logger  *zap.Logger
	clock   clock
}

// NewIVRService creates a new IVRService. baseURL prefixes webhook actions
// and may be empty for relative URLs.
func NewIVRService(clinics *persistence.ClinicRepository, tokens *TokenService, baseURL string, logger *zap.Logger) *IVRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IVRService{
		clinics: clinics,
		tokens:  tokens,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		clock:   tokens.clock,
	}
}

func (s *IVRService) url(format string, args ...interface{}) string {
	return s.baseURL + fmt.Sprintf(format, args...)
}

// menuChoice turns keypad digits into a zero-based index below n
func menuChoice(digits string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(digits))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// SpokenDigits spells a number digit by digit ("12" -> "1 2")
func SpokenDigits(n int) string {
	s := strconv.Itoa(n)
	return strings.Join(strings.Split(s, ""), " ")
}

// Welcome lists the clinics
func (s *IVRService) Welcome(ctx context.Context) (*twiml.Response, error) {
	clinics, err := s.clinics.List(ctx)
	if err != nil {
		return nil, err
	}

	r := twiml.NewResponse()
	if len(clinics) == 0 {
		return r.Say("Sorry, no clinics are configured. Goodbye.").Hangup(), nil
	}

	var b strings.Builder
	b.WriteString("Welcome. Please select a clinic. ")
	for i, c := range clinics {
		fmt.Fprintf(&b, "For %s, press %d. ", c.Name, i+1)
	}
	r.Gather(1, s.url("/api/ivr/select_clinic/")).Say(b.String())
	r.Redirect(s.url("/api/ivr/welcome/"))
	return r, nil
}

// SelectClinic handles the clinic choice and offers the booking types
func (s *IVRService) SelectClinic(ctx context.Context, digits string) (*twiml.Response, error) {
	clinics, err := s.clinics.List(ctx)
	if err != nil {
		return nil, err
	}

	r := twiml.NewResponse()
	idx, ok := menuChoice(digits, len(clinics))
	if !ok {
		return r.Say("Invalid choice.").Redirect(s.url("/api/ivr/welcome/")), nil
	}

	clinic := clinics[idx]
	r.Gather(1, s.url("/api/ivr/handle_booking_type/%d/", clinic.ID)).
		Say(fmt.Sprintf("You selected %s. For next available doctor, press 1. To choose a specific doctor, press 2.", clinic.Name))
	r.Redirect(s.url("/api/ivr/select_clinic/"))
	return r, nil
}

// HandleBookingType books the least loaded doctor (1) or lists the doctors (2)
func (s *IVRService) HandleBookingType(ctx context.Context, clinicID int64, digits, from string) (*twiml.Response, error) {
	r := twiml.NewResponse()

	clinic, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if clinic == nil {
		return r.Say("Clinic not found.").Hangup(), nil
	}

	switch strings.TrimSpace(digits) {
	case "1":
		doctor, err := s.clinics.LeastLoadedDoctor(ctx, clinic.ID, s.clock.Today())
		if err != nil {
			return nil, err
		}
		if doctor == nil {
			return r.Say("Sorry, no doctors are available.").Hangup(), nil
		}
		return s.book(ctx, r, doctor, from)

	case "2":
		doctors, err := s.clinics.Doctors(ctx, clinic.ID)
		if err != nil {
			return nil, err
		}
		var b strings.Builder
		b.WriteString("Please select a doctor. ")
		for i, d := range doctors {
			fmt.Fprintf(&b, "For Doctor %s, press %d. ", d.Name, i+1)
		}
		r.Gather(1, s.url("/api/ivr/handle_specific_doctor/%d/", clinic.ID)).Say(b.String())
		return r, nil

	default:
		return r.Say("Invalid choice.").Redirect(s.url("/api/ivr/handle_booking_type/%d/", clinicID)), nil
	}
}

// HandleSpecificDoctor books the chosen doctor of the clinic
func (s *IVRService) HandleSpecificDoctor(ctx context.Context, clinicID int64, digits, from string) (*twiml.Response, error) {
	doctors, err := s.clinics.Doctors(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	r := twiml.NewResponse()
	idx, ok := menuChoice(digits, len(doctors))
	if !ok {
		return r.Say("Invalid choice.").Redirect(s.url("/api/ivr/handle_booking_type/%d/", clinicID)), nil
	}
	return s.book(ctx, r, doctors[idx], from)
}

func (s *IVRService) book(ctx context.Context, r *twiml.Response, doctor *models.Doctor, from string) (*twiml.Response, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		from = UnknownCaller
	}

	booking, err := s.tokens.IssueForIVR(ctx, doctor, from)
	if err != nil {
		return nil, err
	}
	if booking.AlreadyActive {
		return r.Say("You already have an active token for today. Please check your SMS. Goodbye.").Hangup(), nil
	}

	r.Say(fmt.Sprintf("You have been assigned to Doctor %s. Your token is %s. An SMS has been sent. Goodbye.",
		doctor.Name, SpokenDigits(booking.Token.TokenNumber)))
	return r.Hangup(), nil
}
