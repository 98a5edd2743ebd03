package services

import (
	"context"
	"math"
	"time"

	"github.com/clinicq/backend/internal/domain"
	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/pkg/auth"
	"github.com/clinicq/backend/pkg/constants"
	"github.com/clinicq/backend/pkg/errors"
)

const analyticsDateLayout = "January 02, 2006"

// ClinicService serves clinic directories and the staff analytics dashboard
type ClinicService struct {
	clinics *persistence.ClinicRepository
	tokens  *persistence.TokenRepository
	clock   clock
}

// NewClinicService creates a new ClinicService
func NewClinicService(clinics *persistence.ClinicRepository, tokens *persistence.TokenRepository, loc *time.Location) *ClinicService {
	return &ClinicService{clinics: clinics, tokens: tokens, clock: newClock(loc)}
}

// ListWithDoctors returns every clinic with its doctors and today's queue figures
func (s *ClinicService) ListWithDoctors(ctx context.Context) ([]*models.ClinicSummary, error) {
	clinics, err := s.clinics.List(ctx)
	if err != nil {
		return nil, err
	}
	doctors, err := s.clinics.AllDoctors(ctx)
	if err != nil {
		return nil, err
	}
	byClinic := make(map[int64][]*models.Doctor)
	for _, d := range doctors {
		byClinic[*d.ClinicID] = append(byClinic[*d.ClinicID], d)
	}

	today := s.clock.Today()
	out := make([]*models.ClinicSummary, 0, len(clinics))
	for _, c := range clinics {
		total, err := s.tokens.CountForClinic(ctx, c.ID, today)
		if err != nil {
			return nil, err
		}
		waits, err := s.tokens.CompletedWaits(ctx, c.ID, today)
		if err != nil {
			return nil, err
		}
		list := byClinic[c.ID]
		if list == nil {
			list = []*models.Doctor{}
		}
		out = append(out, &models.ClinicSummary{
			Clinic:          *c,
			Doctors:         list,
			AverageWaitTime: RoundMinutes(AverageMinutes(waits)),
			TotalTokens:     total,
		})
	}
	return out, nil
}

// StaffDoctors returns the doctors of the staff member's clinic
func (s *ClinicService) StaffDoctors(ctx context.Context, user auth.UserSession) ([]*models.Doctor, error) {
	if user.ClinicID == nil {
		return []*models.Doctor{}, nil
	}
	return s.clinics.Doctors(ctx, *user.ClinicID)
}

// Analytics summarizes today's queue of the staff member's clinic
func (s *ClinicService) Analytics(ctx context.Context, user auth.UserSession) (*models.ClinicAnalytics, error) {
	if user.ClinicID == nil {
		return nil, errors.NewForbidden("User is not associated with a clinic.")
	}
	clinic, err := s.clinics.Get(ctx, *user.ClinicID)
	if err != nil {
		return nil, err
	}
	if clinic == nil {
		return nil, errors.NewForbidden("User is not associated with a clinic.")
	}

	now := s.clock.Now()
	today := now.Format(constants.DateLayout)

	total, err := s.tokens.CountForClinic(ctx, clinic.ID, today)
	if err != nil {
		return nil, err
	}
	waits, err := s.tokens.CompletedWaits(ctx, clinic.ID, today)
	if err != nil {
		return nil, err
	}
	workload, err := s.tokens.DoctorWorkload(ctx, clinic.ID, today)
	if err != nil {
		return nil, err
	}
	counts, err := s.tokens.StatusCounts(ctx, clinic.ID, today)
	if err != nil {
		return nil, err
	}

	return &models.ClinicAnalytics{
		ClinicName:             clinic.Name,
		Date:                   now.Format(analyticsDateLayout),
		TotalPatients:          total,
		AverageWaitTimeMinutes: math.RoundToEven(AverageMinutes(waits)*10) / 10,
		DoctorWorkload:         workload,
		StatusBreakdown: map[string]int64{
			string(domain.StatusWaiting):   counts[string(domain.StatusWaiting)],
			string(domain.StatusConfirmed): counts[string(domain.StatusConfirmed)],
			// completed tokens without a completion time are left out, like the average
			string(domain.StatusCompleted): int64(len(waits)),
		},
	}, nil
}

// RoundMinutes rounds half to even: 2.5 minutes reads as 2, 3.5 as 4
func RoundMinutes(m float64) int64 {
	return int64(math.RoundToEven(m))
}

// AverageMinutes returns the mean of waits in minutes, 0 for none
func AverageMinutes(waits []time.Duration) float64 {
	if len(waits) == 0 {
		return 0
	}
	var sum time.Duration
	for _, w := range waits {
		sum += w
	}
	return (sum / time.Duration(len(waits))).Minutes()
}
