package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain/events"
	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/internal/domain/ports"
	"github.com/clinicq/backend/internal/infrastructure/metrics"
	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/pkg/constants"
)

// ReminderService schedules and dispatches prescription reminder SMS
type ReminderService struct {
	repo    *persistence.ReminderRepository
	sender  ports.SMSSender
	metrics *metrics.Metrics
	logger  *zap.Logger
	clock   clock
}

// NewReminderService creates a new ReminderService
func NewReminderService(repo *persistence.ReminderRepository, sender ports.SMSSender, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{repo: repo, sender: sender, metrics: m, logger: logger, clock: newClock(loc)}
}

type doseSlot struct {
	label string
	at    [2]int
	taken func(*models.PrescriptionItem) bool
}

var doseSlots = []doseSlot{
	{"morning", constants.MorningDose, func(i *models.PrescriptionItem) bool { return i.TimingMorning }},
	{"afternoon", constants.AfternoonDose, func(i *models.PrescriptionItem) bool { return i.TimingAfternoon }},
	{"evening", constants.EveningDose, func(i *models.PrescriptionItem) bool { return i.TimingEvening }},
}

// BuildReminders expands prescription items into one reminder per dose.
// Day 1 is the day after today; times are wall-clock in today's location.
func BuildReminders(patientName, phone string, items []*models.PrescriptionItem, today time.Time) []*models.Reminder {
	if phone == "" {
		return nil
	}
	y, m, d := today.Date()
	loc := today.Location()
	created := today.UTC()

	var out []*models.Reminder
	for _, item := range items {
		for day := 1; day <= item.DurationDays; day++ {
			for _, slot := range doseSlots {
				if !slot.taken(item) {
					continue
				}
				out = append(out, &models.Reminder{
					Phone:        phone,
					Message:      fmt.Sprintf("Hi %s, it's time for your %s dose of %s.", patientName, slot.label, item.MedicineName),
					ScheduledFor: time.Date(y, m, d+day, slot.at[0], slot.at[1], 0, 0, loc),
					Status:       constants.ReminderStatusPending,
					CreatedAt:    created,
				})
			}
		}
	}
	return out
}

// Schedule persists reminders for a consultation; it joins the transaction in ctx
func (s *ReminderService) Schedule(ctx context.Context, patient *models.Patient, items []*models.PrescriptionItem) (int, error) {
	reminders := BuildReminders(patient.Name, patient.Phone(), items, s.clock.Now())
	for _, rem := range reminders {
		if err := s.repo.Insert(ctx, rem); err != nil {
			return 0, err
		}
	}
	return len(reminders), nil
}

// DispatchDue sends every reminder whose time has come.
// A reminder is claimed before sending so two dispatchers never double-send.
func (s *ReminderService) DispatchDue(ctx context.Context) (int, error) {
	due, err := s.repo.Due(ctx, s.clock.Now(), constants.ReminderBatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rem := range due {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		claimed, err := s.repo.Claim(ctx, rem.ID, rem.Attempts)
		if err != nil {
			return sent, fmt.Errorf("failed to claim reminder %s: %w", rem.ID, err)
		}
		if !claimed {
			continue
		}
		attempt := rem.Attempts + 1

		sendErr := s.sender.Send(ctx, rem.Phone, rem.Message)
		s.metrics.SMSSent(events.SMSKindReminder, sendErr)
		if sendErr != nil {
			final := attempt >= constants.MaxRetryAttempts
			if err := s.repo.MarkError(ctx, rem.ID, sendErr.Error(), final); err != nil {
				return sent, err
			}
			outcome := "retry"
			if final {
				outcome = constants.ReminderStatusFailed
			}
			s.metrics.ReminderDispatched(outcome)
			s.logger.Warn("[Reminder] send failed", zap.String("id", rem.ID), zap.Int("attempt", attempt), zap.Error(sendErr))
			continue
		}

		if err := s.repo.MarkSent(ctx, rem.ID, s.clock.Now()); err != nil {
			return sent, err
		}
		s.metrics.ReminderDispatched(constants.ReminderStatusSent)
		sent++
	}

	if sent > 0 {
		s.logger.Info("[Reminder] dispatched", zap.Int("sent", sent))
	}
	return sent, nil
}
