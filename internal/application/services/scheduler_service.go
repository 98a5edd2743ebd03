package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/infrastructure/persistence"
)

const (
	housekeepingSchedule = "@daily"
	outboxRetention      = 7 * 24 * time.Hour
	jobTimeout           = 5 * time.Minute
)

// scheduleParser accepts 5-field specs, an optional leading seconds field and descriptors like "@every 30s"
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether spec is a schedule the scheduler can run
func ValidateSchedule(spec string) error {
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// SchedulerService runs the periodic jobs: reminder dispatch and housekeeping
type SchedulerService struct {
	cron      *cron.Cron
	reminders *ReminderService
	outbox    *OutboxService
	sessions  *persistence.SessionRepository
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewSchedulerService builds the cron table. Jobs run in loc and never overlap themselves.
func NewSchedulerService(reminderSpec string, loc *time.Location, reminders *ReminderService, outbox *OutboxService, sessions *persistence.SessionRepository, logger *zap.Logger) (*SchedulerService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger.Sugar()}
	s := &SchedulerService{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(scheduleParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		reminders: reminders,
		outbox:    outbox,
		sessions:  sessions,
		logger:    logger,
	}

	if _, err := s.cron.AddFunc(reminderSpec, s.dispatchReminders); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", reminderSpec, err)
	}
	if _, err := s.cron.AddFunc(housekeepingSchedule, s.housekeeping); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins running jobs in the background
func (s *SchedulerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("[Scheduler] started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for running jobs to finish
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("[Scheduler] stopped")
}

func (s *SchedulerService) dispatchReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.reminders.DispatchDue(ctx); err != nil {
		s.logger.Warn("[Scheduler] reminder dispatch failed", zap.Error(err))
	}
}

func (s *SchedulerService) housekeeping() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if n, err := s.outbox.Cleanup(ctx, outboxRetention); err != nil {
		s.logger.Warn("[Scheduler] outbox cleanup failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("[Scheduler] outbox cleaned", zap.Int64("deleted", n))
	}

	if n, err := s.sessions.DeleteExpired(ctx, time.Now()); err != nil {
		s.logger.Warn("[Scheduler] session cleanup failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("[Scheduler] sessions cleaned", zap.Int64("deleted", n))
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("[Scheduler] "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("[Scheduler] "+msg, append(keysAndValues, "error", err)...)
}
