package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/config"
	"github.com/clinicq/backend/internal/domain/events"
	"github.com/clinicq/backend/internal/domain/ports"
	"github.com/clinicq/backend/internal/infrastructure/database"
	"github.com/clinicq/backend/internal/infrastructure/metrics"
	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/pkg/auth"
)

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	db      *database.Connection
	cfg     *config.Config
	logger  *zap.Logger
	Metrics *metrics.Metrics

	// Core services
	TxManager     *persistence.TransactionManager
	EventBus      *EventBus
	Outbox        *OutboxService
	Notification  *NotificationService
	Reminders     *ReminderService
	Scheduler     *SchedulerService
	Auth          *AuthService
	Tokens        *TokenService
	Clinics       *ClinicService
	Consultations *ConsultationService
	IVR           *IVRService

	unsubscribe []func()
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.Connection, cfg *config.Config, m *metrics.Metrics, sender ports.SMSSender, logger *zap.Logger) (*ServiceManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sm := &ServiceManager{db: db, cfg: cfg, logger: logger, Metrics: m}
	sqlDB := db.DB()

	users := persistence.NewUserRepository(sqlDB)
	sessions := persistence.NewSessionRepository(sqlDB)
	patients := persistence.NewPatientRepository(sqlDB)
	clinics := persistence.NewClinicRepository(sqlDB)
	tokens := persistence.NewTokenRepository(sqlDB)
	consultations := persistence.NewConsultationRepository(sqlDB)
	reminders := persistence.NewReminderRepository(sqlDB)

	// Initialize services in dependency order
	sm.TxManager = persistence.NewTransactionManager(sqlDB)
	sm.EventBus = NewEventBus(logger)
	sm.Outbox = NewOutboxService(persistence.NewOutboxRepository(sqlDB), sm.EventBus, sm.TxManager, m, logger)
	sm.Notification = NewNotificationService(sender, m, logger)
	sm.Reminders = NewReminderService(reminders, sender, cfg.TimeZone, m, logger)

	signer := auth.NewSigner(cfg.JWTSecret, cfg.TokenTTL)
	sm.Auth = NewAuthService(users, sessions, patients, clinics, sm.TxManager, sm.Outbox, signer, cfg.OTPTTL, logger)
	sm.Tokens = NewTokenService(tokens, patients, clinics, sm.TxManager, sm.Outbox, sm.EventBus, cfg.TimeZone, cfg.ArrivalRadiusKm, logger)
	sm.Clinics = NewClinicService(clinics, tokens, cfg.TimeZone)
	sm.Consultations = NewConsultationService(consultations, patients, clinics, sm.TxManager, sm.Tokens, sm.Reminders, logger)
	sm.IVR = NewIVRService(clinics, sm.Tokens, cfg.PublicBaseURL, logger)

	scheduler, err := NewSchedulerService(cfg.ReminderSchedule, cfg.TimeZone, sm.Reminders, sm.Outbox, sessions, logger)
	if err != nil {
		return nil, err
	}
	sm.Scheduler = scheduler

	sm.registerHandlers()
	return sm, nil
}

// registerHandlers wires event subscribers: SMS delivery and token counters
func (sm *ServiceManager) registerHandlers() {
	sm.unsubscribe = append(sm.unsubscribe,
		sm.Notification.Register(sm.EventBus),
		sm.EventBus.Subscribe(events.TokenIssued, func(_ context.Context, payload interface{}) error {
			if p, ok := payload.(events.TokenPayload); ok {
				sm.Metrics.TokenIssued(p.Channel)
			}
			return nil
		}),
		sm.EventBus.Subscribe(events.TokenStatusChanged, func(_ context.Context, payload interface{}) error {
			if p, ok := payload.(events.TokenPayload); ok {
				sm.Metrics.StatusChanged(p.Status)
			}
			return nil
		}),
	)
}

// Ping checks the database connection
func (sm *ServiceManager) Ping(ctx context.Context) error {
	if err := sm.db.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

// Start launches the outbox worker and the scheduler
func (sm *ServiceManager) Start() {
	sm.Outbox.StartWorker(sm.cfg.OutboxInterval)
	sm.Scheduler.Start()
}

// Stop stops background work and drops event subscriptions
func (sm *ServiceManager) Stop() {
	sm.Scheduler.Stop()
	sm.Outbox.StopWorker()
	for _, unsub := range sm.unsubscribe {
		unsub()
	}
	sm.unsubscribe = nil
}
