package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain/events"
	"github.com/clinicq/backend/internal/domain/ports"
	"github.com/clinicq/backend/internal/infrastructure/metrics"
)

// NotificationService delivers SMSRequested events through an SMSSender
type NotificationService struct {
	sender  ports.SMSSender
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(sender ports.SMSSender, m *metrics.Metrics, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{sender: sender, metrics: m, logger: logger}
}

// Register subscribes the service to the bus and returns the unsubscribe func
func (s *NotificationService) Register(bus ports.EventPublisher) func() {
	return bus.Subscribe(events.SMSRequested, s.HandleSMSRequested)
}

// HandleSMSRequested is the EventHandler for events.SMSRequested
func (s *NotificationService) HandleSMSRequested(ctx context.Context, payload interface{}) error {
	var msg events.SMSPayload
	switch p := payload.(type) {
	case events.SMSPayload:
		msg = p
	case *events.SMSPayload:
		msg = *p
	default:
		return fmt.Errorf("unexpected sms payload %T", payload)
	}
	return s.Send(ctx, msg)
}

// Send delivers one message and records the outcome
func (s *NotificationService) Send(ctx context.Context, msg events.SMSPayload) error {
	err := s.sender.Send(ctx, msg.To, msg.Message)
	s.metrics.SMSSent(msg.Kind, err)
	if err != nil {
		s.logger.Warn("[SMS] delivery failed", zap.String("to", msg.To), zap.String("kind", msg.Kind), zap.Error(err))
		return err
	}
	return nil
}
