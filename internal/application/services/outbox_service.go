package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain/events"
	"github.com/clinicq/backend/internal/infrastructure/metrics"
	"github.com/clinicq/backend/internal/infrastructure/persistence"
	"github.com/clinicq/backend/pkg/constants"
)

// OutboxService handles transactional event storage and async publishing.
// Business writes enqueue events in their own transaction; the worker
// delivers them through the EventBus at least once.
type OutboxService struct {
	repo      *persistence.OutboxRepository
	eventBus  *EventBus
	txManager *persistence.TransactionManager
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// Worker control
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOutboxService creates a new OutboxService
func NewOutboxService(repo *persistence.OutboxRepository, eventBus *EventBus, txManager *persistence.TransactionManager, m *metrics.Metrics, logger *zap.Logger) *OutboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxService{
		repo:      repo,
		eventBus:  eventBus,
		txManager: txManager,
		metrics:   m,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// EnqueueEvent stores an event in the outbox. When ctx carries a transaction
// the row commits or rolls back with the business write.
func (os *OutboxService) EnqueueEvent(ctx context.Context, eventType events.EventType, payload interface{}) error {
	id, err := os.repo.Enqueue(ctx, eventType.String(), payload)
	if err != nil {
		return err
	}
	os.logger.Debug("[Outbox] enqueued", zap.String("event", eventType.String()), zap.String("id", id))
	return nil
}

// EnqueueSMS schedules a text message for delivery. Empty recipients are ignored,
// matching patients registered without a phone number.
func (os *OutboxService) EnqueueSMS(ctx context.Context, to, message, kind string) error {
	if to == "" {
		return nil
	}
	return os.EnqueueEvent(ctx, events.SMSRequested, events.SMSPayload{To: to, Message: message, Kind: kind})
}

// StartWorker starts the background worker that processes pending outbox events.
// The worker polls with the specified interval.
func (os *OutboxService) StartWorker(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	os.wg.Add(1)
	go func() {
		defer os.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		os.logger.Info("[Outbox] worker started", zap.Duration("interval", interval))

		for {
			select {
			case <-os.stopCh:
				return
			case <-ticker.C:
				if err := os.ProcessOutbox(context.Background()); err != nil {
					os.logger.Warn("[Outbox] worker error", zap.Error(err))
				}
			}
		}
	}()
}

// StopWorker stops the background worker gracefully
func (os *OutboxService) StopWorker() {
	os.stopOnce.Do(func() {
		close(os.stopCh)
	})
	os.wg.Wait()
	os.logger.Info("[Outbox] worker stopped")
}

// ProcessOutbox processes one batch of pending events.
// Each event is processed in its own transaction.
func (os *OutboxService) ProcessOutbox(ctx context.Context) error {
	pending, err := os.repo.GetPendingEvents(ctx, constants.OutboxBatchSize)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		os.logger.Debug("[Outbox] processing", zap.Int("count", len(pending)))
	}

	for _, e := range pending {
		if err := os.processEventAtomic(ctx, e); err != nil {
			os.logger.Warn("[Outbox] failed to process event", zap.String("id", e.ID), zap.Error(err))
		}
	}
	return nil
}

// processEventAtomic claims an event, publishes it, and updates status atomically
func (os *OutboxService) processEventAtomic(ctx context.Context, e persistence.OutboxEvent) error {
	return os.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		claimed, err := os.repo.ClaimEvent(txCtx, e.ID)
		if err != nil {
			return fmt.Errorf("failed to claim event: %w", err)
		}
		if !claimed {
			return nil
		}

		payload, err := decodePayload(events.EventType(e.EventType), e.Payload)
		if err != nil {
			os.logger.Error("[Outbox] invalid payload", zap.String("id", e.ID), zap.Error(err))
			os.metrics.OutboxProcessed(constants.OutboxStatusFailed)
			return os.repo.UpdateStatus(txCtx, e.ID, constants.OutboxStatusFailed, fmt.Sprintf("invalid payload: %v", err))
		}

		// Handlers run outside the outbox transaction; they must not see its rows.
		if err := os.eventBus.Publish(ctx, events.EventType(e.EventType), payload); err != nil {
			newRetryCount := e.RetryCount + 1
			if newRetryCount >= constants.MaxRetryAttempts {
				os.logger.Error("[Outbox] giving up", zap.String("id", e.ID), zap.Error(err))
				os.metrics.OutboxProcessed(constants.OutboxStatusFailed)
				return os.repo.UpdateStatus(txCtx, e.ID, constants.OutboxStatusFailed, fmt.Sprintf("max retries exceeded: %v", err))
			}
			os.logger.Warn("[Outbox] delivery failed",
				zap.String("id", e.ID), zap.Int("attempt", newRetryCount), zap.Int("max", constants.MaxRetryAttempts), zap.Error(err))
			os.metrics.OutboxProcessed("retry")
			return os.repo.IncrementRetry(txCtx, e.ID, newRetryCount, err.Error())
		}

		os.metrics.OutboxProcessed(constants.OutboxStatusProcessed)
		return os.repo.UpdateStatus(txCtx, e.ID, constants.OutboxStatusProcessed, "")
	})
}

// Cleanup removes processed events older than retention
func (os *OutboxService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return os.repo.CleanupProcessed(ctx, time.Now().Add(-retention))
}

func decodePayload(eventType events.EventType, raw string) (interface{}, error) {
	switch eventType {
	case events.SMSRequested:
		var p events.SMSPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, err
		}
		return m, nil
	}
}
