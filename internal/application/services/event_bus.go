package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain/events"
	"github.com/clinicq/backend/internal/domain/ports"
)

// EventHandler is a function that handles an event
type EventHandler = ports.EventHandler

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus is an in-process publish-subscribe dispatcher.
// It implements ports.EventPublisher.
type EventBus struct {
	handlers map[events.EventType][]subscription
	nextID   uint64
	mu       sync.RWMutex
	wg       sync.WaitGroup
	logger   *zap.Logger
}

// Ensure EventBus implements ports.EventPublisher at compile time
var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates a new EventBus instance
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		handlers: make(map[events.EventType][]subscription),
		logger:   logger,
	}
}

// Subscribe registers a handler for a specific event type and returns an unsubscribe function
func (eb *EventBus) Subscribe(eventType events.EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		subs := eb.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				eb.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish runs every handler for eventType in subscription order.
// The first handler error stops dispatch and is returned.
func (eb *EventBus) Publish(ctx context.Context, eventType events.EventType, payload interface{}) error {
	eb.mu.RLock()
	subs := append([]subscription(nil), eb.handlers[eventType]...)
	eb.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler(ctx, payload); err != nil {
			return fmt.Errorf("EventBus handler error for %s: %w", eventType, err)
		}
	}
	return nil
}

// PublishAsync publishes an event on a separate goroutine
func (eb *EventBus) PublishAsync(eventType events.EventType, payload interface{}) {
	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		// Async events are decoupled from the request and its transaction
		if err := eb.Publish(context.Background(), eventType, payload); err != nil {
			eb.logger.Warn("[EventBus] async publish failed", zap.String("event", eventType.String()), zap.Error(err))
		}
	}()
}

// Wait blocks until every async publish has finished
func (eb *EventBus) Wait() {
	eb.wg.Wait()
}

// Clear removes all handlers (useful for testing)
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers = make(map[events.EventType][]subscription)
}
