package ports

import (
	"context"

	"github.com/clinicq/backend/internal/domain/events"
)

// EventHandler is a function that handles an event
type EventHandler func(ctx context.Context, payload interface{}) error

// EventPublisher provides event publishing capabilities.
type EventPublisher interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType events.EventType, handler EventHandler) func()

	// Publish dispatches an event to all registered handlers.
	// Returns an error if any handler fails.
	Publish(ctx context.Context, eventType events.EventType, payload interface{}) error
}

// SMSSender delivers a text message to a phone number
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}
