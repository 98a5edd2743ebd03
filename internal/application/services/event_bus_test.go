package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicq/backend/internal/domain/events"
)

func TestEventBus_PublishInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus(nil)
	var calls []string
	bus.Subscribe(events.TokenIssued, func(_ context.Context, _ interface{}) error {
		calls = append(calls, "first")
		return nil
	})
	bus.Subscribe(events.TokenIssued, func(_ context.Context, _ interface{}) error {
		calls = append(calls, "second")
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), events.TokenIssued, nil))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestEventBus_HandlerErrorStopsDispatch(t *testing.T) {
	bus := NewEventBus(nil)
	called := false
	bus.Subscribe(events.SMSRequested, func(_ context.Context, _ interface{}) error {
		return errors.New("carrier down")
	})
	bus.Subscribe(events.SMSRequested, func(_ context.Context, _ interface{}) error {
		called = true
		return nil
	})

	err := bus.Publish(context.Background(), events.SMSRequested, events.SMSPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier down")
	assert.False(t, called)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(nil)
	var n int32
	handler := func(_ context.Context, _ interface{}) error {
		atomic.AddInt32(&n, 1)
		return nil
	}
	unsubA := bus.Subscribe(events.TokenStatusChanged, handler)
	bus.Subscribe(events.TokenStatusChanged, handler)

	unsubA()
	unsubA() // second call is a no-op

	require.NoError(t, bus.Publish(context.Background(), events.TokenStatusChanged, nil))
	assert.Equal(t, int32(1), atomic.LoadInt32(&n))
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus(nil)
	var n int32
	bus.Subscribe(events.TokenIssued, func(_ context.Context, _ interface{}) error {
		atomic.AddInt32(&n, 1)
		return nil
	})

	for i := 0; i < 5; i++ {
		bus.PublishAsync(events.TokenIssued, nil)
	}
	bus.Wait()
	assert.Equal(t, int32(5), atomic.LoadInt32(&n))
}
