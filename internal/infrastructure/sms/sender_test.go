package sms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), "+15550001", "Your token is 4."))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "+15550001", entry.ContextMap()["to"])
	assert.Equal(t, "Your token is 4.", entry.ContextMap()["message"])

	assert.Error(t, s.Send(context.Background(), " ", "x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "+15550001", "x"), context.Canceled)
}
