package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetAndL(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	L().Info("[Reminder] dispatched", zap.Int("count", 2))
	S().Infow("[Outbox] processed", "id", "evt-1")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "[Reminder] dispatched", entries[0].Message)
	assert.Equal(t, int64(2), entries[0].ContextMap()["count"])
	assert.Equal(t, "evt-1", entries[1].ContextMap()["id"])
}

func TestSetNilFallsBackToNop(t *testing.T) {
	Set(nil)
	assert.NotPanics(t, func() { L().Info("ignored") })
}
