// Package sms delivers text messages. Only a logging sender exists: messages
// are written to the log instead of reaching a carrier.
package sms

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain/ports"
)

var _ ports.SMSSender = (*LogSender)(nil)

// LogSender simulates delivery by logging each message
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message; it fails only on an empty recipient
func (s *LogSender) Send(ctx context.Context, to, message string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("sms: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("[SMS] simulated delivery", zap.String("to", to), zap.String("message", message))
	return nil
}
