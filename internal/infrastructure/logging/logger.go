package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
)

// New builds a logger: a colored console logger at debug level in development,
// JSON at info level otherwise. The result also becomes the process-wide logger.
func New(debug bool) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err = cfg.Build()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		logger, err = cfg.Build()
	}
	if err != nil {
		return nil, err
	}

	Set(logger)
	return logger, nil
}

// Set replaces the process-wide logger
func Set(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	global = logger
	mu.Unlock()
	zap.ReplaceGlobals(logger)
}

// L returns the process-wide logger
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// S returns the sugared process-wide logger
func S() *zap.SugaredLogger {
	return L().Sugar()
}
