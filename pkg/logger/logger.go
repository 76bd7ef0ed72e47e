package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig controls logger construction.
type LoggerConfig struct {
	// Debug enables development mode: human-readable output and debug level.
	Debug bool
}

// NewLogger creates a zap logger. Production mode emits JSON at info level,
// debug mode emits console output at debug level.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}

	if cfg.Debug {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return c.Build()
	}

	c := zap.NewProductionConfig()
	c.EncoderConfig.TimeKey = "ts"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return c.Build()
}

// NewNopLogger returns a logger that discards everything. For tests.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}
