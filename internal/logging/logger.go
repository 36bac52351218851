package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

// NewLogger builds a production logger at the given level.
// With verbose set, a human-readable development encoder is used instead.
func NewLogger(level string, verbose bool) (*Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config = zap.NewDevelopmentConfig()
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	// Parse log level
	var zapLevel zapcore.Level
	if level == "" {
		level = "warn"
	}
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	if verbose && zapLevel > zapcore.DebugLevel {
		zapLevel = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{logger}, nil
}

// Component returns a named child logger for one package
func (l *Logger) Component(name string) *zap.Logger {
	if l == nil || l.Logger == nil {
		return zap.NewNop()
	}
	return l.Named(name)
}

// OrNop returns logger, or a no-op logger when it is nil
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
