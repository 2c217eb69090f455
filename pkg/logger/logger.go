// Package logger provides the process-wide zap logger for objpool tools
package logger

import (
	"context"
	"sync"

	"github.com/ajitpratap0/objpool/pkg/poolerrors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// contextKey is the type for context keys
type contextKey string

const (
	// PoolKey is the context key for the pool name
	PoolKey contextKey = "pool"
	// RunIDKey is the context key for a benchmark run ID
	RunIDKey contextKey = "run_id"
	// WorkerKey is the context key for a worker index
	WorkerKey contextKey = "worker"
)

// Config represents logger configuration
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// FromLevel returns a logger configuration for the given level. Development
// mode switches to the console encoder.
func FromLevel(level string, development bool) Config {
	if level == "" {
		level = "info"
	}
	encoding := "json"
	if development {
		encoding = "console"
	}
	return Config{Level: level, Development: development, Encoding: encoding}
}

// Init initializes the global logger. Only the first call, or the first
// Get, takes effect.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = newLogger(cfg)
		if err != nil {
			// Fallback to basic logger
			globalLogger, _ = zap.NewProduction()
		}
	})
	return err
}

// newLogger creates a new zap logger
func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "invalid log level").
			WithDetail("level", cfg.Level)
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to build logger")
	}

	if cfg.Development {
		logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return logger, nil
}

// Get returns the global logger
func Get() *zap.Logger {
	// Create a default logger if not initialized
	_ = Init(Config{
		Level:       "info",
		Development: false,
		Encoding:    "json",
	})
	return globalLogger
}

// WithContext returns the global logger with context values
func WithContext(ctx context.Context) *zap.Logger {
	return Get().With(Fields(ctx)...)
}

// Fields returns the pool, run and worker values carried by ctx.
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if name, ok := ctx.Value(PoolKey).(string); ok {
		fields = append(fields, zap.String("pool", name))
	}
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		fields = append(fields, zap.String("run_id", runID))
	}
	if worker, ok := ctx.Value(WorkerKey).(int); ok {
		fields = append(fields, zap.Int("worker", worker))
	}
	return fields
}

// ForPool returns a named child logger for a pool
func ForPool(name string) *zap.Logger {
	return Get().Named("pool").With(zap.String("pool", name))
}

// Sync flushes any buffered log entries
func Sync() error {
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
