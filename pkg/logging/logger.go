// Package logging provides structured logging for the viq client and its local dashboard.
// It wraps zerolog to provide a consistent logging interface with support for
// JSON output (daemon/automation) and human-readable output (interactive use).
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey type for context values to avoid collisions.
type ContextKey string

// Context keys for request correlation.
const (
	RequestIDKey ContextKey = "request_id"
	TaskIDKey    ContextKey = "task_id"
)

// Level represents logging severity levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel converts a user-supplied string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Config holds logger configuration.
type Config struct {
	// Level sets the minimum log level (debug, info, warn, error).
	Level Level

	// ServiceName is included in all log entries.
	ServiceName string

	// Environment is included in all log entries (e.g., "cli", "daemon").
	Environment string

	// JSONFormat enables JSON output when true, human-readable when false.
	JSONFormat bool

	// Output sets the writer for logs (defaults to os.Stderr so command output stays clean).
	Output io.Writer
}

// DefaultConfig returns a Config with sensible defaults for interactive use.
func DefaultConfig() *Config {
	return &Config{
		Level:       LevelInfo,
		ServiceName: "viq",
		Environment: "cli",
		JSONFormat:  false,
		Output:      os.Stderr,
	}
}

// Logger is the interface for structured logging.
type Logger interface {
	// Debug logs a debug message with optional fields.
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields.
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields.
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields.
	Error(msg string, fields ...Field)

	// With returns a new Logger with the given fields attached to all subsequent logs.
	With(fields ...Field) Logger

	// WithContext returns a new Logger that extracts correlation ids from the context.
	WithContext(ctx context.Context) Logger

	// Zerolog returns the underlying zerolog.Logger, e.g. for echo request logging.
	Zerolog() zerolog.Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field with the given key and value.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err creates a Field for an error.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// logger implements the Logger interface using zerolog.
type logger struct {
	zl zerolog.Logger
}

// NewLogger creates a new Logger with the given configuration.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if !cfg.JSONFormat {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.Kitchen,
			NoColor:    !isTerminal(output),
		}
	}

	zl := zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service_name", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Logger()

	return &logger{zl: zl}
}

// isTerminal reports whether w is a character device, for color decisions.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Zerolog returns the underlying zerolog.Logger.
func (l *logger) Zerolog() zerolog.Logger {
	return l.zl
}

// parseLevel converts Level to zerolog.Level.
func parseLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message.
func (l *logger) Debug(msg string, fields ...Field) {
	addFields(l.zl.Debug(), fields).Msg(msg)
}

// Info logs an info message.
func (l *logger) Info(msg string, fields ...Field) {
	addFields(l.zl.Info(), fields).Msg(msg)
}

// Warn logs a warning message.
func (l *logger) Warn(msg string, fields ...Field) {
	addFields(l.zl.Warn(), fields).Msg(msg)
}

// Error logs an error message.
func (l *logger) Error(msg string, fields ...Field) {
	addFields(l.zl.Error(), fields).Msg(msg)
}

// With returns a new logger with additional fields.
func (l *logger) With(fields ...Field) Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = addFieldToContext(ctx, f)
	}
	return &logger{zl: ctx.Logger()}
}

// WithContext returns a new logger that includes correlation ids from context.
func (l *logger) WithContext(ctx context.Context) Logger {
	newLogger := l.zl.With()

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.Str("request_id", requestID)
	}

	if taskID, ok := ctx.Value(TaskIDKey).(string); ok && taskID != "" {
		newLogger = newLogger.Str("task_id", taskID)
	}

	return &logger{zl: newLogger.Logger()}
}

// addFields adds multiple fields to a zerolog event.
func addFields(event *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			event = event.Str(f.Key, v)
		case int:
			event = event.Int(f.Key, v)
		case int64:
			event = event.Int64(f.Key, v)
		case float64:
			event = event.Float64(f.Key, v)
		case bool:
			event = event.Bool(f.Key, v)
		case error:
			event = event.Err(v)
		case time.Duration:
			event = event.Dur(f.Key, v)
		case time.Time:
			event = event.Time(f.Key, v)
		default:
			event = event.Interface(f.Key, v)
		}
	}
	return event
}

// addFieldToContext adds a field to a zerolog context.
func addFieldToContext(ctx zerolog.Context, f Field) zerolog.Context {
	switch v := f.Value.(type) {
	case string:
		return ctx.Str(f.Key, v)
	case int:
		return ctx.Int(f.Key, v)
	case int64:
		return ctx.Int64(f.Key, v)
	case float64:
		return ctx.Float64(f.Key, v)
	case bool:
		return ctx.Bool(f.Key, v)
	case error:
		return ctx.Err(v)
	case time.Duration:
		return ctx.Dur(f.Key, v)
	case time.Time:
		return ctx.Time(f.Key, v)
	default:
		return ctx.Interface(f.Key, v)
	}
}

// nopLogger is a logger that discards all output.
type nopLogger struct{}

func (n *nopLogger) Debug(msg string, fields ...Field)      {}
func (n *nopLogger) Info(msg string, fields ...Field)       {}
func (n *nopLogger) Warn(msg string, fields ...Field)       {}
func (n *nopLogger) Error(msg string, fields ...Field)      {}
func (n *nopLogger) With(fields ...Field) Logger            { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger { return n }
func (n *nopLogger) Zerolog() zerolog.Logger                { return zerolog.Nop() }

// NewNopLogger returns a logger that discards all output.
// Useful for testing when you don't want log noise.
func NewNopLogger() Logger {
	return &nopLogger{}
}
