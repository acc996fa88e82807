package core

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior; the default is zerolog.
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// ZerologLogger adapts a zerolog.Logger to Logger.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

// NewDefaultLogger logs info and above to stderr in console format.
func NewDefaultLogger() *ZerologLogger {
	return NewWriterLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, zerolog.InfoLevel)
}

// NewWriterLogger logs to w at the given minimum level.
func NewWriterLogger(w io.Writer, level zerolog.Level) *ZerologLogger {
	return NewZerologLogger(zerolog.New(w).Level(level).With().Timestamp().Logger())
}

// Zerolog returns the underlying zerolog logger.
func (l *ZerologLogger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *ZerologLogger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l *ZerologLogger) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }
func (l *ZerologLogger) Warn(msg string, fields ...Field)  { emit(l.zl.Warn(), msg, fields) }
func (l *ZerologLogger) Error(msg string, fields ...Field) { emit(l.zl.Error(), msg, fields) }

func emit(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		// level disabled
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			e.Str(f.Key, v)
		case int:
			e.Int(f.Key, v)
		case int64:
			e.Int64(f.Key, v)
		case uint64:
			e.Uint64(f.Key, v)
		case bool:
			e.Bool(f.Key, v)
		case time.Duration:
			e.Dur(f.Key, v)
		case error:
			e.AnErr(f.Key, v)
		default:
			e.Interface(f.Key, v)
		}
	}
	e.Msg(msg)
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}

// throttledWarn returns a SignalEvent warn handler that logs at most once per
// interval.
func throttledWarn(logger Logger, interval time.Duration, msg string, fields ...Field) func(time.Duration) {
	sometimes := &rate.Sometimes{Interval: interval}
	return func(waited time.Duration) {
		sometimes.Do(func() {
			all := make([]Field, 0, len(fields)+1)
			all = append(all, fields...)
			logger.Warn(msg, append(all, F("waited", waited))...)
		})
	}
}
