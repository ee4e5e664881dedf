package device

import "log/slog"

// Logger is an optional logging interface that can be provided to the
// device handle. This allows integration with any logging framework.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// nopLogger is the default logger; it discards everything.
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// slogLogger adapts a *slog.Logger to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger returns a Logger backed by the given slog logger.
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, kv ...interface{}) { s.l.Debug(msg, kv...) }
func (s *slogLogger) Info(msg string, kv ...interface{})  { s.l.Info(msg, kv...) }
func (s *slogLogger) Error(msg string, kv ...interface{}) { s.l.Error(msg, kv...) }
