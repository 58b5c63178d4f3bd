// Package logging provides a common interface and setup for application-wide logging.
package logging

// file: internal/logging/logger.go

import (
	"context"
)

// Logger defines the interface for logging within the application.
// Components receive a Logger rather than reaching for a global, so tests can pass
// GetNoopLogger() and the server can pass a component-scoped logger.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, args ...any)

	// Info logs an info-level message.
	Info(msg string, args ...any)

	// Warn logs a warning-level message.
	Warn(msg string, args ...any)

	// Error logs an error-level message.
	Error(msg string, args ...any)

	// WithContext returns a logger carrying values found in ctx (e.g. the request ID).
	WithContext(ctx context.Context) Logger

	// WithField returns a logger with an additional field.
	WithField(key string, value any) Logger
}

// NoopLogger discards everything. Tests and constructors given a nil logger use it.
type NoopLogger struct{}

func (l *NoopLogger) Debug(string, ...any)               {}
func (l *NoopLogger) Info(string, ...any)                {}
func (l *NoopLogger) Warn(string, ...any)                {}
func (l *NoopLogger) Error(string, ...any)               {}
func (l *NoopLogger) WithContext(context.Context) Logger { return l }
func (l *NoopLogger) WithField(string, any) Logger       { return l }

var noop = &NoopLogger{}

// GetNoopLogger returns the shared no-op logger.
func GetNoopLogger() Logger { return noop }

// defaultLogger backs GetLogger until SetDefaultLogger installs a real one.
var defaultLogger = GetNoopLogger()

// SetDefaultLogger replaces the logger GetLogger derives from. Nil is ignored.
func SetDefaultLogger(logger Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// GetLogger returns the default logger tagged with component=name.
func GetLogger(name string) Logger {
	return defaultLogger.WithField("component", name)
}

type requestIDKey struct{}

// ContextWithRequestID stores a request correlation ID in ctx.
// Loggers derived with WithContext attach it as the "requestID" field.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation ID stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
