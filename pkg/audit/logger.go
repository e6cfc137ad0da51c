package audit

import (
	"context"
	"errors"

	"github.com/platinummonkey/stockyard/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered events
	Close() error
}

// contextKey is the type for context keys
type contextKey string

// LoggerKey is the context key for the audit logger
const LoggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(LoggerKey).(Logger); ok {
		return logger
	}
	return NopLogger()
}

type noOpLogger struct{}

func (noOpLogger) Log(context.Context, *Event) error { return nil }
func (noOpLogger) Close() error                      { return nil }

// NopLogger discards every event
func NopLogger() Logger {
	return noOpLogger{}
}

// LogLogger writes audit events as structured log entries
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates a logger that writes to logger at info level
func NewLogLogger(logger *observability.Logger) *LogLogger {
	return &LogLogger{logger: logger.WithField("audit", true)}
}

// Log implements Logger
func (l *LogLogger) Log(_ context.Context, event *Event) error {
	fields := map[string]interface{}{
		"audit_id":   event.ID,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.Actor != "" {
		fields["actor"] = event.Actor
	}
	if event.RoleID != 0 {
		fields["role_id"] = event.RoleID
	}
	if event.PermissionID != 0 {
		fields["permission_id"] = event.PermissionID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}
	l.logger.WithFields(fields).Info(msg)
	return nil
}

// Close implements Logger
func (l *LogLogger) Close() error { return nil }

// MultiLogger logs to several audit loggers in order
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that writes to every logger
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log writes event to every logger. A failing logger does not stop the others.
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every logger
func (m *MultiLogger) Close() error {
	var errs []error
	for _, l := range m.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
