package logger

import (
	"context"

	gcontext "github.com/gantry/gantry/pkg/context"
)

// LoggerContext extends the Logger interface with context-aware methods
// so run and cell identity flow into every log line.
type LoggerContext interface {
	Logger
	InfoContext(ctx context.Context, message string, fields ...Field)
	ErrorContext(ctx context.Context, message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
}

// Ensure CellLogger implements LoggerContext
var _ LoggerContext = (*CellLogger)(nil)

// InfoContext logs an info message with run tracing
func (l *CellLogger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.Info(message, append(l.extractContextFields(ctx), fields...)...)
}

// ErrorContext logs an error message with run tracing
func (l *CellLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {
	l.Error(message, append(l.extractContextFields(ctx), fields...)...)
}

// WarnContext logs a warning message with run tracing
func (l *CellLogger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.Warn(message, append(l.extractContextFields(ctx), fields...)...)
}

// DebugContext logs a debug message with run tracing
func (l *CellLogger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, append(l.extractContextFields(ctx), fields...)...)
}

// extractContextFields extracts tracing fields from context
func (l *CellLogger) extractContextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field
	if runID := gcontext.GetRunID(ctx); runID != "unknown-run" {
		fields = append(fields, WithField("run_id", runID))
	}
	if cell := gcontext.GetCellKey(ctx); cell != "" {
		fields = append(fields, WithField("cell", cell))
	}
	return fields
}
