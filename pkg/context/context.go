// Package context carries run and cell identity through a workflow run
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys for run tracing and correlation.
// Using unexported struct pointers prevents key collisions.
var (
	runIDKey     = &struct{}{}
	cellKeyKey   = &struct{}{}
	operationKey = &struct{}{}
	startTimeKey = &struct{}{}
)

// WithRunID adds a run ID to the context
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = GenerateRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// GetRunID retrieves the run ID from context
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-run"
}

// WithCellKey adds the executing matrix cell's key to the context
func WithCellKey(parent context.Context, cellKey string) context.Context {
	return context.WithValue(parent, cellKeyKey, cellKey)
}

// GetCellKey retrieves the matrix cell key from context
func GetCellKey(ctx context.Context) string {
	if key, ok := ctx.Value(cellKeyKey).(string); ok && key != "" {
		return key
	}
	return ""
}

// WithOperation adds an operation name to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		return op
	}
	return "unknown-operation"
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the operation start time from context
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// GetDuration calculates the duration since the start time in context
func GetDuration(ctx context.Context) time.Duration {
	return time.Since(GetStartTime(ctx))
}

// GenerateRunID creates a new unique run ID
func GenerateRunID() string {
	return "run_" + uuid.New().String()
}

// EnrichContext adds common tracing information to a context
func EnrichContext(parent context.Context) context.Context {
	ctx := parent

	if GetRunID(ctx) == "unknown-run" {
		ctx = WithRunID(ctx, GenerateRunID())
	}

	ctx = WithStartTime(ctx, time.Now())

	return ctx
}

// TracingFields returns common tracing fields for structured logging
func TracingFields(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"run_id":      GetRunID(ctx),
		"cell":        GetCellKey(ctx),
		"operation":   GetOperation(ctx),
		"duration_ms": GetDuration(ctx).Milliseconds(),
	}
}
