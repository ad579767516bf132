// Package audit records metadata about each conversion. Document bytes and
// extracted text are never recorded.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/doc-converter/internal/observability"
)

// StatusOK marks a successful conversion. Failures carry the error type.
const StatusOK = "ok"

// Event represents one conversion attempt.
type Event struct {
	ID          uuid.UUID     `json:"id"`
	SourceKind  string        `json:"source_kind"`
	TargetKind  string        `json:"target_kind"`
	Status      string        `json:"status"`
	InputBytes  int64         `json:"input_bytes"`
	OutputBytes int64         `json:"output_bytes"`
	PageCount   int           `json:"page_count"`
	Duration    time.Duration `json:"duration"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// Sink persists events.
type Sink interface {
	Write(ctx context.Context, event Event) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]Event, error)
	Close() error
}

// Logger handles audit event logging.
type Logger struct {
	logger *observability.Logger
	sink   Sink
}

// NewLogger creates a new audit logger. A nil sink only logs.
func NewLogger(logger *observability.Logger, sink Sink) *Logger {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Logger{
		logger: logger.WithOperation("audit"),
		sink:   sink,
	}
}

// Record logs the event and forwards it to the sink. Sink failures are logged
// and never returned.
func (a *Logger) Record(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	a.logger.WithContext(ctx).Info().
		Str("event_id", event.ID.String()).
		Str("source", event.SourceKind).
		Str("target", event.TargetKind).
		Str("status", event.Status).
		Int64("input_bytes", event.InputBytes).
		Int64("output_bytes", event.OutputBytes).
		Int("pages", event.PageCount).
		Dur("duration", event.Duration).
		Msg("Conversion event")

	if a.sink == nil {
		return
	}

	// The request may already be cancelled; the audit write should still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := a.sink.Write(writeCtx, event); err != nil {
		a.logger.Warn().
			Str("event_id", event.ID.String()).
			Err(err).
			Msg("Failed to persist audit event")
	}
}

// Recent returns the newest events from the sink, or none without one.
func (a *Logger) Recent(ctx context.Context, limit int) ([]Event, error) {
	if a.sink == nil {
		return nil, nil
	}
	return a.sink.Recent(ctx, limit)
}

// Close releases the sink.
func (a *Logger) Close() error {
	if a.sink == nil {
		return nil
	}
	return a.sink.Close()
}
