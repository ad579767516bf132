package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/spherical/doc-converter/internal/audit"
	"github.com/spherical/doc-converter/internal/observability"
)

// EventSource lists recent audit events.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// EventsHandler serves the conversion audit trail.
type EventsHandler struct {
	logger *observability.Logger
	events EventSource
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(logger *observability.Logger, events EventSource) *EventsHandler {
	if logger == nil {
		logger = observability.Nop()
	}
	return &EventsHandler{
		logger: logger,
		events: events,
	}
}

// EventsResponseDTO represents the API response for the audit trail.
type EventsResponseDTO struct {
	Events []EventDTO `json:"events"`
}

// EventDTO represents one audit event.
type EventDTO struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Status      string `json:"status"`
	InputBytes  int64  `json:"inputBytes"`
	OutputBytes int64  `json:"outputBytes"`
	PageCount   int    `json:"pageCount"`
	DurationMs  int64  `json:"durationMs"`
	OccurredAt  string `json:"occurredAt"`
}

// Recent handles GET /api/v1/events?limit=N.
func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "validation", "limit must be a positive integer", v)
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Failed to read audit events")
		writeError(w, http.StatusInternalServerError, "internal", "failed to read events", "")
		return
	}

	resp := EventsResponseDTO{Events: make([]EventDTO, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, EventDTO{
			ID:          e.ID.String(),
			Source:      e.SourceKind,
			Target:      e.TargetKind,
			Status:      e.Status,
			InputBytes:  e.InputBytes,
			OutputBytes: e.OutputBytes,
			PageCount:   e.PageCount,
			DurationMs:  e.Duration.Milliseconds(),
			OccurredAt:  e.OccurredAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
