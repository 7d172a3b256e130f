package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// EventsHandler serves the durable trade-event stream to polling clients.
type EventsHandler struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler. bus may be nil when Redis is
// not configured.
func NewEventsHandler(bus domain.SignalBus, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		bus:    bus,
		logger: logHandler(logger, "events"),
	}
}

// eventEnvelope pairs a stream cursor with the raw event payload so clients
// can resume from where they left off.
type eventEnvelope struct {
	ID    string          `json:"id"`
	Event json.RawMessage `json:"event"`
}

// ListTrades reads trade events from the durable stream after the given
// cursor.
// GET /api/events/trades?after=<stream-id>&limit=N
func (h *EventsHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeError(w, http.StatusNotImplemented, "signal bus not configured")
		return
	}

	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	limit := parseLimit(r, 100, 1000)

	msgs, err := h.bus.StreamRead(r.Context(), domain.StreamTrades, after, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "stream read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read event stream")
		return
	}

	events := make([]eventEnvelope, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, eventEnvelope{ID: m.ID, Event: json.RawMessage(m.Payload)})
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
