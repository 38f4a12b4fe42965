package events

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unimart-ng/backend-unimart/internal/common"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

// HistoryStore reads persisted events back for support tooling.
type HistoryStore interface {
	ListEventsByAggregate(ctx context.Context, aggregateID string, limit int32) ([]store.DomainEvent, error)
}

// Handler exposes the event log to the admin console, keyed by aggregate
// (checkout session id or payment reference).
type Handler struct {
	Store HistoryStore
}

type eventPayload struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  string          `json:"occurred_at"`
}

// Aggregate returns an aggregate's event history, oldest first.
func (h *Handler) Aggregate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "EVENTS_NOT_CONFIGURED", "event log unavailable", nil)
		return
	}
	aggregateID := chi.URLParam(r, "aggregateID")
	if aggregateID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "aggregate id is required", nil)
		return
	}
	limit := common.AtoiDefault(r.URL.Query().Get("limit"), 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	rows, err := h.Store.ListEventsByAggregate(r.Context(), aggregateID, int32(limit))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "EVENTS_ERROR", "could not load events", nil)
		return
	}
	out := make([]eventPayload, 0, len(rows))
	for _, ev := range rows {
		out = append(out, eventPayload{
			ID:          ev.ID.String(),
			Topic:       ev.Topic,
			AggregateID: ev.AggregateID,
			Payload:     ev.Payload,
			OccurredAt:  ev.OccurredAt.UTC().Format(time.RFC3339),
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"events": out})
}
