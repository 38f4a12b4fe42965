package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/unimart-ng/backend-unimart/internal/common"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

// Store is the read surface shopper order endpoints need.
type Store interface {
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, status *string, limit, offset int32) ([]store.Order, int64, error)
	ListOrdersBySession(ctx context.Context, sessionID string) ([]store.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
}

// Handler exposes shopper order endpoints.
type Handler struct {
	Store Store
}

type orderPayload struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id"`
	VendorID         *string         `json:"vendor_id,omitempty"`
	Subtotal         float64         `json:"subtotal"`
	Shipping         float64         `json:"shipping"`
	VAT              float64         `json:"vat"`
	Total            float64         `json:"total"`
	PlatformFeeMinor int64           `json:"platform_fee_minor"`
	Reference        string          `json:"reference"`
	Status           string          `json:"status"`
	DeliveryMethod   string          `json:"delivery_method"`
	ShippingAddress  json.RawMessage `json:"shipping_address,omitempty"`
	CreatedAt        string          `json:"created_at"`
}

func toPayload(o store.Order) orderPayload {
	p := orderPayload{
		ID:               o.ID.String(),
		SessionID:        o.SessionID,
		Subtotal:         o.Subtotal,
		Shipping:         o.Shipping,
		VAT:              o.VAT,
		Total:            o.Total,
		PlatformFeeMinor: o.PlatformFeeMinor,
		Reference:        o.PaymentReference,
		Status:           o.Status,
		DeliveryMethod:   o.DeliveryMethod,
		ShippingAddress:  o.ShippingAddress,
		CreatedAt:        o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if o.VendorID != nil {
		id := o.VendorID.String()
		p.VendorID = &id
	}
	return p
}

// List handles GET /orders for the signed-in shopper.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	var status *string
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		status = &v
	}
	rows, total, err := h.Store.ListOrdersByUser(r.Context(), userID, status, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	payload := make([]orderPayload, 0, len(rows))
	for _, o := range rows {
		payload = append(payload, toPayload(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       payload,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// Get handles GET /orders/{id}. Shoppers can only see their own orders.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if o.UserID != userID {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toPayload(o)})
}

// Session handles GET /orders/session/{sessionID}: every vendor group of one
// checkout attempt.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	userID, ok := authedUser(r)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if sessionID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "session id is required", nil)
		return
	}
	rows, err := h.Store.ListOrdersBySession(r.Context(), sessionID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	payload := make([]orderPayload, 0, len(rows))
	for _, o := range rows {
		if o.UserID != userID {
			continue
		}
		payload = append(payload, toPayload(o))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payload})
}

func authedUser(r *http.Request) (uuid.UUID, bool) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
