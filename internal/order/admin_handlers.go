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
	"github.com/unimart-ng/backend-unimart/internal/payment"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

// AdminStore is the surface admin and vendor order endpoints need.
type AdminStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (store.Order, error)
	ListOrdersByVendor(ctx context.Context, vendorID uuid.UUID, limit, offset int32) ([]store.Order, int64, error)
}

// AdminHandler exposes admin order moderation and the vendor order list.
type AdminHandler struct {
	Store AdminStore
}

const (
	statusCancelled = "cancelled"
	statusRefunded  = "refunded"
	statusFulfilled = "fulfilled"
)

// adminTransition reports whether an operator may move an order from one
// status to another. Payment statuses themselves are owned by the webhook.
func adminTransition(from, to string) bool {
	switch to {
	case statusCancelled:
		return from == payment.StatusPending || from == payment.StatusProcessing || from == payment.StatusFailed
	case statusRefunded:
		return from == payment.StatusPaid
	case statusFulfilled:
		return from == payment.StatusPaid
	default:
		return false
	}
}

// PatchStatus handles PATCH /admin/orders/{id}/status.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	target := strings.ToLower(strings.TrimSpace(body.Status))

	o, err := h.Store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if !adminTransition(o.Status, target) {
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", "cannot move order from "+o.Status+" to "+target, nil)
		return
	}
	updated, err := h.Store.UpdateOrderStatus(r.Context(), id, target)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": toPayload(updated)})
}

// VendorOrders handles GET /admin/vendors/{id}/orders.
func (h *AdminHandler) VendorOrders(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	vendorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid vendor id", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	if perPage > 100 {
		perPage = 100
	}
	rows, total, err := h.Store.ListOrdersByVendor(r.Context(), vendorID, int32(perPage), int32((page-1)*perPage))
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
