package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"

	"github.com/unimart-ng/backend-unimart/internal/common"
	"github.com/unimart-ng/backend-unimart/internal/events"
	"github.com/unimart-ng/backend-unimart/internal/obs"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

// SettlementStore is the persistence surface webhook settlement needs.
type SettlementStore interface {
	GetPaymentByReference(ctx context.Context, reference string) (store.Payment, error)
	UpdatePaymentByReference(ctx context.Context, reference, status string, payload json.RawMessage) (store.Payment, error)
	UpdateOrderStatusByReference(ctx context.Context, reference, status string) (store.Order, error)
}

// Webhook handles payment provider callbacks: signature verification, replay
// protection, and per-group order settlement.
type Webhook struct {
	Store     SettlementStore
	Providers map[string]Provider
	Replay    *redis.Client
	ReplayTTL time.Duration
	Events    *events.Bus
}

// Handle processes webhook callbacks for the configured payment provider(s).
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil || h.Providers == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	provider, ok := h.Providers[providerKey]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	result, err := provider.VerifyWebhook(r, body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}
	if !result.Valid {
		countWebhook(providerKey, "invalid_signature")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:%s:%s", providerKey, common.Sha256Hex(string(body)))
		ok, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !ok {
			countWebhook(providerKey, "replay")
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}
	if result.ProviderPayload == nil {
		result.ProviderPayload = body
	}

	ctx := r.Context()
	existing, err := h.Store.GetPaymentByReference(ctx, result.Reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			countWebhook(providerKey, "unknown_reference")
			common.JSONError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_FETCH_ERROR", err.Error(), nil)
		return
	}
	if result.AmountMinor > 0 && existing.AmountMinor != result.AmountMinor {
		countWebhook(providerKey, "amount_mismatch")
		common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "provider amount mismatch", nil)
		return
	}

	shouldSettle := result.Status == StatusPaid && existing.Status != StatusPaid
	if _, err := h.Store.UpdatePaymentByReference(ctx, result.Reference, result.Status, result.ProviderPayload); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_UPDATE_ERROR", err.Error(), nil)
		return
	}

	switch result.Status {
	case StatusPaid:
		if shouldSettle {
			order, err := h.Store.UpdateOrderStatusByReference(ctx, result.Reference, StatusPaid)
			if err != nil {
				common.JSONError(w, http.StatusInternalServerError, "ORDER_UPDATE_ERROR", err.Error(), nil)
				return
			}
			if obs.PlatformFeeKobo != nil {
				obs.PlatformFeeKobo.Add(float64(order.PlatformFeeMinor))
			}
			h.emit(ctx, events.TopicOrderPaid, result.Reference, map[string]any{
				"order_id":           order.ID.String(),
				"session_id":         order.SessionID,
				"platform_fee_minor": order.PlatformFeeMinor,
			})
		}
	case StatusFailed:
		if _, err := h.Store.UpdateOrderStatusByReference(ctx, result.Reference, StatusFailed); err != nil {
			common.JSONError(w, http.StatusInternalServerError, "ORDER_UPDATE_ERROR", err.Error(), nil)
			return
		}
		h.emit(ctx, events.TopicPaymentFailed, result.Reference, map[string]any{
			"reference": result.Reference,
		})
	}

	countWebhook(providerKey, "ok")
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": result.Status}})
}

func (h Webhook) emit(ctx context.Context, topic, aggregateID string, payload any) {
	if h.Events == nil {
		return
	}
	_, _ = h.Events.Emit(ctx, topic, aggregateID, payload)
}

func countWebhook(provider, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(provider, result).Inc()
	}
}
