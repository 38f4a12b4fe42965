package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/unimart-ng/backend-unimart/internal/events"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

type fakeSettlement struct {
	payments map[string]store.Payment
	orders   map[string]store.Order
}

func (f *fakeSettlement) GetPaymentByReference(_ context.Context, reference string) (store.Payment, error) {
	p, ok := f.payments[reference]
	if !ok {
		return store.Payment{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeSettlement) UpdatePaymentByReference(_ context.Context, reference, status string, payload json.RawMessage) (store.Payment, error) {
	p, ok := f.payments[reference]
	if !ok {
		return store.Payment{}, store.ErrNotFound
	}
	p.Status = status
	p.Payload = payload
	f.payments[reference] = p
	return p, nil
}

func (f *fakeSettlement) UpdateOrderStatusByReference(_ context.Context, reference, status string) (store.Order, error) {
	o, ok := f.orders[reference]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	o.Status = status
	f.orders[reference] = o
	return o, nil
}

type memEventStore struct {
	events []store.DomainEvent
}

func (m *memEventStore) InsertEvent(_ context.Context, ev store.DomainEvent) (uuid.UUID, error) {
	m.events = append(m.events, ev)
	return uuid.New(), nil
}

func newWebhookFixture(t *testing.T) (Webhook, *fakeSettlement, *memEventStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := &fakeSettlement{
		payments: map[string]store.Payment{},
		orders:   map[string]store.Order{},
	}
	evStore := &memEventStore{}
	h := Webhook{
		Store:     st,
		Providers: map[string]Provider{"paystack": Paystack{SecretKey: "sk_test_secret"}},
		Replay:    rdb,
		ReplayTTL: time.Minute,
		Events:    &events.Bus{Store: evStore},
	}
	return h, st, evStore, rdb
}

func postWebhook(t *testing.T, h Webhook, body []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	if sign {
		req.Header.Set("x-paystack-signature", signBody("sk_test_secret", body))
	}
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("provider", "paystack")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	h.Handle(w, req)
	return w
}

func TestWebhookSettlesPaidOrder(t *testing.T) {
	h, st, evStore, _ := newWebhookFixture(t)
	orderID := uuid.New()
	st.payments["UMS-1-0-1"] = store.Payment{Reference: "UMS-1-0-1", AmountMinor: 511_250, Status: StatusPending}
	st.orders["UMS-1-0-1"] = store.Order{ID: orderID, SessionID: "UMS-1", PaymentReference: "UMS-1-0-1",
		PlatformFeeMinor: 51_750, Status: StatusPending}

	body := []byte(`{"event":"charge.success","data":{"reference":"UMS-1-0-1","amount":511250,"status":"success"}}`)
	w := postWebhook(t, h, body, true)
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, StatusPaid, st.payments["UMS-1-0-1"].Status)
	require.Equal(t, StatusPaid, st.orders["UMS-1-0-1"].Status)
	require.Len(t, evStore.events, 1)
	require.Equal(t, events.TopicOrderPaid, evStore.events[0].Topic)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h, st, _, _ := newWebhookFixture(t)
	st.payments["UMS-1-0-1"] = store.Payment{Reference: "UMS-1-0-1", AmountMinor: 1000, Status: StatusPending}

	body := []byte(`{"event":"charge.success","data":{"reference":"UMS-1-0-1","amount":1000}}`)
	w := postWebhook(t, h, body, false)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, StatusPending, st.payments["UMS-1-0-1"].Status)
}

func TestWebhookRejectsReplay(t *testing.T) {
	h, st, _, _ := newWebhookFixture(t)
	st.payments["UMS-1-0-1"] = store.Payment{Reference: "UMS-1-0-1", AmountMinor: 1000, Status: StatusPending}
	st.orders["UMS-1-0-1"] = store.Order{PaymentReference: "UMS-1-0-1", Status: StatusPending}

	body := []byte(`{"event":"charge.success","data":{"reference":"UMS-1-0-1","amount":1000,"status":"success"}}`)
	first := postWebhook(t, h, body, true)
	require.Equal(t, http.StatusOK, first.Code)

	second := postWebhook(t, h, body, true)
	require.Equal(t, http.StatusConflict, second.Code)
}

func TestWebhookRejectsAmountMismatch(t *testing.T) {
	h, st, _, _ := newWebhookFixture(t)
	st.payments["UMS-1-0-1"] = store.Payment{Reference: "UMS-1-0-1", AmountMinor: 9999, Status: StatusPending}

	body := []byte(`{"event":"charge.success","data":{"reference":"UMS-1-0-1","amount":1000,"status":"success"}}`)
	w := postWebhook(t, h, body, true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, StatusPending, st.payments["UMS-1-0-1"].Status)
}

func TestWebhookMarksFailedPayment(t *testing.T) {
	h, st, evStore, _ := newWebhookFixture(t)
	st.payments["UMS-1-0-1"] = store.Payment{Reference: "UMS-1-0-1", AmountMinor: 1000, Status: StatusPending}
	st.orders["UMS-1-0-1"] = store.Order{PaymentReference: "UMS-1-0-1", Status: StatusPending}

	body := []byte(`{"event":"charge.failed","data":{"reference":"UMS-1-0-1","amount":1000,"status":"failed"}}`)
	w := postWebhook(t, h, body, true)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, StatusFailed, st.orders["UMS-1-0-1"].Status)
	require.Len(t, evStore.events, 1)
	require.Equal(t, events.TopicPaymentFailed, evStore.events[0].Topic)
}

func TestWebhookUnknownProvider(t *testing.T) {
	h, _, _, _ := newWebhookFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/flutter", bytes.NewReader([]byte("{}")))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("provider", "flutter")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	h.Handle(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
