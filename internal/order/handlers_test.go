package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/unimart-ng/backend-unimart/internal/common"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

type fakeOrderStore struct {
	orders map[uuid.UUID]store.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[uuid.UUID]store.Order{}}
}

func (s *fakeOrderStore) add(o store.Order) store.Order {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	}
	s.orders[o.ID] = o
	return o
}

func (s *fakeOrderStore) ListOrdersByUser(_ context.Context, userID uuid.UUID, status *string, limit, offset int32) ([]store.Order, int64, error) {
	var all []store.Order
	for _, o := range s.orders {
		if o.UserID != userID {
			continue
		}
		if status != nil && o.Status != *status {
			continue
		}
		all = append(all, o)
	}
	total := int64(len(all))
	if int(offset) >= len(all) {
		return nil, total, nil
	}
	all = all[offset:]
	if int(limit) < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *fakeOrderStore) ListOrdersBySession(_ context.Context, sessionID string) ([]store.Order, error) {
	var out []store.Order
	for _, o := range s.orders {
		if o.SessionID == sessionID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeOrderStore) GetOrder(_ context.Context, id uuid.UUID) (store.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *fakeOrderStore) UpdateOrderStatus(_ context.Context, id uuid.UUID, status string) (store.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	o.Status = status
	s.orders[id] = o
	return o, nil
}

func (s *fakeOrderStore) ListOrdersByVendor(_ context.Context, vendorID uuid.UUID, limit, offset int32) ([]store.Order, int64, error) {
	var out []store.Order
	for _, o := range s.orders {
		if o.VendorID != nil && *o.VendorID == vendorID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func authedRequest(t *testing.T, method, target, body string, userID uuid.UUID, params map[string]string) *http.Request {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	ctx := common.WithUserID(req.Context(), userID.String())
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func TestListReturnsOnlyOwnOrders(t *testing.T) {
	fs := newFakeOrderStore()
	userID := uuid.New()
	fs.add(store.Order{UserID: userID, SessionID: "UMS-1", Status: "paid", Total: 4600})
	fs.add(store.Order{UserID: uuid.New(), SessionID: "UMS-2", Status: "paid"})

	h := &Handler{Store: fs}
	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(t, http.MethodGet, "/orders", "", userID, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data       []orderPayload    `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "UMS-1", body.Data[0].SessionID)
	require.Equal(t, 1, body.Pagination.TotalItems)
}

func TestListFiltersByStatus(t *testing.T) {
	fs := newFakeOrderStore()
	userID := uuid.New()
	fs.add(store.Order{UserID: userID, Status: "paid"})
	fs.add(store.Order{UserID: userID, Status: "failed"})

	h := &Handler{Store: fs}
	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(t, http.MethodGet, "/orders?status=failed", "", userID, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []orderPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "failed", body.Data[0].Status)
}

func TestListRequiresAuth(t *testing.T) {
	h := &Handler{Store: newFakeOrderStore()}
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetHidesOtherUsersOrders(t *testing.T) {
	fs := newFakeOrderStore()
	owner := uuid.New()
	o := fs.add(store.Order{UserID: owner, Status: "paid"})

	h := &Handler{Store: fs}

	rec := httptest.NewRecorder()
	h.Get(rec, authedRequest(t, http.MethodGet, "/orders/"+o.ID.String(), "", owner,
		map[string]string{"id": o.ID.String()}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Get(rec, authedRequest(t, http.MethodGet, "/orders/"+o.ID.String(), "", uuid.New(),
		map[string]string{"id": o.ID.String()}))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionReturnsAllGroups(t *testing.T) {
	fs := newFakeOrderStore()
	userID := uuid.New()
	fs.add(store.Order{UserID: userID, SessionID: "UMS-77", Status: "paid"})
	fs.add(store.Order{UserID: userID, SessionID: "UMS-77", Status: "processing"})
	fs.add(store.Order{UserID: userID, SessionID: "UMS-88", Status: "paid"})

	h := &Handler{Store: fs}
	rec := httptest.NewRecorder()
	h.Session(rec, authedRequest(t, http.MethodGet, "/orders/session/UMS-77", "", userID,
		map[string]string{"sessionID": "UMS-77"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []orderPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
}

func TestAdminPatchStatusValidatesTransition(t *testing.T) {
	fs := newFakeOrderStore()
	paid := fs.add(store.Order{UserID: uuid.New(), Status: "paid"})
	pending := fs.add(store.Order{UserID: uuid.New(), Status: "pending"})

	h := &AdminHandler{Store: fs}

	rec := httptest.NewRecorder()
	h.PatchStatus(rec, authedRequest(t, http.MethodPatch, "/admin/orders/"+paid.ID.String()+"/status",
		`{"status":"refunded"}`, uuid.New(), map[string]string{"id": paid.ID.String()}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "refunded", fs.orders[paid.ID].Status)

	// Refunding an order that never got paid is rejected.
	rec = httptest.NewRecorder()
	h.PatchStatus(rec, authedRequest(t, http.MethodPatch, "/admin/orders/"+pending.ID.String()+"/status",
		`{"status":"refunded"}`, uuid.New(), map[string]string{"id": pending.ID.String()}))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.PatchStatus(rec, authedRequest(t, http.MethodPatch, "/admin/orders/"+pending.ID.String()+"/status",
		`{"status":"cancelled"}`, uuid.New(), map[string]string{"id": pending.ID.String()}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "cancelled", fs.orders[pending.ID].Status)
}

func TestAdminPatchStatusRejectsUnknownTarget(t *testing.T) {
	fs := newFakeOrderStore()
	o := fs.add(store.Order{UserID: uuid.New(), Status: "pending"})
	h := &AdminHandler{Store: fs}

	rec := httptest.NewRecorder()
	h.PatchStatus(rec, authedRequest(t, http.MethodPatch, "/admin/orders/"+o.ID.String()+"/status",
		`{"status":"paid"}`, uuid.New(), map[string]string{"id": o.ID.String()}))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestVendorOrdersListsByVendor(t *testing.T) {
	fs := newFakeOrderStore()
	vendorID := uuid.New()
	fs.add(store.Order{UserID: uuid.New(), VendorID: &vendorID, Status: "paid"})
	fs.add(store.Order{UserID: uuid.New(), Status: "paid"})

	h := &AdminHandler{Store: fs}
	rec := httptest.NewRecorder()
	h.VendorOrders(rec, authedRequest(t, http.MethodGet, "/admin/vendors/"+vendorID.String()+"/orders", "",
		uuid.New(), map[string]string{"id": vendorID.String()}))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []orderPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
}
