package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/unimart-ng/backend-unimart/internal/cart"
	"github.com/unimart-ng/backend-unimart/internal/events"
	"github.com/unimart-ng/backend-unimart/internal/lock"
	"github.com/unimart-ng/backend-unimart/internal/obs"
	"github.com/unimart-ng/backend-unimart/internal/payment"
	"github.com/unimart-ng/backend-unimart/internal/pricing"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

// ErrEmptyCart is returned when checkout is attempted on a cart with no items.
var ErrEmptyCart = errors.New("cart is empty")

// ErrInvalidInput is returned when the checkout payload is malformed.
var ErrInvalidInput = errors.New("invalid input")

// Addr is the delivery address snapshot persisted with each order.
type Addr struct {
	ReceiverName string `json:"receiver_name"`
	Phone        string `json:"phone"`
	Hall         string `json:"hall,omitempty"`
	AddressLine  string `json:"address_line,omitempty"`
	City         string `json:"city,omitempty"`
}

// Input is the checkout payload.
type Input struct {
	CartID   string `json:"cart_id"`
	Delivery string `json:"delivery"`
	Email    string `json:"email"`
	Address  Addr   `json:"address"`
}

// GroupResult is the per-vendor-group slice of the checkout response.
type GroupResult struct {
	OrderID          string  `json:"order_id"`
	VendorID         string  `json:"vendor_id,omitempty"`
	VendorName       string  `json:"vendor_name,omitempty"`
	Subtotal         float64 `json:"subtotal"`
	Shipping         float64 `json:"shipping"`
	VAT              float64 `json:"vat"`
	Total            float64 `json:"total"`
	Reference        string  `json:"reference"`
	AuthorizationURL string  `json:"authorization_url,omitempty"`
	Status           string  `json:"status"`
}

// Output is the checkout response: one payment per vendor group, all sharing
// the session id.
type Output struct {
	SessionID string        `json:"session_id"`
	Delivery  string        `json:"delivery"`
	Total     float64       `json:"total"`
	Groups    []GroupResult `json:"groups"`
}

// Store is the persistence surface checkout needs.
type Store interface {
	CreateCheckoutSession(ctx context.Context, cartID uuid.UUID, orders []store.Order, payments []store.Payment, decrements []store.StockDecrement) ([]store.Order, error)
	UpdateOrderStatusByReference(ctx context.Context, reference, status string) (store.Order, error)
}

// Service orchestrates checkout: it prices the cart through the engine,
// persists one order per vendor group, and opens one gateway transaction per
// group against the vendor's subaccount.
type Service struct {
	Store    Store
	CartSvc  *cart.Service
	Engine   pricing.Engine
	Provider payment.Provider
	Locker   lock.Locker
	LockTTL  time.Duration

	ProviderName string
	CallbackURL  string
	Events       *events.Bus
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) providerName() string {
	if s != nil && s.ProviderName != "" {
		return s.ProviderName
	}
	return "paystack"
}

// Create runs one checkout attempt for the user's cart. A per-cart lock
// rejects concurrent double-submission of the same cart.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in Input) (Output, error) {
	if s == nil || s.Store == nil || s.CartSvc == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if userID == uuid.Nil {
		return Output{}, fmt.Errorf("user is required: %w", ErrInvalidInput)
	}
	cartID, err := uuid.Parse(in.CartID)
	if err != nil {
		return Output{}, fmt.Errorf("invalid cart id: %w", ErrInvalidInput)
	}

	var out Output
	run := func(ctx context.Context) error {
		out, err = s.create(ctx, userID, cartID, in)
		return err
	}
	if s.Locker.R != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		lockCtx, cancel := context.WithTimeout(ctx, ttl)
		defer cancel()
		if lockErr := s.Locker.WithLock(lockCtx, "checkout:cart:"+cartID.String(), ttl, run); lockErr != nil {
			return Output{}, lockErr
		}
		return out, nil
	}
	if err := run(ctx); err != nil {
		return Output{}, err
	}
	return out, nil
}

func (s *Service) create(ctx context.Context, userID, cartID uuid.UUID, in Input) (Output, error) {
	items, meta, err := s.CartSvc.LoadPricingInput(ctx, cartID)
	if err != nil {
		return Output{}, err
	}
	if len(items) == 0 {
		countCheckout("empty_cart")
		return Output{}, ErrEmptyCart
	}

	now := s.now()
	method := pricing.ParseDeliveryMethod(in.Delivery)
	groups := s.Engine.BuildVendorGroups(items, meta, method)
	sessionID := pricing.NewSessionID(now)

	address, err := json.Marshal(in.Address)
	if err != nil {
		return Output{}, fmt.Errorf("encode address: %w", err)
	}

	orders := make([]store.Order, 0, len(groups))
	pays := make([]store.Payment, 0, len(groups))
	decrements := make([]store.StockDecrement, 0, len(items))
	for i, g := range groups {
		reference := pricing.PaymentReference(sessionID, i, now)
		fee := s.Engine.PlatformCharge(g.Subtotal, g.Plan, g.Gift, now)
		o := store.Order{
			SessionID:        sessionID,
			UserID:           userID,
			Subtotal:         g.Subtotal,
			Shipping:         g.Shipping,
			VAT:              g.VAT,
			Total:            g.Total,
			PlatformFeeMinor: fee,
			PaymentReference: reference,
			SubaccountCode:   g.SubaccountCode,
			Status:           payment.StatusPending,
			DeliveryMethod:   string(method),
			ShippingAddress:  address,
		}
		if g.VendorID != "" {
			if vid, err := uuid.Parse(g.VendorID); err == nil {
				o.VendorID = &vid
			}
		}
		orders = append(orders, o)
		pays = append(pays, store.Payment{
			Provider:    s.providerName(),
			Reference:   reference,
			AmountMinor: pricing.MinorUnits(g.Total),
			Status:      payment.StatusPending,
		})
	}
	for _, it := range items {
		if pid, err := uuid.Parse(it.ProductID); err == nil {
			decrements = append(decrements, store.StockDecrement{ProductID: pid, Qty: int32(it.Qty)})
		}
	}

	stored, err := s.Store.CreateCheckoutSession(ctx, cartID, orders, pays, decrements)
	if err != nil {
		countCheckout("persist_error")
		return Output{}, fmt.Errorf("persist checkout: %w", err)
	}

	out := Output{SessionID: sessionID, Delivery: string(method)}
	for i, o := range stored {
		g := groups[i]
		result := GroupResult{
			OrderID:    o.ID.String(),
			VendorID:   g.VendorID,
			VendorName: g.VendorName,
			Subtotal:   g.Subtotal,
			Shipping:   g.Shipping,
			VAT:        g.VAT,
			Total:      g.Total,
			Reference:  o.PaymentReference,
			Status:     payment.StatusPending,
		}
		if s.Provider != nil {
			resp, initErr := s.Provider.InitializeSplit(ctx, payment.SplitRequest{
				Reference:        o.PaymentReference,
				AmountMinor:      pricing.MinorUnits(g.Total),
				Email:            in.Email,
				SubaccountCode:   g.SubaccountCode,
				PlatformFeeMinor: o.PlatformFeeMinor,
				CallbackURL:      s.CallbackURL,
			})
			if initErr != nil {
				countSplitInit(s.providerName(), "error")
				result.Status = payment.StatusFailed
			} else {
				countSplitInit(s.providerName(), "ok")
				result.AuthorizationURL = resp.AuthorizationURL
				result.Status = payment.StatusProcessing
			}
			// A failed write leaves the order pending; the webhook will
			// still settle it, but the gap has to be visible in the logs.
			if _, uerr := s.Store.UpdateOrderStatusByReference(ctx, o.PaymentReference, result.Status); uerr != nil {
				zerolog.Ctx(ctx).Error().Err(uerr).
					Str("reference", o.PaymentReference).
					Str("status", result.Status).
					Msg("record order status after split init")
			}
		}
		out.Total += g.Total
		out.Groups = append(out.Groups, result)
	}

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicCheckoutCreated, sessionID, map[string]any{
			"session_id": sessionID,
			"user_id":    userID.String(),
			"groups":     len(out.Groups),
			"total":      out.Total,
		})
	}
	countCheckout("ok")
	if obs.CheckoutVendorGroups != nil {
		obs.CheckoutVendorGroups.Observe(float64(len(out.Groups)))
	}
	return out, nil
}

func countCheckout(result string) {
	if obs.CheckoutSessionTotal != nil {
		obs.CheckoutSessionTotal.WithLabelValues(result).Inc()
	}
}

func countSplitInit(provider, result string) {
	if obs.SplitPaymentInitTotal != nil {
		obs.SplitPaymentInitTotal.WithLabelValues(provider, result).Inc()
	}
}
