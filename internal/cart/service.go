package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/unimart-ng/backend-unimart/internal/pricing"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrOutOfStock is returned when the requested quantity exceeds stock.
var ErrOutOfStock = errors.New("insufficient stock")

// Store is the persistence surface the cart service needs.
type Store interface {
	EnsureCartForUser(ctx context.Context, userID uuid.UUID, ttl time.Duration) (store.Cart, error)
	EnsureCartForAnon(ctx context.Context, anonID string, ttl time.Duration) (store.Cart, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]store.CartItem, error)
	UpsertCartItem(ctx context.Context, it store.CartItem) (store.CartItem, error)
	UpdateCartItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty int32) error
	DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error
	MergeCarts(ctx context.Context, anonCartID, userCartID uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error)
	GetVendorsByIDs(ctx context.Context, ids []uuid.UUID) ([]store.Vendor, error)
}

// Service encapsulates cart domain operations.
type Service struct {
	Store  Store
	Engine pricing.Engine
	TTL    time.Duration
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

// EnsureCart loads or creates a cart for the provided identifiers. A signed-in
// user wins over an anonymous token when both are present.
func (s *Service) EnsureCart(ctx context.Context, userID *uuid.UUID, anonID string) (store.Cart, error) {
	if s == nil || s.Store == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	if userID != nil && *userID != uuid.Nil {
		return s.Store.EnsureCartForUser(ctx, *userID, s.ttl())
	}
	if anonID != "" {
		return s.Store.EnsureCartForAnon(ctx, anonID, s.ttl())
	}
	return store.Cart{}, ErrInvalidInput
}

// AddItem snapshots the product into the cart, or bumps quantity when the
// product is already there.
func (s *Service) AddItem(ctx context.Context, cartID, productID uuid.UUID, qty int32) (store.CartItem, error) {
	if s == nil || s.Store == nil {
		return store.CartItem{}, errors.New("cart service not configured")
	}
	if qty <= 0 {
		return store.CartItem{}, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	product, err := s.Store.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.CartItem{}, fmt.Errorf("product: %w", ErrNotFound)
		}
		return store.CartItem{}, fmt.Errorf("load product: %w", err)
	}
	if product.Stock < qty {
		return store.CartItem{}, ErrOutOfStock
	}
	return s.Store.UpsertCartItem(ctx, store.CartItem{
		CartID:          cartID,
		ProductID:       product.ID,
		Name:            product.Name,
		Qty:             qty,
		UnitPrice:       product.Price,
		VendorID:        product.VendorID,
		ShippingFee:     product.ShippingFee,
		ShippingFeeNear: product.ShippingFeeNear,
		ShippingFeeFar:  product.ShippingFeeFar,
		ShippingMode:    product.ShippingMode,
	})
}

// UpdateItem sets an item's quantity; zero removes it.
func (s *Service) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, qty int32) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if err := s.Store.UpdateCartItemQty(ctx, cartID, itemID, qty); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// RemoveItem deletes one line from the cart.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	if err := s.Store.DeleteCartItem(ctx, cartID, itemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Merge folds an anonymous cart into the user's cart after login.
func (s *Service) Merge(ctx context.Context, anonID string, userID uuid.UUID) (store.Cart, error) {
	if s == nil || s.Store == nil {
		return store.Cart{}, errors.New("cart service not configured")
	}
	if anonID == "" {
		return store.Cart{}, ErrInvalidInput
	}
	anonCart, err := s.Store.EnsureCartForAnon(ctx, anonID, s.ttl())
	if err != nil {
		return store.Cart{}, err
	}
	userCart, err := s.Store.EnsureCartForUser(ctx, userID, s.ttl())
	if err != nil {
		return store.Cart{}, err
	}
	if err := s.Store.MergeCarts(ctx, anonCart.ID, userCart.ID); err != nil {
		return store.Cart{}, fmt.Errorf("merge carts: %w", err)
	}
	return userCart, nil
}

// Preview prices the cart's current contents for a delivery tier without
// creating any order.
func (s *Service) Preview(ctx context.Context, cartID uuid.UUID, method pricing.DeliveryMethod) (pricing.Session, error) {
	if s == nil || s.Store == nil {
		return pricing.Session{}, errors.New("cart service not configured")
	}
	items, meta, err := s.LoadPricingInput(ctx, cartID)
	if err != nil {
		return pricing.Session{}, err
	}
	return s.Engine.NewSession(items, meta, method), nil
}

// LoadPricingInput converts cart rows and vendor rows into engine input.
// Checkout reuses this so the preview and the charged amounts can never
// diverge.
func (s *Service) LoadPricingInput(ctx context.Context, cartID uuid.UUID) ([]pricing.LineItem, map[string]pricing.VendorMeta, error) {
	rows, err := s.Store.ListCartItems(ctx, cartID)
	if err != nil {
		return nil, nil, fmt.Errorf("list cart items: %w", err)
	}
	items := make([]pricing.LineItem, 0, len(rows))
	vendorIDs := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]bool, len(rows))
	for _, row := range rows {
		item := pricing.LineItem{
			ProductID:       row.ProductID.String(),
			Name:            row.Name,
			UnitPrice:       row.UnitPrice,
			Qty:             int(row.Qty),
			ShippingFee:     row.ShippingFee,
			ShippingFeeNear: row.ShippingFeeNear,
			ShippingFeeFar:  row.ShippingFeeFar,
			ShippingMode:    pricing.ShippingMode(row.ShippingMode),
		}
		if row.VendorID != nil && *row.VendorID != uuid.Nil {
			item.VendorID = row.VendorID.String()
			if !seen[*row.VendorID] {
				seen[*row.VendorID] = true
				vendorIDs = append(vendorIDs, *row.VendorID)
			}
		}
		items = append(items, item)
	}
	vendors, err := s.Store.GetVendorsByIDs(ctx, vendorIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load vendors: %w", err)
	}
	meta := make(map[string]pricing.VendorMeta, len(vendors))
	for _, v := range vendors {
		meta[v.ID.String()] = VendorMeta(v)
	}
	return items, meta, nil
}

// VendorMeta converts a vendor row into the engine's metadata shape.
func VendorMeta(v store.Vendor) pricing.VendorMeta {
	m := pricing.VendorMeta{
		Name:           v.Name,
		Location:       v.Location,
		Plan:           v.SubscriptionPlan,
		SubaccountCode: v.SubaccountCode,
	}
	if v.GiftPlan != nil || v.GiftCommissionRate != nil || v.GiftExpiresAt != nil {
		gift := &pricing.GiftPlan{
			CommissionRate: v.GiftCommissionRate,
			ExpiresAt:      v.GiftExpiresAt,
		}
		if v.GiftPlan != nil {
			gift.Plan = *v.GiftPlan
		}
		m.Gift = gift
	}
	return m
}
