package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Cart belongs either to a signed-in user or to an anonymous browser token.
type Cart struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	AnonID    *string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CartItem snapshots the product at add-to-cart time. Price and shipping fees
// are denormalised so a later catalog edit does not silently reprice a cart.
type CartItem struct {
	ID              uuid.UUID
	CartID          uuid.UUID
	ProductID       uuid.UUID
	Name            string
	Qty             int32
	UnitPrice       float64
	VendorID        *uuid.UUID
	ShippingFee     float64
	ShippingFeeNear float64
	ShippingFeeFar  float64
	ShippingMode    string
}

const cartColumns = `id, user_id, anon_id, expires_at, created_at`

const cartItemColumns = `id, cart_id, product_id, name, qty, unit_price, vendor_id,
shipping_fee, shipping_fee_near, shipping_fee_far, shipping_mode`

func scanCart(row interface{ Scan(...any) error }) (Cart, error) {
	var c Cart
	err := row.Scan(&c.ID, &c.UserID, &c.AnonID, &c.ExpiresAt, &c.CreatedAt)
	return c, err
}

func scanCartItem(row interface{ Scan(...any) error }) (CartItem, error) {
	var it CartItem
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.Qty, &it.UnitPrice,
		&it.VendorID, &it.ShippingFee, &it.ShippingFeeNear, &it.ShippingFeeFar, &it.ShippingMode)
	return it, err
}

// EnsureCartForUser returns the user's open cart, creating one when absent.
func (s *Store) EnsureCartForUser(ctx context.Context, userID uuid.UUID, ttl time.Duration) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	c, err := scanCart(s.pool.QueryRow(ctx, `SELECT `+cartColumns+`
FROM carts WHERE user_id = $1 AND expires_at > now()`, userID))
	if err == nil {
		return c, nil
	}
	if err = mapNoRows(err); err != ErrNotFound {
		return Cart{}, err
	}
	return scanCart(s.pool.QueryRow(ctx, `INSERT INTO carts (user_id, expires_at)
VALUES ($1, now() + $2::interval) RETURNING `+cartColumns, userID, ttl.String()))
}

// EnsureCartForAnon returns the anonymous cart for a browser token, creating
// one when absent.
func (s *Store) EnsureCartForAnon(ctx context.Context, anonID string, ttl time.Duration) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	c, err := scanCart(s.pool.QueryRow(ctx, `SELECT `+cartColumns+`
FROM carts WHERE anon_id = $1 AND expires_at > now()`, anonID))
	if err == nil {
		return c, nil
	}
	if err = mapNoRows(err); err != ErrNotFound {
		return Cart{}, err
	}
	return scanCart(s.pool.QueryRow(ctx, `INSERT INTO carts (anon_id, expires_at)
VALUES ($1, now() + $2::interval) RETURNING `+cartColumns, anonID, ttl.String()))
}

// ListCartItems returns a cart's items in insertion order. The order matters:
// checkout groups vendors by first appearance.
func (s *Store) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+cartItemColumns+`
FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartItem
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpsertCartItem adds a product to a cart or bumps its quantity when the
// product is already present.
func (s *Store) UpsertCartItem(ctx context.Context, it CartItem) (CartItem, error) {
	if err := s.ready(); err != nil {
		return CartItem{}, err
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO cart_items
(cart_id, product_id, name, qty, unit_price, vendor_id, shipping_fee,
 shipping_fee_near, shipping_fee_far, shipping_mode)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (cart_id, product_id) DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty
RETURNING `+cartItemColumns,
		it.CartID, it.ProductID, it.Name, it.Qty, it.UnitPrice, it.VendorID,
		it.ShippingFee, it.ShippingFeeNear, it.ShippingFeeFar, it.ShippingMode)
	return scanCartItem(row)
}

// UpdateCartItemQty sets an item's quantity. Zero or negative quantity removes
// the item.
func (s *Store) UpdateCartItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty int32) error {
	if err := s.ready(); err != nil {
		return err
	}
	if qty <= 0 {
		return s.DeleteCartItem(ctx, cartID, itemID)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE cart_items SET qty = $3
WHERE cart_id = $1 AND id = $2`, cartID, itemID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCartItem removes one item from a cart.
func (s *Store) DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM cart_items
WHERE cart_id = $1 AND id = $2`, cartID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCart removes every item; the cart row itself survives for reuse.
func (s *Store) ClearCart(ctx context.Context, tx Execer, cartID uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// MergeCarts moves an anonymous cart's items into a user cart on login.
// Quantities add up when the same product exists in both carts; the emptied
// anonymous cart is deleted.
func (s *Store) MergeCarts(ctx context.Context, anonCartID, userCartID uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO cart_items
(cart_id, product_id, name, qty, unit_price, vendor_id, shipping_fee,
 shipping_fee_near, shipping_fee_far, shipping_mode)
SELECT $2, product_id, name, qty, unit_price, vendor_id, shipping_fee,
 shipping_fee_near, shipping_fee_far, shipping_mode
FROM cart_items WHERE cart_id = $1
ON CONFLICT (cart_id, product_id) DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty`,
			anonCartID, userCartID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, anonCartID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, anonCartID)
		return err
	})
}
