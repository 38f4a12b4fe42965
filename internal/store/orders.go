package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Order is one vendor group of a checkout session. Orders sharing a
// session_id were created by the same checkout attempt; VendorID is nil for
// the platform-sold group.
type Order struct {
	ID               uuid.UUID
	SessionID        string
	UserID           uuid.UUID
	VendorID         *uuid.UUID
	Subtotal         float64
	Shipping         float64
	VAT              float64
	Total            float64
	PlatformFeeMinor int64
	PaymentReference string
	SubaccountCode   string
	Status           string
	DeliveryMethod   string
	ShippingAddress  json.RawMessage
	CreatedAt        time.Time
}

const orderColumns = `id, session_id, user_id, vendor_id, subtotal, shipping, vat, total,
platform_fee_minor, payment_reference, subaccount_code, status, delivery_method,
shipping_address, created_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.SessionID, &o.UserID, &o.VendorID, &o.Subtotal, &o.Shipping,
		&o.VAT, &o.Total, &o.PlatformFeeMinor, &o.PaymentReference, &o.SubaccountCode,
		&o.Status, &o.DeliveryMethod, &o.ShippingAddress, &o.CreatedAt)
	return o, err
}

// InsertOrder persists one vendor group inside the checkout transaction and
// returns the stored row.
func (s *Store) InsertOrder(ctx context.Context, tx Execer, o Order) (Order, error) {
	row := tx.QueryRow(ctx, `INSERT INTO orders
(session_id, user_id, vendor_id, subtotal, shipping, vat, total, platform_fee_minor,
 payment_reference, subaccount_code, status, delivery_method, shipping_address)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING `+orderColumns,
		o.SessionID, o.UserID, o.VendorID, o.Subtotal, o.Shipping, o.VAT, o.Total,
		o.PlatformFeeMinor, o.PaymentReference, o.SubaccountCode, o.Status,
		o.DeliveryMethod, o.ShippingAddress)
	return scanOrder(row)
}

// GetOrder returns an order by id.
func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+`
FROM orders WHERE id = $1`, id))
	return o, mapNoRows(err)
}

// GetOrderByReference resolves a gateway transaction reference to its order.
func (s *Store) GetOrderByReference(ctx context.Context, reference string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+`
FROM orders WHERE payment_reference = $1`, reference))
	return o, mapNoRows(err)
}

// ListOrdersBySession returns every vendor group of one checkout attempt, in
// creation order.
func (s *Store) ListOrdersBySession(ctx context.Context, sessionID string) ([]Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+`
FROM orders WHERE session_id = $1 ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListOrdersByUser returns a shopper's order history page.
func (s *Store) ListOrdersByUser(ctx context.Context, userID uuid.UUID, status *string, limit, offset int32) ([]Order, int64, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+`
FROM orders WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC LIMIT $3 OFFSET $4`, userID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int64
	err = s.pool.QueryRow(ctx, `SELECT count(*) FROM orders
WHERE user_id = $1 AND ($2::text IS NULL OR status = $2)`, userID, status).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListOrdersByVendor returns one vendor's incoming orders with a total count.
func (s *Store) ListOrdersByVendor(ctx context.Context, vendorID uuid.UUID, limit, offset int32) ([]Order, int64, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+`
FROM orders WHERE vendor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		vendorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders
WHERE vendor_id = $1`, vendorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateOrderStatus transitions an order. The allowed transitions are enforced
// by callers; the store only persists.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	o, err := scanOrder(s.pool.QueryRow(ctx, `UPDATE orders SET status = $2
WHERE id = $1 RETURNING `+orderColumns, id, status))
	return o, mapNoRows(err)
}

// UpdateOrderStatusByReference transitions the order behind a gateway
// reference and reports the order it touched.
func (s *Store) UpdateOrderStatusByReference(ctx context.Context, reference, status string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	o, err := scanOrder(s.pool.QueryRow(ctx, `UPDATE orders SET status = $2
WHERE payment_reference = $1 RETURNING `+orderColumns, reference, status))
	return o, mapNoRows(err)
}
