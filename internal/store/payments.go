package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Payment records one gateway transaction attempt for an order. AmountMinor
// is kobo, the gateway's unit.
type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Provider    string
	Reference   string
	AmountMinor int64
	Status      string
	Payload     json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const paymentColumns = `id, order_id, provider, reference, amount_minor, status, payload,
created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Provider, &p.Reference, &p.AmountMinor,
		&p.Status, &p.Payload, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// InsertPayment persists a freshly initiated gateway transaction.
func (s *Store) InsertPayment(ctx context.Context, tx Execer, p Payment) (Payment, error) {
	row := tx.QueryRow(ctx, `INSERT INTO payments
(order_id, provider, reference, amount_minor, status, payload)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+paymentColumns,
		p.OrderID, p.Provider, p.Reference, p.AmountMinor, p.Status, p.Payload)
	return scanPayment(row)
}

// GetPaymentByReference returns the payment behind a gateway reference.
func (s *Store) GetPaymentByReference(ctx context.Context, reference string) (Payment, error) {
	if err := s.ready(); err != nil {
		return Payment{}, err
	}
	p, err := scanPayment(s.pool.QueryRow(ctx, `SELECT `+paymentColumns+`
FROM payments WHERE reference = $1`, reference))
	return p, mapNoRows(err)
}

// UpdatePaymentByReference records the gateway's verdict, keeping the raw
// webhook payload for audits.
func (s *Store) UpdatePaymentByReference(ctx context.Context, reference, status string, payload json.RawMessage) (Payment, error) {
	if err := s.ready(); err != nil {
		return Payment{}, err
	}
	p, err := scanPayment(s.pool.QueryRow(ctx, `UPDATE payments
SET status = $2, payload = COALESCE($3, payload), updated_at = now()
WHERE reference = $1 RETURNING `+paymentColumns, reference, status, payload))
	return p, mapNoRows(err)
}

// ListPaymentsByOrder returns an order's payment attempts, newest first.
func (s *Store) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+paymentColumns+`
FROM payments WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
