package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StockDecrement is one product quantity reserved by a checkout.
type StockDecrement struct {
	ProductID uuid.UUID
	Qty       int32
}

// CreateCheckoutSession persists every vendor-group order of one checkout
// attempt with its pending payment, reserves stock, and empties the cart, all
// in a single transaction. orders[i] pairs with payments[i].
func (s *Store) CreateCheckoutSession(ctx context.Context, cartID uuid.UUID, orders []Order, payments []Payment, decrements []StockDecrement) ([]Order, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(orders) != len(payments) {
		return nil, fmt.Errorf("store: %d orders but %d payments", len(orders), len(payments))
	}
	stored := make([]Order, 0, len(orders))
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, d := range decrements {
			if err := s.DecrementStock(ctx, tx, d.ProductID, d.Qty); err != nil {
				return fmt.Errorf("reserve stock for %s: %w", d.ProductID, err)
			}
		}
		for i := range orders {
			o, err := s.InsertOrder(ctx, tx, orders[i])
			if err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
			payments[i].OrderID = o.ID
			if _, err := s.InsertPayment(ctx, tx, payments[i]); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
			stored = append(stored, o)
		}
		return s.ClearCart(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}
