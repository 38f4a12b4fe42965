package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/unimart-ng/backend-unimart/internal/store"
)

// ErrNotFound indicates no payment matches the reference.
var ErrNotFound = errors.New("payment not found")

// StatusStore is the read surface for payment status lookups.
type StatusStore interface {
	GetPaymentByReference(ctx context.Context, reference string) (store.Payment, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]store.Payment, error)
}

// Service answers payment status questions for shoppers polling after
// returning from the gateway.
type Service struct {
	Store StatusStore
}

// Status is the public payment status payload.
type Status struct {
	Reference   string `json:"reference"`
	Provider    string `json:"provider"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
}

// GetStatus returns the current status for a gateway reference.
func (s *Service) GetStatus(ctx context.Context, reference string) (Status, error) {
	if s == nil || s.Store == nil {
		return Status{}, errors.New("payment service not configured")
	}
	p, err := s.Store.GetPaymentByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Status{}, ErrNotFound
		}
		return Status{}, err
	}
	return Status{
		Reference:   p.Reference,
		Provider:    p.Provider,
		Status:      p.Status,
		AmountMinor: p.AmountMinor,
	}, nil
}

// History returns every attempt for one order, newest first.
func (s *Service) History(ctx context.Context, orderID uuid.UUID) ([]Status, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("payment service not configured")
	}
	rows, err := s.Store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(rows))
	for _, p := range rows {
		out = append(out, Status{
			Reference:   p.Reference,
			Provider:    p.Provider,
			Status:      p.Status,
			AmountMinor: p.AmountMinor,
		})
	}
	return out, nil
}
