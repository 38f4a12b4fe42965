package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNilStoreReportsUnavailable(t *testing.T) {
	ctx := context.Background()
	var s *Store

	_, _, err := s.ListProducts(ctx, 10, 0)
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = s.GetVendor(ctx, uuid.New())
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = s.GetOrderByReference(ctx, "ref")
	require.ErrorIs(t, err, ErrUnavailable)

	require.ErrorIs(t, s.WithTx(ctx, nil), ErrUnavailable)
}

func TestUnconfiguredPoolReportsUnavailable(t *testing.T) {
	s := New(nil)
	_, err := s.GetUserByEmail(context.Background(), "x@unilag.edu.ng")
	require.ErrorIs(t, err, ErrUnavailable)
}
