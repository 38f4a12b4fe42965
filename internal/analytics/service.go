package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unimart-ng/backend-unimart/internal/store"
)

// Querier defines the database access required for analytics reads.
type Querier interface {
	DailySales(ctx context.Context, from, to time.Time) ([]store.DailySalesRow, error)
	SalesByVendor(ctx context.Context, from, to time.Time, limit, offset int32) ([]store.VendorSalesRow, error)
}

// Service provides cached access to marketplace sales aggregates.
type Service struct {
	Q            Querier
	R            *redis.Client
	TTL          time.Duration
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// Overview sums settled volume and platform commission over the range.
type Overview struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Orders           int64     `json:"orders"`
	GrossTotal       float64   `json:"gross_total"`
	PlatformFeeMinor int64     `json:"platform_fee_minor"`
}

// SalesRange returns daily sales between from inclusive and to exclusive.
func (s *Service) SalesRange(ctx context.Context, from, to time.Time) ([]store.DailySalesRow, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	key := cacheKey("an", "sales", from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached []store.DailySalesRow
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Q.DailySales(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// TopVendors ranks vendors by settled gross volume.
func (s *Service) TopVendors(ctx context.Context, from, to time.Time, limit, offset int32) ([]store.VendorSalesRow, error) {
	if s == nil || s.Q == nil {
		return nil, fmt.Errorf("analytics service not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	key := cacheKey("an", "vendors", from.Format("2006-01-02"), to.Format("2006-01-02"), limit, offset)
	var cached []store.VendorSalesRow
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Q.SalesByVendor(ctx, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// Summary folds the daily rows into one dashboard line.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Overview, error) {
	rows, err := s.SalesRange(ctx, from, to)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{From: from, To: to}
	for _, r := range rows {
		out.Orders += r.Orders
		out.GrossTotal += r.GrossTotal
		out.PlatformFeeMinor += r.PlatformFeeMinor
	}
	return out, nil
}

func (s *Service) fromCache(ctx context.Context, key string, dest any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
