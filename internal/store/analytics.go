package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DailySalesRow is one day of settled order volume.
type DailySalesRow struct {
	Day              time.Time `json:"day"`
	Orders           int64     `json:"orders"`
	GrossTotal       float64   `json:"gross_total"`
	PlatformFeeMinor int64     `json:"platform_fee_minor"`
}

// VendorSalesRow is one vendor's settled volume over a range.
type VendorSalesRow struct {
	VendorID         uuid.UUID `json:"vendor_id"`
	VendorName       string    `json:"vendor_name"`
	Orders           int64     `json:"orders"`
	GrossTotal       float64   `json:"gross_total"`
	PlatformFeeMinor int64     `json:"platform_fee_minor"`
}

// DailySales aggregates paid orders per day, from inclusive, to exclusive.
func (s *Store) DailySales(ctx context.Context, from, to time.Time) ([]DailySalesRow, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT date_trunc('day', created_at) AS day,
count(*), coalesce(sum(total), 0), coalesce(sum(platform_fee_minor), 0)
FROM orders
WHERE status = 'paid' AND created_at >= $1 AND created_at < $2
GROUP BY day ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailySalesRow
	for rows.Next() {
		var r DailySalesRow
		if err := rows.Scan(&r.Day, &r.Orders, &r.GrossTotal, &r.PlatformFeeMinor); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SalesByVendor ranks vendors by settled gross volume over a range.
func (s *Store) SalesByVendor(ctx context.Context, from, to time.Time, limit, offset int32) ([]VendorSalesRow, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT o.vendor_id, v.name,
count(*), coalesce(sum(o.total), 0), coalesce(sum(o.platform_fee_minor), 0)
FROM orders o
JOIN vendors v ON v.id = o.vendor_id
WHERE o.status = 'paid' AND o.created_at >= $1 AND o.created_at < $2
GROUP BY o.vendor_id, v.name
ORDER BY sum(o.total) DESC
LIMIT $3 OFFSET $4`, from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VendorSalesRow
	for rows.Next() {
		var r VendorSalesRow
		if err := rows.Scan(&r.VendorID, &r.VendorName, &r.Orders, &r.GrossTotal, &r.PlatformFeeMinor); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
