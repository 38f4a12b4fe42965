package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/unimart-ng/backend-unimart/internal/store"
)

type fakeQuerier struct {
	daily     []store.DailySalesRow
	vendors   []store.VendorSalesRow
	dailyHits int
}

func (q *fakeQuerier) DailySales(context.Context, time.Time, time.Time) ([]store.DailySalesRow, error) {
	q.dailyHits++
	return q.daily, nil
}

func (q *fakeQuerier) SalesByVendor(_ context.Context, _, _ time.Time, limit, offset int32) ([]store.VendorSalesRow, error) {
	rows := q.vendors
	if int(offset) < len(rows) {
		rows = rows[offset:]
	} else {
		rows = nil
	}
	if int(limit) < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func newAnalyticsFixture(t *testing.T) (*Service, *fakeQuerier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := &fakeQuerier{}
	return &Service{Q: q, R: client, TTL: time.Minute}, q
}

func TestSalesRangeCachesResult(t *testing.T) {
	svc, q := newAnalyticsFixture(t)
	day := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	q.daily = []store.DailySalesRow{{Day: day, Orders: 3, GrossTotal: 15_000, PlatformFeeMinor: 262_500}}

	from := day
	to := day.AddDate(0, 0, 7)
	first, err := svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, q.dailyHits)
}

func TestTopVendorsAppliesLimit(t *testing.T) {
	svc, q := newAnalyticsFixture(t)
	q.vendors = []store.VendorSalesRow{
		{VendorID: uuid.New(), VendorName: "Ada Stores", Orders: 5, GrossTotal: 40_000},
		{VendorID: uuid.New(), VendorName: "Bisi Foods", Orders: 2, GrossTotal: 9_000},
	}
	from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rows, err := svc.TopVendors(context.Background(), from, from.AddDate(0, 1, 0), 1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Ada Stores", rows[0].VendorName)
}

func TestSummaryFoldsDailyRows(t *testing.T) {
	svc, q := newAnalyticsFixture(t)
	day := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	q.daily = []store.DailySalesRow{
		{Day: day, Orders: 3, GrossTotal: 15_000, PlatformFeeMinor: 262_500},
		{Day: day.AddDate(0, 0, 1), Orders: 1, GrossTotal: 2_000, PlatformFeeMinor: 35_000},
	}
	sum, err := svc.Summary(context.Background(), day, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Equal(t, int64(4), sum.Orders)
	require.InDelta(t, 17_000, sum.GrossTotal, 1e-9)
	require.Equal(t, int64(297_500), sum.PlatformFeeMinor)
}

func TestSalesRangeWithoutRedisStillWorks(t *testing.T) {
	q := &fakeQuerier{daily: []store.DailySalesRow{{Orders: 1}}}
	svc := &Service{Q: q}
	from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	rows, err := svc.SalesRange(context.Background(), from, from.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
