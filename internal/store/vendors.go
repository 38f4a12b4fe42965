package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Vendor is one marketplace seller. GiftPlan, GiftCommissionRate, and
// GiftExpiresAt together describe a time-bounded commission override granted
// by an admin; all three are nil when no gift is active.
type Vendor struct {
	ID                 uuid.UUID
	OwnerUserID        uuid.UUID
	Name               string
	Slug               string
	Location           string
	SubscriptionPlan   string
	SubaccountCode     string
	GiftPlan           *string
	GiftCommissionRate *float64
	GiftExpiresAt      *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const vendorColumns = `id, owner_user_id, name, slug, location, subscription_plan,
subaccount_code, gift_plan, gift_commission_rate, gift_expires_at, created_at, updated_at`

func scanVendor(row interface{ Scan(...any) error }) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.OwnerUserID, &v.Name, &v.Slug, &v.Location,
		&v.SubscriptionPlan, &v.SubaccountCode, &v.GiftPlan, &v.GiftCommissionRate,
		&v.GiftExpiresAt, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// CreateVendor inserts a vendor and returns the stored row.
func (s *Store) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	if err := s.ready(); err != nil {
		return Vendor{}, err
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO vendors
(owner_user_id, name, slug, location, subscription_plan, subaccount_code)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+vendorColumns,
		v.OwnerUserID, v.Name, v.Slug, v.Location, v.SubscriptionPlan, v.SubaccountCode)
	return scanVendor(row)
}

// GetVendor returns a vendor by id.
func (s *Store) GetVendor(ctx context.Context, id uuid.UUID) (Vendor, error) {
	if err := s.ready(); err != nil {
		return Vendor{}, err
	}
	v, err := scanVendor(s.pool.QueryRow(ctx, `SELECT `+vendorColumns+`
FROM vendors WHERE id = $1`, id))
	return v, mapNoRows(err)
}

// GetVendorByOwner returns the vendor owned by a user.
func (s *Store) GetVendorByOwner(ctx context.Context, ownerUserID uuid.UUID) (Vendor, error) {
	if err := s.ready(); err != nil {
		return Vendor{}, err
	}
	v, err := scanVendor(s.pool.QueryRow(ctx, `SELECT `+vendorColumns+`
FROM vendors WHERE owner_user_id = $1`, ownerUserID))
	return v, mapNoRows(err)
}

// GetVendorsByIDs loads the vendors referenced by a cart's line items.
func (s *Store) GetVendorsByIDs(ctx context.Context, ids []uuid.UUID) ([]Vendor, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+vendorColumns+`
FROM vendors WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListVendors returns a page of vendors for the admin console.
func (s *Store) ListVendors(ctx context.Context, limit, offset int32) ([]Vendor, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+vendorColumns+`
FROM vendors ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateVendorPlan switches a vendor's paid subscription tier.
func (s *Store) UpdateVendorPlan(ctx context.Context, id uuid.UUID, plan string) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE vendors SET subscription_plan = $2, updated_at = now()
WHERE id = $1`, id, plan)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVendorGift grants or replaces a vendor's gift plan. A nil rate means the
// gift resolves through its plan name instead of an explicit percentage.
func (s *Store) SetVendorGift(ctx context.Context, id uuid.UUID, plan string, rate *float64, expiresAt time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE vendors SET gift_plan = $2,
gift_commission_rate = $3, gift_expires_at = $4, updated_at = now()
WHERE id = $1`, id, plan, rate, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearVendorGift removes a vendor's gift plan.
func (s *Store) ClearVendorGift(ctx context.Context, id uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE vendors SET gift_plan = NULL,
gift_commission_rate = NULL, gift_expires_at = NULL, updated_at = now()
WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
