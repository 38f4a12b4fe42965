package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Product is one catalog row. Prices and shipping fees are naira decimals;
// VendorID is nil for items sold by the platform itself.
type Product struct {
	ID              uuid.UUID
	VendorID        *uuid.UUID
	Name            string
	Slug            string
	Description     string
	Price           float64
	ShippingFee     float64
	ShippingFeeNear float64
	ShippingFeeFar  float64
	ShippingMode    string
	Stock           int32
	CreatedAt       time.Time
}

const productColumns = `id, vendor_id, name, slug, description, price, shipping_fee,
shipping_fee_near, shipping_fee_far, shipping_mode, stock, created_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &p.Slug, &p.Description, &p.Price,
		&p.ShippingFee, &p.ShippingFeeNear, &p.ShippingFeeFar, &p.ShippingMode,
		&p.Stock, &p.CreatedAt)
	return p, err
}

// ListProducts returns a catalog page plus the total row count.
func (s *Store) ListProducts(ctx context.Context, limit, offset int32) ([]Product, int64, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+`
FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetProductBySlug returns a single product.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	if err := s.ready(); err != nil {
		return Product{}, err
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+`
FROM products WHERE slug = $1`, slug))
	return p, mapNoRows(err)
}

// GetProduct returns a single product by id.
func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	if err := s.ready(); err != nil {
		return Product{}, err
	}
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+`
FROM products WHERE id = $1`, id))
	return p, mapNoRows(err)
}

// DecrementStock reduces a product's stock inside an existing transaction,
// failing when the remaining stock cannot cover the quantity.
func (s *Store) DecrementStock(ctx context.Context, tx Execer, productID uuid.UUID, qty int32) error {
	tag, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2
WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
