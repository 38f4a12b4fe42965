package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/unimart-ng/backend-unimart/internal/common"
	"github.com/unimart-ng/backend-unimart/internal/store"
)

type productStore interface {
	ListProducts(ctx context.Context, limit, offset int32) ([]store.Product, int64, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	store        productStore
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        productStore
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures pagination for product listing.
type ListParams struct {
	Page  int
	Limit int
}

// Product is the public catalog payload. Shipping fields surface the
// delivery-tier fees so the storefront can preview delivery cost per tier.
type Product struct {
	ID              string  `json:"id"`
	VendorID        *string `json:"vendor_id,omitempty"`
	Name            string  `json:"name"`
	Slug            string  `json:"slug"`
	Description     string  `json:"description,omitempty"`
	Price           float64 `json:"price"`
	ShippingFee     float64 `json:"shipping_fee"`
	ShippingFeeNear float64 `json:"shipping_fee_near"`
	ShippingFeeFar  float64 `json:"shipping_fee_far"`
	ShippingMode    string  `json:"shipping_mode"`
	InStock         bool    `json:"in_stock"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: product store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	return params, nil
}

// ListProducts returns a catalog page, served from Redis when warm.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key := fmt.Sprintf("catalog:products:p%d:l%d", params.Page, params.Limit)
	var cached ProductListResult
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	offset := int32((params.Page - 1) * params.Limit)
	rows, total, err := s.store.ListProducts(ctx, int32(params.Limit), offset)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	result := ProductListResult{
		Items: make([]Product, 0, len(rows)),
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
	}
	for _, row := range rows {
		result.Items = append(result.Items, toProduct(row))
	}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// GetProduct returns one product by slug, cached per slug.
func (s *Service) GetProduct(ctx context.Context, slug string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Product{}, badRequest("slug", "slug is required", nil)
	}
	key := "catalog:product:" + slug
	var cached Product
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	row, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	p := toProduct(row)
	_ = s.cache.SetJSON(ctx, key, p)
	return p, nil
}

func toProduct(row store.Product) Product {
	p := Product{
		ID:              row.ID.String(),
		Name:            row.Name,
		Slug:            row.Slug,
		Description:     row.Description,
		Price:           row.Price,
		ShippingFee:     row.ShippingFee,
		ShippingFeeNear: row.ShippingFeeNear,
		ShippingFeeFar:  row.ShippingFeeFar,
		ShippingMode:    row.ShippingMode,
		InStock:         row.Stock > 0,
	}
	if row.VendorID != nil && *row.VendorID != uuid.Nil {
		id := row.VendorID.String()
		p.VendorID = &id
	}
	return p
}

func badRequest(field, message string, err error) *common.AppError {
	appErr := common.NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err)
	appErr.Details = map[string]any{"field": field}
	return appErr
}
