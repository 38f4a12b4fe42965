package pricing

import (
	"math"
	"strings"
	"time"
)

// DeliveryMethod identifies the shopper's chosen delivery tier.
type DeliveryMethod string

const (
	// DeliveryOnCampus is free pickup at a campus hub.
	DeliveryOnCampus DeliveryMethod = "on_campus"
	// DeliveryNear covers addresses close to campus.
	DeliveryNear DeliveryMethod = "near"
	// DeliveryFar covers everywhere else.
	DeliveryFar DeliveryMethod = "far"
)

// ParseDeliveryMethod maps a raw string onto a known delivery tier. Unknown or
// malformed values resolve to on-campus pickup, the free tier, so a bad
// selection can never overcharge the shopper.
func ParseDeliveryMethod(raw string) DeliveryMethod {
	switch DeliveryMethod(strings.ToLower(strings.TrimSpace(raw))) {
	case DeliveryNear:
		return DeliveryNear
	case DeliveryFar:
		return DeliveryFar
	default:
		return DeliveryOnCampus
	}
}

// ShippingMode controls how often a line item's shipping fee is charged.
type ShippingMode string

const (
	// ShippingOneTime charges the fee once per distinct product in the group.
	ShippingOneTime ShippingMode = "one_time"
	// ShippingPerUnit charges the fee for every quantity unit.
	ShippingPerUnit ShippingMode = "per_unit"
)

// Subscription plan names recognised by the commission table.
const (
	PlanFirstClass = "first_class"
	PlanEconomy    = "economy"
	PlanFree       = "free"
)

// Payment status values carried on a vendor group. The engine always produces
// groups in StatusPending; the payment collaborator advances them.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusPaid       = "paid"
	StatusFailed     = "failed"
)

// LineItem is one purchasable unit in a shopper's cart. Amounts are major
// currency units (naira); conversion to gateway minor units happens only at
// the payment boundary.
type LineItem struct {
	ProductID       string
	Name            string
	UnitPrice       float64
	Qty             int
	VendorID        string // empty for platform-sold items
	ShippingFee     float64
	ShippingFeeNear float64
	ShippingFeeFar  float64
	ShippingMode    ShippingMode
}

// GiftPlan is a time-bounded promotional override of a vendor's commission
// rate, independent of their paid subscription tier.
type GiftPlan struct {
	Plan           string
	CommissionRate *float64
	ExpiresAt      *time.Time
}

// VendorMeta is the vendor metadata consulted when pricing a group.
type VendorMeta struct {
	Name           string
	Location       string
	Plan           string
	SubaccountCode string
	Gift           *GiftPlan
}

// VendorGroup is the subset of a cart belonging to one vendor (or to the
// platform when VendorID is empty), with its computed monetary breakdown.
type VendorGroup struct {
	VendorID         string
	VendorName       string
	Location         string
	Plan             string
	SubaccountCode   string
	Gift             *GiftPlan
	Items            []LineItem
	Subtotal         float64
	Shipping         float64
	VAT              float64
	Total            float64
	PaymentStatus    string
	GatewayReference string
}

// Session is one checkout attempt: the ordered vendor groups plus the shared
// session identifier used to trace every per-group gateway transaction back to
// the attempt that produced it.
type Session struct {
	ID        string
	Delivery  DeliveryMethod
	Groups    []VendorGroup
	Total     float64
	CreatedAt time.Time
}

// Rates holds the configurable platform percentages. Keeping them on a value
// injected into the engine lets tests override rates without touching package
// state.
type Rates struct {
	VATPercent           float64
	ServiceChargePercent float64
	CommissionByPlan     map[string]float64
	FallbackPlan         string
}

// DefaultRates returns the production rate table.
func DefaultRates() Rates {
	return Rates{
		VATPercent:           2.5,
		ServiceChargePercent: 2.5,
		CommissionByPlan: map[string]float64{
			PlanFirstClass: 5,
			PlanEconomy:    9,
			PlanFree:       15,
		},
		FallbackPlan: PlanFree,
	}
}

// Engine computes the monetary breakdown of a multi-vendor checkout. It is a
// pure calculator: no I/O, no shared state, total over well-formed input.
type Engine struct {
	Rates Rates
	Now   func() time.Time
}

func (e Engine) rates() Rates {
	if e.Rates.CommissionByPlan == nil {
		return DefaultRates()
	}
	return e.Rates
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// GroupByVendor partitions line items by owning vendor. Items without a vendor
// identifier form the platform group. Groups are ordered by first appearance
// of each vendor in the input so the result is deterministic.
func GroupByVendor(items []LineItem) []VendorGroup {
	groups := make([]VendorGroup, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		pos, ok := index[it.VendorID]
		if !ok {
			pos = len(groups)
			index[it.VendorID] = pos
			groups = append(groups, VendorGroup{VendorID: it.VendorID, PaymentStatus: StatusPending})
		}
		groups[pos].Items = append(groups[pos].Items, it)
	}
	return groups
}

// ComputeShipping returns the shipping cost for one group's items under the
// chosen delivery tier. On-campus pickup is always free. For the paid tiers,
// each item contributes its tier fee (falling back to the generic fee when the
// tier fee is absent); a one-time fee is charged at most once per product id
// even if the same product appears in the list more than once.
func ComputeShipping(items []LineItem, method DeliveryMethod) float64 {
	if method != DeliveryNear && method != DeliveryFar {
		return 0
	}
	var total float64
	charged := make(map[string]bool, len(items))
	for _, it := range items {
		fee := it.ShippingFeeNear
		if method == DeliveryFar {
			fee = it.ShippingFeeFar
		}
		if fee <= 0 {
			fee = it.ShippingFee
		}
		if fee <= 0 {
			continue
		}
		if it.ShippingMode == ShippingPerUnit {
			qty := it.Qty
			if qty < 1 {
				qty = 1
			}
			total += fee * float64(qty)
			continue
		}
		if charged[it.ProductID] {
			continue
		}
		charged[it.ProductID] = true
		total += fee
	}
	return total
}

// CommissionRate resolves the platform commission percentage for a
// subscription plan. Unknown or empty plans resolve to the fallback plan's
// rate, so the lookup never fails.
func (e Engine) CommissionRate(plan string) float64 {
	r := e.rates()
	if rate, ok := r.CommissionByPlan[strings.ToLower(strings.TrimSpace(plan))]; ok {
		return rate
	}
	return r.CommissionByPlan[r.FallbackPlan]
}

// EffectiveCommissionRate returns the commission rate in force at the given
// instant. A gift plan whose expiry is strictly in the future overrides the
// base plan: an explicit gift rate wins (zero included), otherwise the gift
// plan name is resolved through the table. Expired or absent gifts fall back
// to the base plan.
func (e Engine) EffectiveCommissionRate(plan string, gift *GiftPlan, now time.Time) float64 {
	if gift != nil && gift.ExpiresAt != nil && gift.ExpiresAt.After(now) {
		if gift.CommissionRate != nil {
			return *gift.CommissionRate
		}
		if strings.TrimSpace(gift.Plan) != "" {
			return e.CommissionRate(gift.Plan)
		}
	}
	return e.CommissionRate(plan)
}

// PlatformCharge returns, in gateway minor units, the amount the platform
// retains when paying out a group's subtotal to the vendor's subaccount:
// (effective commission + service charge) percent of the subtotal, rounded
// half up. The charge is clamped to [0, subtotal in minor units].
func (e Engine) PlatformCharge(subtotal float64, plan string, gift *GiftPlan, now time.Time) int64 {
	rate := e.EffectiveCommissionRate(plan, gift, now) + e.rates().ServiceChargePercent
	charge := int64(math.Round(subtotal * rate / 100 * 100))
	if charge < 0 {
		return 0
	}
	if limit := MinorUnits(subtotal); charge > limit {
		return limit
	}
	return charge
}

// VAT returns the value-added tax on a subtotal. The result is left unrounded;
// rounding to currency precision happens only at display or persistence time
// so intermediate sums do not compound rounding error.
func (e Engine) VAT(subtotal float64) float64 {
	return subtotal * e.rates().VATPercent / 100
}

// MinorUnits converts a major-unit amount into gateway minor units (kobo),
// rounding half up.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// BuildVendorGroups groups the items by vendor and fills in each group's
// vendor metadata and monetary breakdown. A vendor id with no metadata entry
// keeps empty metadata and is priced like the platform group.
func (e Engine) BuildVendorGroups(items []LineItem, meta map[string]VendorMeta, method DeliveryMethod) []VendorGroup {
	groups := GroupByVendor(items)
	for i := range groups {
		g := &groups[i]
		if m, ok := meta[g.VendorID]; ok && g.VendorID != "" {
			g.VendorName = m.Name
			g.Location = m.Location
			g.Plan = m.Plan
			g.SubaccountCode = m.SubaccountCode
			g.Gift = m.Gift
		}
		var subtotal float64
		for _, it := range g.Items {
			subtotal += it.UnitPrice * float64(it.Qty)
		}
		g.Subtotal = subtotal
		g.Shipping = ComputeShipping(g.Items, method)
		g.VAT = e.VAT(subtotal)
		g.Total = g.Subtotal + g.Shipping + g.VAT
	}
	return groups
}

// NewSession assembles a complete checkout session for the cart contents.
func (e Engine) NewSession(items []LineItem, meta map[string]VendorMeta, method DeliveryMethod) Session {
	now := e.now()
	groups := e.BuildVendorGroups(items, meta, method)
	var total float64
	for _, g := range groups {
		total += g.Total
	}
	return Session{
		ID:        NewSessionID(now),
		Delivery:  method,
		Groups:    groups,
		Total:     total,
		CreatedAt: now,
	}
}
