package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceSource selects which supplier amount becomes the selling price
type PriceSource string

const (
	PriceSourceMSRP      PriceSource = "msrp"
	PriceSourceWholesale PriceSource = "wholesale"
)

// IsValid returns true if the price source is known
func (s PriceSource) IsValid() bool {
	return s == PriceSourceMSRP || s == PriceSourceWholesale
}

// PricingRule derives the storefront price and cost of a supplier product.
type PricingRule struct {
	Source PriceSource
	// Markup multiplies the source amount. Zero means 1.
	Markup decimal.Decimal
	// TrackCost writes the supplier purchase price as the storefront cost.
	TrackCost bool
}

// DefaultPricingRule sells at the supplier's MSRP and records the purchase price as cost.
func DefaultPricingRule() PricingRule {
	return PricingRule{
		Source:    PriceSourceMSRP,
		Markup:    decimal.NewFromInt(1),
		TrackCost: true,
	}
}

// Validate validates the rule
func (r PricingRule) Validate() error {
	if !r.Source.IsValid() {
		return fmt.Errorf("catalog: unknown price source %q", r.Source)
	}
	if r.Markup.IsNegative() {
		return fmt.Errorf("catalog: markup cannot be negative")
	}
	return nil
}

// SellingPrice returns the storefront price rounded to cents. An MSRP rule
// falls back to the purchase price when the feed carries no MSRP.
func (r PricingRule) SellingPrice(p SupplierProduct) decimal.Decimal {
	base := p.MSRP
	if r.Source == PriceSourceWholesale || base.IsZero() {
		base = p.Price
	}
	markup := r.Markup
	if markup.IsZero() {
		markup = decimal.NewFromInt(1)
	}
	return base.Mul(markup).Round(2)
}

// Cost returns the storefront cost, or an invalid NullDecimal when cost is not tracked
func (r PricingRule) Cost(p SupplierProduct) decimal.NullDecimal {
	if !r.TrackCost {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p.Price.Round(2))
}
