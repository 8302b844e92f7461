package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// ProductStatus
// ---------------------------------------------------------------------------

// ProductStatus is the storefront publication state of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusArchived ProductStatus = "archived"
)

// IsValid returns true if the status is known
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusActive, ProductStatusDraft, ProductStatusArchived:
		return true
	default:
		return false
	}
}

// IsActive returns true if the product is visible to shoppers
func (s ProductStatus) IsActive() bool {
	return s == ProductStatusActive
}

// String returns the string representation
func (s ProductStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SupplierProduct
// ---------------------------------------------------------------------------

// SupplierProduct is one product of the supplier feed. It is a snapshot
// that lives for a single sync tick.
type SupplierProduct struct {
	ProductID string
	SKU       string
	Title     string
	Brand     string
	EAN       string
	// Price is the merchant's purchase price at the supplier.
	Price decimal.Decimal
	MSRP  decimal.Decimal
	Stock int
}

// Validate checks the invariants the reconciler relies on
func (p SupplierProduct) Validate() error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: empty sku (product %s)", ErrInvalidProduct, p.ProductID)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: negative stock %d for sku %s", ErrInvalidProduct, p.Stock, p.SKU)
	}
	if p.Price.IsNegative() || p.MSRP.IsNegative() {
		return fmt.Errorf("%w: negative price for sku %s", ErrInvalidProduct, p.SKU)
	}
	return nil
}

// ---------------------------------------------------------------------------
// StorefrontProduct
// ---------------------------------------------------------------------------

// Metafields are the supplier attributes stored alongside a storefront product
type Metafields struct {
	Brand string
	EAN   string
	MSRP  decimal.Decimal
	Specs map[string]string
}

// StorefrontProduct is the storefront's current state of one product
type StorefrontProduct struct {
	ID              string
	SKU             string
	VariantID       string
	InventoryItemID string
	Title           string
	Price           decimal.Decimal
	Cost            decimal.NullDecimal
	Status          ProductStatus
	BodyHTML        string
	ImageCount      int
	Stock           int
	Metafields      Metafields
}

// ---------------------------------------------------------------------------
// ProductDraft
// ---------------------------------------------------------------------------

// ProductDraft is the state the storefront should hold for a supplier product.
// Empty BodyHTML and nil Images mean the field is not managed this tick.
type ProductDraft struct {
	ProductID  string
	SKU        string
	Title      string
	Vendor     string
	Price      decimal.Decimal
	Cost       decimal.NullDecimal
	Status     ProductStatus
	BodyHTML   string
	Images     []string
	Stock      int
	Metafields Metafields
}

// ImageCount returns the number of images the draft manages
func (d ProductDraft) ImageCount() int {
	return len(d.Images)
}
