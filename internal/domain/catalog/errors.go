package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Triple-C-BE/wimood/internal/domain/shared"
)

var (
	ErrFeedUnavailable       = errors.New("catalog: supplier feed unavailable")
	ErrFeedRejected          = errors.New("catalog: supplier feed rejected credentials")
	ErrStorefrontUnavailable = errors.New("catalog: storefront unavailable")
	ErrInvalidProduct        = errors.New("catalog: invalid product")
	ErrLocationNotFound      = errors.New("catalog: storefront has no inventory location")
	ErrMissingInventoryItem  = errors.New("catalog: product has no inventory item")
)

// ParseError is a supplier record that could not be decoded.
type ParseError struct {
	Index     int
	ProductID string
	Field     string
	Err       error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "catalog: feed record %d", e.Index)
	if e.ProductID != "" {
		fmt.Fprintf(&b, " (product %s)", e.ProductID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrParse}
	}
	return []error{shared.ErrParse, e.Err}
}

// AnomalyError is an inconsistency that blocks mutation of one SKU.
type AnomalyError struct {
	SKU           string
	Reason        string
	StorefrontIDs []string
}

func (e *AnomalyError) Error() string {
	if len(e.StorefrontIDs) > 0 {
		return fmt.Sprintf("catalog: sku %s: %s (storefront ids %s)", e.SKU, e.Reason, strings.Join(e.StorefrontIDs, ","))
	}
	return fmt.Sprintf("catalog: sku %s: %s", e.SKU, e.Reason)
}

func (e *AnomalyError) Unwrap() error {
	return shared.ErrReconciliationAnomaly
}
