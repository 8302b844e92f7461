package catalog

import (
	"github.com/shopspring/decimal"
)

// Changed field names, in the order they are compared
const (
	FieldTitle      = "title"
	FieldPrice      = "price"
	FieldCost       = "cost"
	FieldStatus     = "status"
	FieldBodyHTML   = "body_html"
	FieldImageCount = "image_count"
)

// ProductChanges is a partial update. Only non-nil fields are written.
type ProductChanges struct {
	Title    *string
	Price    *decimal.Decimal
	Cost     *decimal.Decimal
	Status   *ProductStatus
	BodyHTML *string
	// Images replaces the full image set when non-nil.
	Images []string
}

// IsEmpty returns true when nothing needs to be written
func (c ProductChanges) IsEmpty() bool {
	return len(c.Fields()) == 0
}

// Fields lists the names of the changed fields
func (c ProductChanges) Fields() []string {
	fields := make([]string, 0, 6)
	if c.Title != nil {
		fields = append(fields, FieldTitle)
	}
	if c.Price != nil {
		fields = append(fields, FieldPrice)
	}
	if c.Cost != nil {
		fields = append(fields, FieldCost)
	}
	if c.Status != nil {
		fields = append(fields, FieldStatus)
	}
	if c.BodyHTML != nil {
		fields = append(fields, FieldBodyHTML)
	}
	if c.Images != nil {
		fields = append(fields, FieldImageCount)
	}
	return fields
}

// TouchesProduct is true when the product resource itself must be written.
// Price and cost live on the variant and inventory item.
func (c ProductChanges) TouchesProduct() bool {
	return c.Title != nil || c.Status != nil || c.BodyHTML != nil || c.Images != nil
}

// TouchesVariant is true when the variant price must be written
func (c ProductChanges) TouchesVariant() bool {
	return c.Price != nil
}

// Diff compares the storefront state with the desired draft field by field
// and returns only what differs. Stock is not part of the change-set.
func Diff(current StorefrontProduct, desired ProductDraft) ProductChanges {
	var changes ProductChanges

	if current.Title != desired.Title {
		title := desired.Title
		changes.Title = &title
	}
	if !current.Price.Equal(desired.Price) {
		price := desired.Price
		changes.Price = &price
	}
	if desired.Cost.Valid && (!current.Cost.Valid || !current.Cost.Decimal.Equal(desired.Cost.Decimal)) {
		cost := desired.Cost.Decimal
		changes.Cost = &cost
	}
	if desired.Status != "" && current.Status != desired.Status {
		status := desired.Status
		changes.Status = &status
	}
	if desired.BodyHTML != "" && !SameHTML(current.BodyHTML, desired.BodyHTML) {
		body := desired.BodyHTML
		changes.BodyHTML = &body
	}
	if desired.Images != nil && current.ImageCount != len(desired.Images) {
		changes.Images = desired.Images
	}

	return changes
}

// Apply returns the product as it looks after the changes are written
func (c ProductChanges) Apply(p StorefrontProduct) StorefrontProduct {
	if c.Title != nil {
		p.Title = *c.Title
	}
	if c.Price != nil {
		p.Price = *c.Price
	}
	if c.Cost != nil {
		p.Cost = decimal.NewNullDecimal(*c.Cost)
	}
	if c.Status != nil {
		p.Status = *c.Status
	}
	if c.BodyHTML != nil {
		p.BodyHTML = *c.BodyHTML
	}
	if c.Images != nil {
		p.ImageCount = len(c.Images)
	}
	return p
}
