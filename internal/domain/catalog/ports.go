package catalog

import "context"

// SupplierFeed fetches the supplier's authoritative product list.
// Malformed records are dropped by the adapter; an error means the whole
// list is unavailable.
type SupplierFeed interface {
	FetchProducts(ctx context.Context) ([]SupplierProduct, error)
}

// Storefront is the port to the shop that sells the supplier's products.
//
// Design Pattern: Ports & Adapters. The Shopify adapter in the
// infrastructure layer implements it; tests use in-memory doubles.
type Storefront interface {
	// ListProducts returns every product managed by this sync
	ListProducts(ctx context.Context) ([]StorefrontProduct, error)
	// CreateProduct creates the product and returns its storefront state
	CreateProduct(ctx context.Context, draft ProductDraft) (StorefrontProduct, error)
	// UpdateProduct writes only the fields present in changes
	UpdateProduct(ctx context.Context, product StorefrontProduct, changes ProductChanges) error
	// DeactivateProduct hides the product without deleting it
	DeactivateProduct(ctx context.Context, product StorefrontProduct) error
	// PrimaryLocationID returns the inventory location stock is written to
	PrimaryLocationID(ctx context.Context) (string, error)
	// SetInventoryLevel sets the absolute available stock of the product at a location
	SetInventoryLevel(ctx context.Context, locationID string, product StorefrontProduct, available int) error
}
