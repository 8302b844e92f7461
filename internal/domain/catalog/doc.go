// Package catalog contains the product side of the sync: the supplier's
// authoritative products, the storefront's copy of them, and the pure rules
// that decide which storefront mutations bring the two back in line.
//
// Key concepts:
//   - SupplierProduct: one record of the supplier feed, valid for one tick
//   - StorefrontProduct: the storefront's current state of a product
//   - ProductDraft: the state the storefront should have for a supplier product
//   - ProductChanges: the minimal field set that moves a product to its draft
//   - SyncMapping: the per-tick SKU join between both sides
//
// Ports (SupplierFeed, Storefront) are declared here and implemented by the
// adapters in the infrastructure layer.
package catalog
