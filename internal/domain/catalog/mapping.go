package catalog

import (
	"sort"
	"strings"
)

// SyncMapping is the SKU join between storefront products and the supplier
// feed for one tick. It is rebuilt every tick and never persisted.
type SyncMapping struct {
	bySKU     map[string]StorefrontProduct
	ambiguous map[string][]StorefrontProduct
	unkeyed   []StorefrontProduct
}

// NewSyncMapping indexes storefront products by SKU. A SKU carried by more
// than one product is ambiguous and maps to nothing.
func NewSyncMapping(products []StorefrontProduct) *SyncMapping {
	m := &SyncMapping{
		bySKU:     make(map[string]StorefrontProduct, len(products)),
		ambiguous: make(map[string][]StorefrontProduct),
	}

	for _, p := range products {
		sku := NormalizeSKU(p.SKU)
		if sku == "" {
			m.unkeyed = append(m.unkeyed, p)
			continue
		}
		if dups, ok := m.ambiguous[sku]; ok {
			m.ambiguous[sku] = append(dups, p)
			continue
		}
		if existing, ok := m.bySKU[sku]; ok {
			m.ambiguous[sku] = []StorefrontProduct{existing, p}
			delete(m.bySKU, sku)
			continue
		}
		m.bySKU[sku] = p
	}

	return m
}

// Lookup returns the single storefront product mapped to sku
func (m *SyncMapping) Lookup(sku string) (StorefrontProduct, bool) {
	p, ok := m.bySKU[NormalizeSKU(sku)]
	return p, ok
}

// IsAmbiguous reports whether sku is carried by several storefront products
func (m *SyncMapping) IsAmbiguous(sku string) bool {
	_, ok := m.ambiguous[NormalizeSKU(sku)]
	return ok
}

// Anomalies returns one AnomalyError per ambiguous SKU, sorted by SKU
func (m *SyncMapping) Anomalies() []*AnomalyError {
	skus := make([]string, 0, len(m.ambiguous))
	for sku := range m.ambiguous {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	out := make([]*AnomalyError, 0, len(skus))
	for _, sku := range skus {
		ids := make([]string, 0, len(m.ambiguous[sku]))
		for _, p := range m.ambiguous[sku] {
			ids = append(ids, p.ID)
		}
		out = append(out, &AnomalyError{
			SKU:           sku,
			Reason:        "several storefront products share this sku",
			StorefrontIDs: ids,
		})
	}
	return out
}

// Unkeyed returns storefront products without a SKU
func (m *SyncMapping) Unkeyed() []StorefrontProduct {
	return m.unkeyed
}

// Stale returns mapped, still active storefront products whose SKU is no
// longer in the feed, sorted by SKU.
func (m *SyncMapping) Stale(feed *Feed) []StorefrontProduct {
	var stale []StorefrontProduct
	for sku, p := range m.bySKU {
		if feed.Has(sku) {
			continue
		}
		if !p.Status.IsActive() {
			continue
		}
		stale = append(stale, p)
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].SKU < stale[j].SKU })
	return stale
}

// NormalizeSKU trims surrounding whitespace. SKUs are compared case-sensitively.
func NormalizeSKU(sku string) string {
	return strings.TrimSpace(sku)
}

// ---------------------------------------------------------------------------
// Feed
// ---------------------------------------------------------------------------

// Feed is the supplier product set of one tick, keyed by SKU
type Feed struct {
	order      []string
	bySKU      map[string]SupplierProduct
	duplicates []string
}

// NewFeed indexes supplier products by SKU. When a SKU repeats, the later
// record replaces the earlier one and keeps the position of the first.
func NewFeed(products []SupplierProduct) *Feed {
	f := &Feed{
		order: make([]string, 0, len(products)),
		bySKU: make(map[string]SupplierProduct, len(products)),
	}
	for _, p := range products {
		sku := NormalizeSKU(p.SKU)
		if sku == "" {
			continue
		}
		p.SKU = sku
		if _, seen := f.bySKU[sku]; seen {
			f.duplicates = append(f.duplicates, sku)
		} else {
			f.order = append(f.order, sku)
		}
		f.bySKU[sku] = p
	}
	return f
}

// Products returns the deduplicated products in feed order
func (f *Feed) Products() []SupplierProduct {
	out := make([]SupplierProduct, 0, len(f.order))
	for _, sku := range f.order {
		out = append(out, f.bySKU[sku])
	}
	return out
}

// Has reports whether the feed lists sku
func (f *Feed) Has(sku string) bool {
	_, ok := f.bySKU[NormalizeSKU(sku)]
	return ok
}

// Get returns the product for sku
func (f *Feed) Get(sku string) (SupplierProduct, bool) {
	p, ok := f.bySKU[NormalizeSKU(sku)]
	return p, ok
}

// Duplicates lists SKUs that appeared more than once, once per extra occurrence
func (f *Feed) Duplicates() []string {
	return f.duplicates
}

// Len returns the number of distinct SKUs
func (f *Feed) Len() int {
	return len(f.order)
}

// Limit keeps only the first n products. n <= 0 keeps everything.
func (f *Feed) Limit(n int) *Feed {
	if n <= 0 || n >= len(f.order) {
		return f
	}
	limited := &Feed{
		order:      append([]string(nil), f.order[:n]...),
		bySKU:      make(map[string]SupplierProduct, n),
		duplicates: f.duplicates,
	}
	for _, sku := range limited.order {
		limited.bySKU[sku] = f.bySKU[sku]
	}
	return limited
}
