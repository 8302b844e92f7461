// Package enrichment holds the scraped product data that supplements the
// supplier feed (images, description, specifications) and the rules that
// decide when that data must be fetched again.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Triple-C-BE/wimood/internal/domain/shared"
)

// DefaultStalenessWindow is how long a scraped record stays usable.
const DefaultStalenessWindow = 7 * 24 * time.Hour

// MaxImages is the number of images the storefront accepts per product.
const MaxImages = 10

var (
	// ErrCacheCorruption marks an unreadable or malformed backing store.
	ErrCacheCorruption = shared.ErrCacheCorruption
	// ErrScrapeFailed is returned when a product page could not be turned into a record.
	ErrScrapeFailed = errors.New("enrichment: scrape failed")
	// ErrScrapingDisabled is returned by the no-op scraper.
	ErrScrapingDisabled = errors.New("enrichment: scraping disabled")
)

// Record is the enrichment data for one supplier product.
type Record struct {
	ProductID   string            `json:"product_id"`
	Images      []string          `json:"images"`
	Description string            `json:"description"`
	Specs       map[string]string `json:"specs"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// IsStale reports whether the record is older than window at now.
// A non-positive window falls back to DefaultStalenessWindow.
func IsStale(r Record, now time.Time, window time.Duration) bool {
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	if r.FetchedAt.IsZero() {
		return true
	}
	return now.Sub(r.FetchedAt) > window
}

// ImageCount returns the number of images the storefront would receive.
func (r Record) ImageCount() int {
	if len(r.Images) > MaxImages {
		return MaxImages
	}
	return len(r.Images)
}

// StorefrontImages returns the images trimmed to MaxImages.
func (r Record) StorefrontImages() []string {
	if len(r.Images) > MaxImages {
		return r.Images[:MaxImages]
	}
	return r.Images
}

// IsEmpty is true when the scrape produced nothing usable.
func (r Record) IsEmpty() bool {
	return len(r.Images) == 0 && r.Description == "" && len(r.Specs) == 0
}

// CacheCorruptionError describes why a cache backend could not be read.
// It unwraps to ErrCacheCorruption.
type CacheCorruptionError struct {
	Source string
	Err    error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("enrichment: cache %s corrupted: %v", e.Source, e.Err)
}

func (e *CacheCorruptionError) Unwrap() []error {
	return []error{ErrCacheCorruption, e.Err}
}

// Cache stores records keyed by supplier product id.
// Get returns false for missing or stale records; it never fails.
type Cache interface {
	Get(ctx context.Context, productID string) (Record, bool)
	Put(ctx context.Context, productID string, record Record) error
}

// PageRef identifies the product page to scrape.
type PageRef struct {
	ProductID string
	SKU       string
	Title     string
}

// Scraper fetches enrichment for one product page.
type Scraper interface {
	Scrape(ctx context.Context, ref PageRef) (Record, error)
}

// ImageMirror copies scraped images to storage owned by the merchant and
// returns the URLs to publish instead. An empty result keeps the originals.
type ImageMirror interface {
	Mirror(ctx context.Context, sku string, images []string) ([]string, error)
}
