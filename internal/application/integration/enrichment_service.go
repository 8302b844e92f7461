package integration

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/catalog"
	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/logger"
)

// Enricher supplies scraped data for supplier products
type Enricher interface {
	// Enrich returns the cached record or scrapes and caches a new one
	Enrich(ctx context.Context, p catalog.SupplierProduct) (enrichment.Record, bool)
	// Cached returns the cached record without scraping
	Cached(ctx context.Context, p catalog.SupplierProduct) (enrichment.Record, bool)
}

// EnrichmentService looks enrichment up in the cache first and scrapes only
// on a miss. Failures never propagate: the product is synced without it.
type EnrichmentService struct {
	cache   enrichment.Cache
	scraper enrichment.Scraper
	mirror  enrichment.ImageMirror
	logger  *zap.Logger
	now     func() time.Time
}

// EnrichmentOption configures an EnrichmentService
type EnrichmentOption func(*EnrichmentService)

// WithImageMirror copies scraped images before they are cached
func WithImageMirror(m enrichment.ImageMirror) EnrichmentOption {
	return func(s *EnrichmentService) { s.mirror = m }
}

// WithEnrichmentLogger sets the logger
func WithEnrichmentLogger(l *zap.Logger) EnrichmentOption {
	return func(s *EnrichmentService) { s.logger = l }
}

// WithEnrichmentClock replaces time.Now for fetched_at stamps
func WithEnrichmentClock(now func() time.Time) EnrichmentOption {
	return func(s *EnrichmentService) { s.now = now }
}

// NewEnrichmentService creates the service
func NewEnrichmentService(cache enrichment.Cache, scraper enrichment.Scraper, opts ...EnrichmentOption) *EnrichmentService {
	s := &EnrichmentService{
		cache:   cache,
		scraper: scraper,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cached returns a fresh cached record for p
func (s *EnrichmentService) Cached(ctx context.Context, p catalog.SupplierProduct) (enrichment.Record, bool) {
	if s.cache == nil || p.ProductID == "" {
		return enrichment.Record{}, false
	}
	return s.cache.Get(ctx, p.ProductID)
}

// Enrich returns a cached record, or scrapes, mirrors and caches a new one
func (s *EnrichmentService) Enrich(ctx context.Context, p catalog.SupplierProduct) (enrichment.Record, bool) {
	if rec, ok := s.Cached(ctx, p); ok {
		return rec, true
	}
	if s.scraper == nil || p.ProductID == "" {
		return enrichment.Record{}, false
	}

	log := s.log(ctx)
	rec, err := s.scraper.Scrape(ctx, enrichment.PageRef{
		ProductID: p.ProductID,
		SKU:       p.SKU,
		Title:     p.Title,
	})
	switch {
	case errors.Is(err, enrichment.ErrScrapingDisabled):
		return enrichment.Record{}, false
	case err != nil:
		log.Warn("Enrichment failed, syncing without it",
			zap.String("sku", p.SKU),
			zap.String("product_id", p.ProductID),
			zap.Error(err),
		)
		return enrichment.Record{}, false
	case rec.IsEmpty():
		log.Debug("Product page had no enrichment", zap.String("sku", p.SKU))
		return enrichment.Record{}, false
	}

	rec.ProductID = p.ProductID
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = s.now()
	}

	if s.mirror != nil && len(rec.Images) > 0 {
		mirrored, err := s.mirror.Mirror(ctx, p.SKU, rec.StorefrontImages())
		if err != nil {
			log.Warn("Image mirror failed, keeping source URLs",
				zap.String("sku", p.SKU),
				zap.Error(err),
			)
		} else if len(mirrored) > 0 {
			rec.Images = mirrored
		}
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, p.ProductID, rec); err != nil {
			log.Warn("Failed to cache enrichment",
				zap.String("sku", p.SKU),
				zap.Error(err),
			)
		}
	}

	log.Debug("Enriched product",
		zap.String("sku", p.SKU),
		zap.Int("images", rec.ImageCount()),
		zap.Int("specs", len(rec.Specs)),
	)
	return rec, true
}

func (s *EnrichmentService) log(ctx context.Context) *zap.Logger {
	if logger.GetTickID(ctx) != "" {
		return logger.L(ctx)
	}
	return s.logger
}
