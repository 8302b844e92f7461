package integration

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/catalog"
	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
	"github.com/Triple-C-BE/wimood/internal/domain/integration"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/logger"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/telemetry"
)

// Operations recorded on item failures
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDeactivate = "deactivate"
	OpStock      = "stock"
)

// ProductSyncConfig tunes the reconciler
type ProductSyncConfig struct {
	Vendor  string
	Pricing catalog.PricingRule
	// TestMode syncs only the first TestProductLimit feed products and
	// never deactivates, since the truncated feed is not authoritative.
	TestMode         bool
	TestProductLimit int
	// EnrichExisting scrapes mapped products on a cache miss. By default
	// they only pick up enrichment that is already cached.
	EnrichExisting bool
}

// ProductSyncService reconciles the storefront catalog with the supplier feed
type ProductSyncService struct {
	tickEnv
	feed       catalog.SupplierFeed
	storefront catalog.Storefront
	enricher   Enricher
	cfg        ProductSyncConfig

	locMu      sync.Mutex
	locationID string
}

// NewProductSyncService creates the reconciler
func NewProductSyncService(
	feed catalog.SupplierFeed,
	storefront catalog.Storefront,
	enricher Enricher,
	cfg ProductSyncConfig,
	opts ...Option,
) *ProductSyncService {
	if cfg.Pricing.Source == "" {
		cfg.Pricing = catalog.DefaultPricingRule()
	}
	return &ProductSyncService{
		tickEnv:    newTickEnv(opts),
		feed:       feed,
		storefront: storefront,
		enricher:   enricher,
		cfg:        cfg,
	}
}

// Tick runs one product sync and publishes its run. The returned error is
// non-nil only when the tick was aborted.
func (s *ProductSyncService) Tick(ctx context.Context) error {
	_, err := s.runTick(ctx, integration.SyncKindProducts, s.Reconcile)
	return err
}

// plan is the mutation set of one tick
type plan struct {
	deactivate []catalog.StorefrontProduct
	update     []mappedProduct
	create     []catalog.SupplierProduct
}

// productTick is the per-tick state threaded through the apply steps
type productTick struct {
	run *integration.SyncRun
	// skipStock is set once the location lookup failed this tick
	skipStock bool
}

type mappedProduct struct {
	supplier catalog.SupplierProduct
	current  catalog.StorefrontProduct
}

// Reconcile fetches both catalogs and applies deactivations, updates and
// creations in that order. Failing to fetch either list aborts; item
// failures are recorded on run and the rest proceed.
func (s *ProductSyncService) Reconcile(ctx context.Context, run *integration.SyncRun) error {
	log := logger.L(ctx)

	supplied, err := s.feed.FetchProducts(ctx)
	if err != nil {
		return fmt.Errorf("fetch supplier feed: %w", err)
	}
	current, err := s.storefront.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list storefront products: %w", err)
	}

	feed := s.buildFeed(ctx, run, supplied)
	mapping := catalog.NewSyncMapping(current)
	for _, anomaly := range mapping.Anomalies() {
		run.Counters.Anomalies++
		log.Warn("Reconciliation anomaly, sku skipped",
			zap.String("sku", anomaly.SKU),
			zap.Strings("storefront_ids", anomaly.StorefrontIDs),
			zap.Error(anomaly),
		)
	}
	if n := len(mapping.Unkeyed()); n > 0 {
		log.Debug("Storefront products without sku ignored", zap.Int("count", n))
	}

	p := s.plan(run, feed, mapping)
	log.Info("Reconciliation planned",
		zap.Int("feed_products", feed.Len()),
		zap.Int("storefront_products", len(current)),
		zap.Int("deactivate", len(p.deactivate)),
		zap.Int("compare", len(p.update)),
		zap.Int("create", len(p.create)),
	)

	t := &productTick{run: run}
	for _, product := range p.deactivate {
		s.deactivate(ctx, t, product)
	}
	for _, m := range p.update {
		s.update(ctx, t, m)
	}
	for _, sp := range p.create {
		s.create(ctx, t, sp)
	}
	return nil
}

// buildFeed validates supplier records and applies test mode
func (s *ProductSyncService) buildFeed(ctx context.Context, run *integration.SyncRun, supplied []catalog.SupplierProduct) *catalog.Feed {
	log := logger.L(ctx)

	valid := make([]catalog.SupplierProduct, 0, len(supplied))
	for _, p := range supplied {
		if err := p.Validate(); err != nil {
			run.Counters.Skipped++
			log.Warn("Skipping invalid supplier product",
				zap.String("product_id", p.ProductID),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, p)
	}

	feed := catalog.NewFeed(valid)
	for _, sku := range feed.Duplicates() {
		log.Warn("Duplicate sku in supplier feed, later record wins", zap.String("sku", sku))
	}
	if s.cfg.TestMode {
		feed = feed.Limit(s.cfg.TestProductLimit)
		log.Info("Test mode: feed truncated", zap.Int("products", feed.Len()))
	}
	return feed
}

func (s *ProductSyncService) plan(run *integration.SyncRun, feed *catalog.Feed, mapping *catalog.SyncMapping) plan {
	var p plan
	if !s.cfg.TestMode {
		p.deactivate = mapping.Stale(feed)
	}
	for _, sp := range feed.Products() {
		if mapping.IsAmbiguous(sp.SKU) {
			run.Counters.Skipped++
			continue
		}
		if existing, ok := mapping.Lookup(sp.SKU); ok {
			p.update = append(p.update, mappedProduct{supplier: sp, current: existing})
			continue
		}
		p.create = append(p.create, sp)
	}
	return p
}

func (s *ProductSyncService) deactivate(ctx context.Context, t *productTick, product catalog.StorefrontProduct) {
	if err := s.storefront.DeactivateProduct(ctx, product); err != nil {
		s.fail(ctx, t.run, product.SKU, OpDeactivate, err)
		return
	}
	t.run.Counters.Deactivated++
	logger.L(ctx).Info("Deactivated product no longer in feed",
		zap.String("sku", product.SKU),
		zap.String("product_id", product.ID),
	)
}

func (s *ProductSyncService) update(ctx context.Context, t *productTick, m mappedProduct) {
	run := t.run
	var (
		rec      enrichment.Record
		enriched bool
	)
	if s.enricher != nil {
		if s.cfg.EnrichExisting {
			rec, enriched = s.enricher.Enrich(ctx, m.supplier)
		} else {
			rec, enriched = s.enricher.Cached(ctx, m.supplier)
		}
	}
	if enriched {
		run.Counters.Enriched++
	}

	draft := s.Draft(m.supplier, rec, enriched)
	changes := catalog.Diff(m.current, draft)
	if changes.IsEmpty() {
		run.Counters.Unchanged++
	} else if err := s.storefront.UpdateProduct(ctx, m.current, changes); err != nil {
		s.fail(ctx, run, m.supplier.SKU, OpUpdate, err)
	} else {
		run.Counters.Updated++
		logger.L(ctx).Info("Updated product",
			zap.String("sku", m.supplier.SKU),
			zap.String("product_id", m.current.ID),
			zap.Strings("fields", changes.Fields()),
		)
	}

	s.syncStock(ctx, t, m.current, m.supplier.Stock)
}

func (s *ProductSyncService) create(ctx context.Context, t *productTick, sp catalog.SupplierProduct) {
	run := t.run
	var (
		rec      enrichment.Record
		enriched bool
	)
	if s.enricher != nil {
		rec, enriched = s.enricher.Enrich(ctx, sp)
	}
	if enriched {
		run.Counters.Enriched++
	}

	created, err := s.storefront.CreateProduct(ctx, s.Draft(sp, rec, enriched))
	if err != nil {
		s.fail(ctx, run, sp.SKU, OpCreate, err)
		return
	}
	run.Counters.Created++
	if created.SKU == "" {
		created.SKU = sp.SKU
	}
	s.syncStock(ctx, t, created, sp.Stock)
}

// Draft derives the storefront state a supplier product should have.
// Without enrichment, description and images are left unmanaged.
func (s *ProductSyncService) Draft(sp catalog.SupplierProduct, rec enrichment.Record, enriched bool) catalog.ProductDraft {
	draft := catalog.ProductDraft{
		ProductID: sp.ProductID,
		SKU:       sp.SKU,
		Title:     sp.Title,
		Vendor:    s.cfg.Vendor,
		Price:     s.cfg.Pricing.SellingPrice(sp),
		Cost:      s.cfg.Pricing.Cost(sp),
		Status:    catalog.ProductStatusActive,
		Stock:     sp.Stock,
		Metafields: catalog.Metafields{
			Brand: sp.Brand,
			EAN:   sp.EAN,
			MSRP:  sp.MSRP,
		},
	}
	if enriched {
		draft.BodyHTML = rec.Description
		if images := rec.StorefrontImages(); len(images) > 0 {
			draft.Images = images
		}
		draft.Metafields.Specs = rec.Specs
	}
	return draft
}

// syncStock writes the absolute level when it differs from the storefront
func (s *ProductSyncService) syncStock(ctx context.Context, t *productTick, product catalog.StorefrontProduct, available int) {
	if product.Stock == available {
		return
	}
	locationID, ok := s.location(ctx, t)
	if !ok {
		return
	}
	if err := s.storefront.SetInventoryLevel(ctx, locationID, product, available); err != nil {
		s.fail(ctx, t.run, product.SKU, OpStock, err)
		return
	}
	t.run.Counters.StockUpdated++
}

// location returns the inventory location, fetched once per process. After
// a failed lookup stock is left alone for the rest of the tick and the
// lookup is retried next tick.
func (s *ProductSyncService) location(ctx context.Context, t *productTick) (string, bool) {
	if t.skipStock {
		return "", false
	}
	s.locMu.Lock()
	defer s.locMu.Unlock()
	if s.locationID != "" {
		return s.locationID, true
	}
	id, err := s.storefront.PrimaryLocationID(ctx)
	if err != nil {
		t.skipStock = true
		logger.L(ctx).Warn("No inventory location, skipping stock updates this tick", zap.Error(err))
		return "", false
	}
	s.locationID = id
	logger.L(ctx).Info("Using inventory location", zap.String("location_id", id))
	return id, true
}

func (s *ProductSyncService) fail(ctx context.Context, run *integration.SyncRun, sku, op string, err error) {
	run.RecordFailure(sku, op, err)
	telemetry.AddEvent(telemetry.SpanFromContext(ctx), "item_failed",
		telemetry.SpanAttrSKU, sku,
		"sync.operation", op,
	)
	logger.L(ctx).Error("Product sync failed",
		zap.String("sku", sku),
		zap.String("operation", op),
		zap.Error(err),
	)
}
