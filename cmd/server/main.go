package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appintegration "github.com/Triple-C-BE/wimood/internal/application/integration"
	"github.com/Triple-C-BE/wimood/internal/domain/catalog"
	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
	"github.com/Triple-C-BE/wimood/internal/domain/integration"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/cache"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/config"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/ecommerce"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/httpclient"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/logger"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/migration"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/persistence"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/scheduler"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/storage"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/telemetry"
	"github.com/Triple-C-BE/wimood/internal/interfaces/http/handler"
	"github.com/Triple-C-BE/wimood/internal/interfaces/http/middleware"
	"github.com/Triple-C-BE/wimood/internal/interfaces/http/router"
)

const (
	shutdownTimeout  = 30 * time.Second
	preflightTimeout = 2 * time.Minute
)

func main() {
	// Missing credentials stop the process before anything is scheduled
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration: "+err.Error())
		os.Exit(2)
	}

	ctx := context.Background()

	// The OTLP log pipeline must exist before the logger so it can be teed in
	bootLog, err := logger.New(&logger.Config{Level: "warn", Format: cfg.Log.Format, Output: "stderr"})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfigFrom(&cfg.Telemetry), bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log pipeline", zap.Error(err))
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: logProvider,
		Level:          zapcore.InfoLevel,
	}))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Wimood sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Duration("product_interval", cfg.Sync.ProductInterval),
		zap.Duration("order_interval", cfg.Sync.OrderInterval),
		zap.Bool("scraping", cfg.Scraper.Enabled),
		zap.Bool("test_mode", cfg.Sync.TestMode),
		zap.Bool("dropship", cfg.Dropship.Enabled),
	)

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(&cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(&cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdownTelemetry(log, tracerProvider, meterProvider, logProvider)

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter(telemetry.MeterName))
	if err != nil {
		log.Fatal("Failed to register sync metrics", zap.Error(err))
	}

	// Order store
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(
		logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond),
	))
	if err != nil {
		log.Fatal("Failed to open order store", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing order store", zap.Error(err))
		}
	}()
	if err := prepareSchema(db, log); err != nil {
		log.Fatal("Failed to prepare order store schema", zap.Error(err))
	}

	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	if db.Driver == persistence.DriverPostgres {
		dbTracingCfg.DBSystem = "postgresql"
	}
	if err := telemetry.NewDBTracingPlugin(dbTracingCfg, log).Register(db.DB); err != nil {
		log.Warn("Failed to enable database tracing", zap.Error(err))
	}
	log.Info("Order store ready", zap.String("driver", db.Driver))

	orderRepo := persistence.NewGormTrackedOrderRepository(db.DB)
	runRepo := persistence.NewGormSyncRunRepository(db.DB)

	// Resilient request layer: one client per upstream so pacing does not
	// leak between them. Every client draws from the same user agent pool.
	retryPolicy := httpclient.RetryPolicy{
		MaxRetries:  cfg.Retry.MaxRetries,
		BaseDelay:   cfg.Retry.BaseDelay,
		Multiplier:  cfg.Retry.Multiplier,
		MaxDelay:    cfg.Retry.MaxDelay,
		Jitter:      0.25,
		ShouldRetry: httpclient.IsRetryable,
	}
	var agents httpclient.UserAgentRotator
	if len(cfg.Scraper.UserAgents) > 0 {
		agents = httpclient.NewRandomUserAgents(cfg.Scraper.UserAgents)
	}
	newClient := func(opts ...httpclient.Option) *httpclient.Client {
		base := []httpclient.Option{
			httpclient.WithRetryPolicy(retryPolicy),
			httpclient.WithRetryHook(syncMetrics.RetryHook()),
			httpclient.WithUserAgents(agents),
			httpclient.WithLogger(log),
		}
		return httpclient.New(httpclient.Config{Timeout: cfg.Retry.Timeout}, append(base, opts...)...)
	}

	feed, err := ecommerce.NewWimoodFeed(&ecommerce.WimoodConfig{
		APIURL:     cfg.Wimood.APIURL,
		APIKey:     cfg.Wimood.APIKey,
		CustomerID: cfg.Wimood.CustomerID,
	}, newClient(), log)
	if err != nil {
		log.Fatal("Failed to create Wimood feed", zap.Error(err))
	}

	shopify, err := ecommerce.NewShopifyAdapter(&ecommerce.ShopifyConfig{
		StoreURL:     cfg.Shopify.StoreURL,
		AccessToken:  cfg.Shopify.AccessToken,
		VendorTag:    cfg.Shopify.VendorTag,
		APIVersion:   cfg.Shopify.APIVersion,
		CallInterval: cfg.Shopify.CallInterval,
	}, newClient(), log)
	if err != nil {
		log.Fatal("Failed to create Shopify adapter", zap.Error(err))
	}

	// Enrichment
	enrichmentCache, closeCache, err := cache.NewEnrichmentCacheFactory(cache.EnrichmentCacheConfig{
		Backend:  cfg.Cache.Backend,
		FilePath: cfg.Cache.FilePath,
		Redis: cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		Staleness: cfg.Cache.Staleness,
	}, cache.WithLogger(log)).Create()
	if err != nil {
		log.Fatal("Failed to create enrichment cache", zap.Error(err))
	}
	defer func() {
		if err := closeCache(); err != nil {
			log.Error("Error closing enrichment cache", zap.Error(err))
		}
	}()

	scraper, closeScraper := newScraper(cfg, newClient(), log)
	defer closeScraper()

	var enrichmentOpts []appintegration.EnrichmentOption
	enrichmentOpts = append(enrichmentOpts, appintegration.WithEnrichmentLogger(log.Named("enrichment")))
	if cfg.Storage.Enabled {
		mirror, err := storage.NewS3ImageMirror(&cfg.Storage, newClient(), storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create image mirror", zap.Error(err))
		}
		enrichmentOpts = append(enrichmentOpts, appintegration.WithImageMirror(mirror))
		log.Info("Image mirror enabled", zap.String("bucket", cfg.Storage.Bucket))
	}
	enricher := appintegration.NewEnrichmentService(enrichmentCache, scraper, enrichmentOpts...)

	// Sync services
	status := appintegration.NewStatusStore(time.Now)
	if err := status.Restore(ctx, runRepo); err != nil {
		log.Warn("Failed to restore last sync runs", zap.Error(err))
	}

	pricing, err := pricingRule(&cfg.Sync)
	if err != nil {
		log.Fatal("Invalid pricing configuration", zap.Error(err))
	}

	tickOpts := []appintegration.Option{
		appintegration.WithRunRepository(runRepo),
		appintegration.WithRunRecorder(syncMetrics),
		appintegration.WithStatusStore(status),
		appintegration.WithLogger(log),
	}
	productSync := appintegration.NewProductSyncService(feed, shopify, enricher, appintegration.ProductSyncConfig{
		Vendor:           cfg.Shopify.VendorTag,
		Pricing:          pricing,
		TestMode:         cfg.Sync.TestMode,
		TestProductLimit: cfg.Sync.TestProductLimit,
		EnrichExisting:   cfg.Sync.EnrichExisting,
	}, tickOpts...)
	orderTracking := appintegration.NewOrderTrackingService(shopify, orderRepo, tickOpts...)
	orderTracking.SetTrackingGrace(cfg.Sync.TrackingGrace)

	upstreams := []appintegration.Upstream{
		{Name: "shopify", Checker: shopify},
		{Name: "wimood feed", Checker: feed},
	}
	if checker, ok := scraper.(appintegration.ConnectionChecker); ok && cfg.Scraper.Enabled {
		upstreams = append(upstreams, appintegration.Upstream{Name: "wimood scraper", Checker: checker})
	}
	if cfg.Dropship.Enabled {
		supplierOrders, err := ecommerce.NewWimoodOrders(&ecommerce.WimoodOrderConfig{
			APIURL: cfg.Dropship.OrderAPIURL,
			APIKey: cfg.Dropship.OrderAPIKey,
			Remark: cfg.Dropship.Remark,
		}, newClient(), log)
		if err != nil {
			log.Fatal("Failed to create Wimood order client", zap.Error(err))
		}
		orderTracking.EnableDropship(shopify, supplierOrders, feed)
		upstreams = append(upstreams, appintegration.Upstream{Name: "wimood orders", Checker: supplierOrders})
		log.Info("Dropship enabled, new orders are submitted to Wimood")
	}

	// Rejected credentials stop the process before anything is scheduled
	checkCtx, cancelChecks := context.WithTimeout(ctx, preflightTimeout)
	err = appintegration.Preflight(checkCtx, log, upstreams...)
	cancelChecks()
	if err != nil {
		log.Fatal("Startup checks failed", zap.Error(err))
	}

	// Tickers
	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()

	productTicker, err := scheduler.NewIntervalTicker(scheduler.TickerConfig{
		Name:           string(integration.SyncKindProducts),
		Interval:       cfg.Sync.ProductInterval,
		RunImmediately: true,
	}, productSync.Tick, log, scheduler.WithNextRun(func(at time.Time) {
		status.SetNextRun(integration.SyncKindProducts, at)
	}))
	if err != nil {
		log.Fatal("Failed to create product ticker", zap.Error(err))
	}
	orderTicker, err := scheduler.NewIntervalTicker(scheduler.TickerConfig{
		Name:           string(integration.SyncKindOrders),
		Interval:       cfg.Sync.OrderInterval,
		RunImmediately: true,
	}, orderTracking.Tick, log, scheduler.WithNextRun(func(at time.Time) {
		status.SetNextRun(integration.SyncKindOrders, at)
	}))
	if err != nil {
		log.Fatal("Failed to create order ticker", zap.Error(err))
	}

	for _, t := range []*scheduler.IntervalTicker{productTicker, orderTicker} {
		if err := t.Start(syncCtx); err != nil {
			log.Fatal("Failed to start ticker", zap.Error(err))
		}
	}
	status.SetRunning(true)

	// Status server
	ginMode := gin.ReleaseMode
	if cfg.App.Env == "development" {
		ginMode = gin.DebugMode
	}
	engine := router.NewEngine(router.EngineConfig{
		Mode: ginMode,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Logger: log,
	})
	router.NewRouter(engine).
		Register(handler.NewStatusHandler(status)).
		Setup()
	engine.GET("/health", healthHandler(db))

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Status server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Status server stopped", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")
	status.SetRunning(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, t := range []*scheduler.IntervalTicker{productTicker, orderTicker} {
		if err := t.Stop(shutdownCtx); err != nil {
			log.Error("Ticker did not stop in time", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Status server forced to shutdown", zap.Error(err))
	}

	log.Info("Wimood sync exited gracefully")
}

// prepareSchema creates the SQLite schema in place and brings PostgreSQL up
// to the latest embedded migration.
func prepareSchema(db *persistence.Database, log *zap.Logger) error {
	if db.Driver != persistence.DriverPostgres {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		return err
	}
	return m.Up()
}

// newScraper returns the configured scraper and its cleanup function
func newScraper(cfg *config.Config, client *httpclient.Client, log *zap.Logger) (enrichment.Scraper, func()) {
	if !cfg.Scraper.Enabled {
		log.Info("Scraping disabled, products are synced from feed fields only")
		return ecommerce.DisabledScraper{}, func() {}
	}

	var (
		fetcher ecommerce.PageFetcher = ecommerce.NewHTTPPageFetcher(client)
		cleanup                       = func() {}
	)
	if cfg.Scraper.UseBrowser {
		chrome := ecommerce.NewChromedpPageFetcher(&ecommerce.ChromedpConfig{
			RemoteURL: cfg.Scraper.BrowserURL,
			NoSandbox: true,
		}, log)
		fetcher = chrome
		cleanup = func() {
			if err := chrome.Close(); err != nil {
				log.Warn("Error closing browser", zap.Error(err))
			}
		}
	}

	scraper, err := ecommerce.NewWimoodScraper(ecommerce.ScraperConfig{
		BaseURL: cfg.Wimood.BaseURL,
		Delay:   cfg.Scraper.Delay,
	}, fetcher, log)
	if err != nil {
		log.Fatal("Failed to create scraper", zap.Error(err))
	}
	return scraper, cleanup
}

func pricingRule(cfg *config.SyncConfig) (catalog.PricingRule, error) {
	rule := catalog.DefaultPricingRule()
	rule.Source = catalog.PriceSource(cfg.PriceSource)
	rule.TrackCost = cfg.TrackCost
	if cfg.PriceMarkup != "" {
		markup, err := decimal.NewFromString(cfg.PriceMarkup)
		if err != nil {
			return rule, fmt.Errorf("PRICE_MARKUP: %w", err)
		}
		rule.Markup = markup
	}
	return rule, rule.Validate()
}

func shutdownTelemetry(log *zap.Logger, tp *telemetry.TracerProvider, mp *telemetry.MeterProvider, lp *telemetry.LoggerProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := mp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := lp.Shutdown(ctx); err != nil {
		log.Error("Error shutting down logger provider", zap.Error(err))
	}
}

// healthHandler reports whether the order store is reachable
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			logger.FromContext(c.Request.Context()).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
