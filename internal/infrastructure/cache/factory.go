package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
)

// Backend names accepted by the factory
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// EnrichmentCacheConfig selects and configures the enrichment cache backend
type EnrichmentCacheConfig struct {
	Backend   string
	FilePath  string
	Redis     RedisConfig
	Staleness time.Duration
}

// EnrichmentCacheFactory creates enrichment caches based on configuration
type EnrichmentCacheFactory struct {
	cfg           EnrichmentCacheConfig
	logger        *zap.Logger
	allowFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*EnrichmentCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *EnrichmentCacheFactory) {
		f.logger = logger
	}
}

// WithFileFallback controls whether an unreachable Redis falls back to the file store.
// Default is true.
func WithFileFallback(allow bool) FactoryOption {
	return func(f *EnrichmentCacheFactory) {
		f.allowFallback = allow
	}
}

// NewEnrichmentCacheFactory creates a new factory
func NewEnrichmentCacheFactory(cfg EnrichmentCacheConfig, opts ...FactoryOption) *EnrichmentCacheFactory {
	f := &EnrichmentCacheFactory{
		cfg:           cfg,
		logger:        zap.NewNop(),
		allowFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateFileCache creates the JSON file store
func (f *EnrichmentCacheFactory) CreateFileCache() *FileEnrichmentCache {
	return NewFileEnrichmentCache(f.cfg.FilePath, f.cfg.Staleness, f.logger)
}

// Create returns the configured backend. The returned close function
// releases backend connections and is never nil.
func (f *EnrichmentCacheFactory) Create() (enrichment.Cache, func() error, error) {
	noop := func() error { return nil }

	switch f.cfg.Backend {
	case "", BackendFile:
		f.logger.Info("Using file enrichment cache", zap.String("path", f.cfg.FilePath))
		return f.CreateFileCache(), noop, nil
	case BackendRedis:
		store, err := NewRedisEnrichmentCache(f.cfg.Redis, f.cfg.Staleness, f.logger)
		if err == nil {
			f.logger.Info("Using Redis enrichment cache")
			return store, store.Close, nil
		}
		if !f.allowFallback {
			return nil, noop, fmt.Errorf("Redis enrichment cache unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to file enrichment cache",
			zap.String("path", f.cfg.FilePath),
			zap.Error(err),
		)
		return f.CreateFileCache(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown enrichment cache backend %q", f.cfg.Backend)
	}
}
