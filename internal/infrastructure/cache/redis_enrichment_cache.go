package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
)

const defaultEnrichmentKeyPrefix = "wimood:enrichment:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisEnrichmentCache stores each record as a JSON value that expires
// with the staleness window. SET replaces a value atomically.
type RedisEnrichmentCache struct {
	client    *redis.Client
	keyPrefix string
	window    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewRedisEnrichmentCache connects to Redis and verifies the connection
func NewRedisEnrichmentCache(cfg RedisConfig, window time.Duration, logger *zap.Logger) (*RedisEnrichmentCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisEnrichmentCacheWithClient(client, "", window, logger), nil
}

// NewRedisEnrichmentCacheWithClient creates a cache over an existing client
func NewRedisEnrichmentCacheWithClient(client *redis.Client, keyPrefix string, window time.Duration, logger *zap.Logger) *RedisEnrichmentCache {
	if keyPrefix == "" {
		keyPrefix = defaultEnrichmentKeyPrefix
	}
	if window <= 0 {
		window = enrichment.DefaultStalenessWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisEnrichmentCache{
		client:    client,
		keyPrefix: keyPrefix,
		window:    window,
		logger:    logger.Named("enrichment_cache"),
		now:       time.Now,
	}
}

// Get returns the record for productID. Connection failures and undecodable
// values are logged and reported as a miss.
func (c *RedisEnrichmentCache) Get(ctx context.Context, productID string) (enrichment.Record, bool) {
	raw, err := c.client.Get(ctx, c.keyPrefix+productID).Bytes()
	if errors.Is(err, redis.Nil) {
		return enrichment.Record{}, false
	}
	if err != nil {
		c.logger.Warn("Enrichment cache lookup failed",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return enrichment.Record{}, false
	}

	var r enrichment.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		c.logger.Warn("Enrichment cache entry unreadable",
			zap.String("product_id", productID),
			zap.Error(&enrichment.CacheCorruptionError{Source: "redis:" + c.keyPrefix + productID, Err: err}),
		)
		return enrichment.Record{}, false
	}
	if enrichment.IsStale(r, c.now(), c.window) {
		return enrichment.Record{}, false
	}
	return r, true
}

// Put stores record with a TTL of what remains of its staleness window
func (c *RedisEnrichmentCache) Put(ctx context.Context, productID string, record enrichment.Record) error {
	if productID == "" {
		return fmt.Errorf("enrichment cache: empty product id")
	}
	if record.ProductID == "" {
		record.ProductID = productID
	}
	now := c.now()
	if record.FetchedAt.IsZero() {
		record.FetchedAt = now
	}
	ttl := c.window - now.Sub(record.FetchedAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("enrichment cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+productID, data, ttl).Err(); err != nil {
		return fmt.Errorf("enrichment cache: store %s: %w", productID, err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisEnrichmentCache) Close() error {
	return c.client.Close()
}

var _ enrichment.Cache = (*RedisEnrichmentCache)(nil)
