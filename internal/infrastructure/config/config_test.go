package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Triple-C-BE/wimood/internal/domain/shared"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("WIMOOD_API_URL", "https://api.wimood.nl")
	t.Setenv("WIMOOD_API_KEY", "key")
	t.Setenv("WIMOOD_CUSTOMER_ID", "42")
	t.Setenv("WIMOOD_BASE_URL", "https://www.wimood.nl")
	t.Setenv("SHOPIFY_STORE_URL", "https://shop.myshopify.com")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "shpat_x")
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when only credentials are set", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := LoadFrom("")
		require.NoError(t, err)

		assert.Equal(t, "wimood-sync", cfg.App.Name)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, time.Hour, cfg.Sync.ProductInterval)
		assert.Equal(t, 15*time.Minute, cfg.Sync.OrderInterval)
		assert.False(t, cfg.Sync.TestMode)
		assert.Equal(t, 5, cfg.Sync.TestProductLimit)
		assert.Equal(t, "msrp", cfg.Sync.PriceSource)
		assert.Equal(t, 5, cfg.Retry.MaxRetries)
		assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
		assert.Equal(t, 2.0, cfg.Retry.Multiplier)
		assert.Equal(t, 60*time.Second, cfg.Retry.MaxDelay)
		assert.Equal(t, 7*24*time.Hour, cfg.Cache.Staleness)
		assert.Equal(t, "file", cfg.Cache.Backend)
		assert.Equal(t, filepath.Join("data", "scrape_cache.json"), cfg.Cache.FilePath)
		assert.Equal(t, 2*time.Second, cfg.Scraper.Delay)
		assert.False(t, cfg.Scraper.Enabled)
		assert.Equal(t, "Wimood_Sync", cfg.Shopify.VendorTag)
		assert.Equal(t, "2023-04", cfg.Shopify.APIVersion)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, filepath.Join("data", "orders.db"), cfg.Database.Path)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Telemetry.Enabled)
		assert.False(t, cfg.Dropship.Enabled)
		assert.Equal(t, "key", cfg.Dropship.OrderAPIKey)
		assert.Equal(t, 7*24*time.Hour, cfg.Sync.TrackingGrace)
	})

	t.Run("reads dropship settings", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DROPSHIP_ENABLED", "true")
		t.Setenv("WIMOOD_ORDER_API_URL", "https://api.wimood.nl/v1")
		t.Setenv("WIMOOD_ORDER_API_KEY", "order-key")
		t.Setenv("WIMOOD_ORDER_REMARK", "webshop")
		t.Setenv("ORDER_TRACKING_GRACE_DAYS", "0")

		cfg, err := LoadFrom("")
		require.NoError(t, err)

		assert.True(t, cfg.Dropship.Enabled)
		assert.Equal(t, "https://api.wimood.nl/v1", cfg.Dropship.OrderAPIURL)
		assert.Equal(t, "order-key", cfg.Dropship.OrderAPIKey)
		assert.Equal(t, "webshop", cfg.Dropship.Remark)
		assert.Zero(t, cfg.Sync.TrackingGrace)
	})

	t.Run("reads the operator environment names", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SYNC_INTERVAL_SECONDS", "600")
		t.Setenv("ORDER_SYNC_INTERVAL_SECONDS", "120")
		t.Setenv("ENABLE_SCRAPING", "true")
		t.Setenv("SCRAPE_DELAY_SECONDS", "5")
		t.Setenv("TEST_MODE", "1")
		t.Setenv("TEST_PRODUCT_LIMIT", "3")
		t.Setenv("SHOPIFY_VENDOR_TAG", "Other")
		t.Setenv("MAX_RETRIES", "0")
		t.Setenv("LOG_LEVEL", "WARNING")
		t.Setenv("USER_AGENTS", "ua-1, ua-2,,")

		cfg, err := LoadFrom("")
		require.NoError(t, err)

		assert.Equal(t, 10*time.Minute, cfg.Sync.ProductInterval)
		assert.Equal(t, 2*time.Minute, cfg.Sync.OrderInterval)
		assert.True(t, cfg.Scraper.Enabled)
		assert.Equal(t, 5*time.Second, cfg.Scraper.Delay)
		assert.True(t, cfg.Sync.TestMode)
		assert.Equal(t, 3, cfg.Sync.TestProductLimit)
		assert.Equal(t, "Other", cfg.Shopify.VendorTag)
		assert.Equal(t, 0, cfg.Retry.MaxRetries)
		assert.Equal(t, "warn", cfg.Log.Level)
		assert.Equal(t, []string{"ua-1", "ua-2"}, cfg.Scraper.UserAgents)
	})

	t.Run("dotenv file fills missing variables", func(t *testing.T) {
		t.Setenv("WIMOOD_API_KEY", "from-env")
		for _, k := range []string{"WIMOOD_API_URL", "WIMOOD_CUSTOMER_ID", "WIMOOD_BASE_URL", "SHOPIFY_STORE_URL", "SHOPIFY_ACCESS_TOKEN"} {
			t.Setenv(k, "")
			require.NoError(t, os.Unsetenv(k))
		}
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte(
			"WIMOOD_API_URL=https://api.wimood.nl\n"+
				"WIMOOD_API_KEY=from-file\n"+
				"WIMOOD_CUSTOMER_ID=42\n"+
				"WIMOOD_BASE_URL=https://www.wimood.nl\n"+
				"SHOPIFY_STORE_URL=https://shop.myshopify.com\n"+
				"SHOPIFY_ACCESS_TOKEN=shpat_file\n"), 0o600))
		t.Cleanup(func() {
			for _, k := range []string{"WIMOOD_API_URL", "WIMOOD_CUSTOMER_ID", "WIMOOD_BASE_URL", "SHOPIFY_STORE_URL", "SHOPIFY_ACCESS_TOKEN"} {
				_ = os.Unsetenv(k)
			}
		})

		cfg, err := LoadFrom(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Wimood.APIKey)
		assert.Equal(t, "shpat_file", cfg.Shopify.AccessToken)
	})

	t.Run("missing dotenv file is not an error", func(t *testing.T) {
		setRequiredEnv(t)
		_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
		assert.NoError(t, err)
	})
}

func TestLoad_MissingCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "")
	t.Setenv("WIMOOD_API_KEY", "")

	_, err := LoadFrom("")

	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConfiguration))
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Problems, "WIMOOD_API_KEY is required")
	assert.Contains(t, cfgErr.Problems, "SHOPIFY_ACCESS_TOKEN is required")
}

func validConfig() *Config {
	cfg := &Config{
		Wimood: WimoodConfig{
			APIURL:     "https://api.wimood.nl",
			APIKey:     "key",
			CustomerID: "42",
			BaseURL:    "https://www.wimood.nl",
		},
		Shopify: ShopifyConfig{
			StoreURL:    "https://shop.myshopify.com",
			AccessToken: "token",
		},
		Retry: RetryConfig{MaxRetries: -1},
	}
	applyDefaults(cfg)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		problem string
	}{
		{"invalid store url", func(c *Config) { c.Shopify.StoreURL = "not a url" }, "SHOPIFY_STORE_URL must be a valid URL"},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "CACHE_BACKEND must be one of [file redis]"},
		{"unknown price source", func(c *Config) { c.Sync.PriceSource = "list" }, "PRICE_SOURCE must be one of [msrp wholesale]"},
		{"storage enabled without bucket", func(c *Config) { c.Storage.Enabled = true; c.Storage.AccessKey = "k"; c.Storage.SecretKey = "s" }, "STORAGE_BUCKET is required"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -2 }, "MAX_RETRIES"},
		{"sub-second interval", func(c *Config) { c.Sync.OrderInterval = 10 * time.Millisecond }, "ORDER_SYNC_INTERVAL_SECONDS"},
		{"invalid order api url", func(c *Config) { c.Dropship.OrderAPIURL = "nope" }, "WIMOOD_ORDER_API_URL must be a valid URL"},
		{"dropship without order key", func(c *Config) { c.Dropship.Enabled = true; c.Dropship.OrderAPIKey = "" }, "WIMOOD_ORDER_API_KEY is required"},
		{"insecure production postgres", func(c *Config) { c.App.Env = "production"; c.Database.Driver = "postgres" }, "database.sslmode cannot be 'disable' in production"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			found := false
			for _, p := range cfgErr.Problems {
				if strings.Contains(p, tt.problem) {
					found = true
				}
			}
			assert.True(t, found, "problems %v do not mention %q", cfgErr.Problems, tt.problem)
		})
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("sqlite uses the file path", func(t *testing.T) {
		d := DatabaseConfig{Driver: "sqlite", Path: "data/orders.db"}
		assert.Equal(t, "data/orders.db", d.DSN())
	})

	t.Run("postgres escapes credentials", func(t *testing.T) {
		d := DatabaseConfig{
			Driver:   "postgres",
			Host:     "db",
			Port:     5432,
			User:     "sync",
			Password: "p@ss word",
			DBName:   "wimood",
			SSLMode:  "require",
		}
		assert.Equal(t, "postgres://sync:p%40ss%20word@db:5432/wimood?sslmode=require", d.DSN())
	})
}
