package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Triple-C-BE/wimood/internal/domain/shared"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Wimood    WimoodConfig
	Shopify   ShopifyConfig
	Dropship  DropshipConfig
	Sync      SyncConfig
	Scraper   ScraperConfig
	Cache     CacheConfig
	Storage   StorageConfig
	Retry     RetryConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string `env:"STATUS_PORT" validate:"required,numeric"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `env:"LOG_FORMAT" validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds order store connection settings
type DatabaseConfig struct {
	Driver          string `env:"DATABASE_DRIVER" validate:"oneof=sqlite postgres"`
	Path            string // sqlite file, ":memory:" allowed
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int `env:"DATABASE_MAX_OPEN_CONNS" validate:"gt=0"`
	MaxIdleConns    int `env:"DATABASE_MAX_IDLE_CONNS" validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// WimoodConfig holds the supplier feed credentials
type WimoodConfig struct {
	APIURL     string `env:"WIMOOD_API_URL" validate:"required,url"`
	APIKey     string `env:"WIMOOD_API_KEY" validate:"required"`
	CustomerID string `env:"WIMOOD_CUSTOMER_ID" validate:"required"`
	BaseURL    string `env:"WIMOOD_BASE_URL" validate:"required,url"`
}

// ShopifyConfig holds the storefront credentials
type ShopifyConfig struct {
	StoreURL     string `env:"SHOPIFY_STORE_URL" validate:"required,url"`
	AccessToken  string `env:"SHOPIFY_ACCESS_TOKEN" validate:"required"`
	VendorTag    string `env:"SHOPIFY_VENDOR_TAG" validate:"required"`
	APIVersion   string
	CallInterval time.Duration
}

// DropshipConfig holds the optional supplier order submission
type DropshipConfig struct {
	Enabled     bool
	OrderAPIURL string `env:"WIMOOD_ORDER_API_URL" validate:"omitempty,url"`
	OrderAPIKey string `env:"WIMOOD_ORDER_API_KEY" validate:"required_if=Enabled true"`
	Remark      string
}

// SyncConfig holds the schedule and reconciliation options
type SyncConfig struct {
	ProductInterval  time.Duration `env:"SYNC_INTERVAL_SECONDS" validate:"gte=1s"`
	OrderInterval    time.Duration `env:"ORDER_SYNC_INTERVAL_SECONDS" validate:"gte=1s"`
	TestMode         bool
	TestProductLimit int `env:"TEST_PRODUCT_LIMIT" validate:"gte=0"`
	EnrichExisting   bool
	PriceSource      string `env:"PRICE_SOURCE" validate:"oneof=msrp wholesale"`
	PriceMarkup      string `env:"PRICE_MARKUP" validate:"omitempty,number"`
	TrackCost        bool
	// TrackingGrace keeps fulfilled orders without tracking polled. 0 disables.
	TrackingGrace time.Duration `env:"ORDER_TRACKING_GRACE_DAYS" validate:"gte=0s"`
}

// ScraperConfig holds product page scraping settings
type ScraperConfig struct {
	Enabled    bool
	Delay      time.Duration `env:"SCRAPE_DELAY_SECONDS" validate:"gte=0s"`
	UseBrowser bool
	BrowserURL string
	UserAgents []string
}

// CacheConfig holds enrichment cache settings
type CacheConfig struct {
	Backend   string        `env:"CACHE_BACKEND" validate:"oneof=file redis"`
	FilePath  string        `env:"CACHE_FILE" validate:"required"`
	Staleness time.Duration `env:"CACHE_STALENESS_DAYS" validate:"gt=0s"`
}

// StorageConfig holds the optional image mirror bucket
type StorageConfig struct {
	Enabled       bool
	Endpoint      string
	Region        string
	Bucket        string `env:"STORAGE_BUCKET" validate:"required_if=Enabled true"`
	AccessKey     string `env:"STORAGE_ACCESS_KEY" validate:"required_if=Enabled true"`
	SecretKey     string `env:"STORAGE_SECRET_KEY" validate:"required_if=Enabled true"`
	UseSSL        bool
	UsePathStyle  bool
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" validate:"omitempty,url"`
}

// RetryConfig holds the outbound request retry policy
type RetryConfig struct {
	MaxRetries int           `env:"MAX_RETRIES" validate:"gte=0,lte=20"`
	BaseDelay  time.Duration `env:"RETRY_BASE_DELAY" validate:"gt=0s"`
	Multiplier float64       `env:"RETRY_MULTIPLIER" validate:"gte=1"`
	MaxDelay   time.Duration `env:"RETRY_MAX_DELAY" validate:"gtefield=BaseDelay"`
	Timeout    time.Duration `env:"REQUEST_TIMEOUT" validate:"gt=0s"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 `env:"OTEL_SAMPLING_RATIO" validate:"gte=0,lte=1"`
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
	LogsEnabled       bool    // Tee zap logs into the OTLP log pipeline
}

// ConfigurationError lists every setting that prevents startup.
// It unwraps to shared.ErrConfiguration.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigurationError) Unwrap() error {
	return shared.ErrConfiguration
}

// envBindings maps config keys to the environment names operators already use.
// Keys not listed here resolve through AutomaticEnv ("sync.test_mode" -> SYNC_TEST_MODE).
var envBindings = map[string]string{
	"app.port":                 "STATUS_PORT",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
	"sync.interval_seconds":    "SYNC_INTERVAL_SECONDS",
	"sync.order_interval_secs": "ORDER_SYNC_INTERVAL_SECONDS",
	"sync.test_mode":           "TEST_MODE",
	"sync.test_product_limit":  "TEST_PRODUCT_LIMIT",
	"sync.enrich_existing":     "ENRICH_EXISTING",
	"sync.price_source":        "PRICE_SOURCE",
	"sync.price_markup":        "PRICE_MARKUP",
	"sync.track_cost":          "TRACK_COST",
	"sync.tracking_grace_days": "ORDER_TRACKING_GRACE_DAYS",
	"dropship.enabled":         "DROPSHIP_ENABLED",
	"dropship.order_api_url":   "WIMOOD_ORDER_API_URL",
	"dropship.order_api_key":   "WIMOOD_ORDER_API_KEY",
	"dropship.remark":          "WIMOOD_ORDER_REMARK",
	"scraper.enabled":          "ENABLE_SCRAPING",
	"scraper.delay_seconds":    "SCRAPE_DELAY_SECONDS",
	"scraper.use_browser":      "SCRAPE_USE_BROWSER",
	"scraper.browser_url":      "SCRAPE_BROWSER_URL",
	"scraper.user_agents":      "USER_AGENTS",
	"cache.backend":            "CACHE_BACKEND",
	"cache.file":               "CACHE_FILE",
	"cache.staleness_days":     "CACHE_STALENESS_DAYS",
	"retry.max_retries":        "MAX_RETRIES",
	"database.path":            "ORDER_DB_FILE",
}

// Load reads configuration with this priority (highest first):
//  1. Environment variables (a .env file in the working directory is loaded first)
//  2. config.toml
//  3. Built-in defaults
func Load() (*Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv file. Variables already present
// in the environment are not overridden by the file.
func LoadFrom(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading %s: %w", dotenvPath, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Wimood: WimoodConfig{
			APIURL:     v.GetString("wimood.api_url"),
			APIKey:     v.GetString("wimood.api_key"),
			CustomerID: v.GetString("wimood.customer_id"),
			BaseURL:    v.GetString("wimood.base_url"),
		},
		Shopify: ShopifyConfig{
			StoreURL:     v.GetString("shopify.store_url"),
			AccessToken:  v.GetString("shopify.access_token"),
			VendorTag:    v.GetString("shopify.vendor_tag"),
			APIVersion:   v.GetString("shopify.api_version"),
			CallInterval: v.GetDuration("shopify.call_interval"),
		},
		Dropship: DropshipConfig{
			Enabled:     v.GetBool("dropship.enabled"),
			OrderAPIURL: v.GetString("dropship.order_api_url"),
			OrderAPIKey: v.GetString("dropship.order_api_key"),
			Remark:      v.GetString("dropship.remark"),
		},
		Sync: SyncConfig{
			ProductInterval:  seconds(v, "sync.interval_seconds"),
			OrderInterval:    seconds(v, "sync.order_interval_secs"),
			TestMode:         v.GetBool("sync.test_mode"),
			TestProductLimit: v.GetInt("sync.test_product_limit"),
			EnrichExisting:   v.GetBool("sync.enrich_existing"),
			PriceSource:      strings.ToLower(v.GetString("sync.price_source")),
			PriceMarkup:      v.GetString("sync.price_markup"),
			TrackCost:        v.GetBool("sync.track_cost"),
			TrackingGrace:    time.Duration(v.GetInt("sync.tracking_grace_days")) * 24 * time.Hour,
		},
		Scraper: ScraperConfig{
			Enabled:    v.GetBool("scraper.enabled"),
			Delay:      seconds(v, "scraper.delay_seconds"),
			UseBrowser: v.GetBool("scraper.use_browser"),
			BrowserURL: v.GetString("scraper.browser_url"),
			UserAgents: splitList(v.GetString("scraper.user_agents")),
		},
		Cache: CacheConfig{
			Backend:   v.GetString("cache.backend"),
			FilePath:  v.GetString("cache.file"),
			Staleness: time.Duration(v.GetInt("cache.staleness_days")) * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Enabled:       v.GetBool("storage.enabled"),
			Endpoint:      v.GetString("storage.endpoint"),
			Region:        v.GetString("storage.region"),
			Bucket:        v.GetString("storage.bucket"),
			AccessKey:     v.GetString("storage.access_key"),
			SecretKey:     v.GetString("storage.secret_key"),
			UseSSL:        v.GetBool("storage.use_ssl"),
			UsePathStyle:  v.GetBool("storage.use_path_style"),
			PublicBaseURL: v.GetString("storage.public_base_url"),
		},
		Retry: RetryConfig{
			MaxRetries: v.GetInt("retry.max_retries"),
			BaseDelay:  v.GetDuration("retry.base_delay"),
			Multiplier: v.GetFloat64("retry.multiplier"),
			MaxDelay:   v.GetDuration("retry.max_delay"),
			Timeout:    v.GetDuration("retry.timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
	}
	if !v.IsSet("retry.max_retries") {
		cfg.Retry.MaxRetries = -1
	}
	if !v.IsSet("sync.track_cost") {
		cfg.Sync.TrackCost = true
	}
	if !v.IsSet("sync.tracking_grace_days") {
		cfg.Sync.TrackingGrace = 7 * 24 * time.Hour
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "wimood-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Level == "warning" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join("data", "orders.db")
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "wimood"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 5
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Wimood.BaseURL == "" {
		cfg.Wimood.BaseURL = "https://www.wimood.nl"
	}
	// The order API accepts the feed key unless a separate one is issued
	if cfg.Dropship.OrderAPIKey == "" {
		cfg.Dropship.OrderAPIKey = cfg.Wimood.APIKey
	}
	if cfg.Shopify.VendorTag == "" {
		cfg.Shopify.VendorTag = "Wimood_Sync"
	}
	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2023-04"
	}
	if cfg.Shopify.CallInterval == 0 {
		cfg.Shopify.CallInterval = 500 * time.Millisecond
	}
	if cfg.Sync.ProductInterval == 0 {
		cfg.Sync.ProductInterval = time.Hour
	}
	if cfg.Sync.OrderInterval == 0 {
		cfg.Sync.OrderInterval = 15 * time.Minute
	}
	if cfg.Sync.TestProductLimit == 0 {
		cfg.Sync.TestProductLimit = 5
	}
	if cfg.Sync.PriceSource == "" {
		cfg.Sync.PriceSource = "msrp"
	}
	if cfg.Scraper.Delay == 0 {
		cfg.Scraper.Delay = 2 * time.Second
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "file"
	}
	if cfg.Cache.FilePath == "" {
		cfg.Cache.FilePath = filepath.Join("data", "scrape_cache.json")
	}
	if cfg.Cache.Staleness == 0 {
		cfg.Cache.Staleness = 7 * 24 * time.Hour
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	// -1 marks "unset" so an explicit MAX_RETRIES=0 disables retrying
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 5
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry.Multiplier = 2
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 60 * time.Second
	}
	if cfg.Retry.Timeout == 0 {
		cfg.Retry.Timeout = 30 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "wimood-sync"
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report problems by the environment variable an operator has to set
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Validate checks required credentials and numeric bounds. Every problem is
// reported at once in a ConfigurationError.
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ConfigurationError{Problems: []string{err.Error()}}
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.App.Env == "production" && c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
		problems = append(problems, "database.sslmode cannot be 'disable' in production")
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fe.Field() + " is required"
	case "url":
		return fe.Field() + " must be a valid URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	}
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver != "postgres" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Address returns host:port of the Redis server
func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
