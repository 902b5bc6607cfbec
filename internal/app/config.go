package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (DIGIGOODS_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage       string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (DIGIGOODS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	SeedFile      string `usage:"Catalog loaded into memory storage; the built-in demo catalog when empty" flag:"seed-file"`
	JWT           JWTConfig
	Pricing       PricingConfig
	Redis         RedisConfig
	DiscountIndex DiscountIndexConfig
	RateLimit     RateLimitConfig
	Graceful      GracefulConfig
}

// JWTConfig controls bearer token issuance and verification.
type JWTConfig struct {
	Secret string        `usage:"HMAC secret for signing tokens (DIGIGOODS_JWT_SECRET)"`
	TTL    time.Duration `default:"24h" usage:"Token lifetime"`
}

// PricingConfig controls price calculation.
type PricingConfig struct {
	MaxDiscountPercent string `default:"50" usage:"Largest cumulative discount percentage allowed on a checkout"`
}

// RedisConfig enables Idempotency-Key deduplication when Addr is set.
type RedisConfig struct {
	Addr           string        `usage:"Redis address for idempotency keys; disabled when empty"`
	Password       string        `usage:"Redis password"`
	DB             int           `default:"0" usage:"Redis database number"`
	IdempotencyTTL time.Duration `default:"24h" usage:"How long a used Idempotency-Key is remembered" flag:"idempotency-ttl"`
}

// DiscountIndexConfig controls the in-memory filter of known discount codes.
type DiscountIndexConfig struct {
	Refresh time.Duration `default:"1m" usage:"Discount code index refresh interval; 0 disables the index"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// MaxDiscount returns the parsed Pricing.MaxDiscountPercent.
func (c *Config) MaxDiscount() decimal.Decimal {
	return decimal.RequireFromString(c.Pricing.MaxDiscountPercent)
}

// LoadConfig loads configuration from environment variables, YAML config files
// and flags, then applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "DIGIGOODS",
		Files:     []string{"config.yaml", "/etc/digigoods/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set DIGIGOODS_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q: want %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}

	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required: set DIGIGOODS_JWT_SECRET")
	}
	if c.JWT.TTL <= 0 {
		return errors.Errorf("JWT TTL must be positive, got %s", c.JWT.TTL)
	}

	pct, err := decimal.NewFromString(c.Pricing.MaxDiscountPercent)
	if err != nil {
		return errors.Wrap(err, "parse max discount percent")
	}
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return errors.Errorf("max discount percent %s out of range [0, 100]", pct)
	}

	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT onto the configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
