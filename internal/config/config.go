// Package config loads the API configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgconfig "github.com/ploop3/Natours/pkg/config"
	"github.com/ploop3/Natours/pkg/database"
	pkgkafka "github.com/ploop3/Natours/pkg/kafka"
	"github.com/ploop3/Natours/pkg/tracing"
)

// Drivers selectable through the environment.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	LockLocal = "local"
	LockRedis = "redis"

	MailLog   = "log"
	MailKafka = "kafka"

	CheckoutMock = "mock"
	CheckoutHTTP = "http"

	SearchMemory        = "memory"
	SearchElasticsearch = "elasticsearch"
)

const (
	defaultJWTSecret = "change-this-to-a-secure-secret"
	minSecretLength  = 32
)

// Config holds all configuration of the API.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"PORT" envDefault:"3000"`

	JWTSecret          string   `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	JWTExpiresIn       Lifetime `env:"JWT_EXPIRES_IN" envDefault:"90d"`
	JWTCookieExpiresIn int      `env:"JWT_COOKIE_EXPIRES_IN" envDefault:"90"`
	BcryptCost         int      `env:"BCRYPT_COST" envDefault:"12"`

	StoreDriver        string        `env:"STORE_DRIVER" envDefault:"postgres"`
	SlowQueryThreshold time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	Postgres           database.PostgresConfig

	RatingsLock  string        `env:"RATINGS_LOCK" envDefault:"local"`
	LockTTL      time.Duration `env:"RATINGS_LOCK_TTL" envDefault:"10s"`
	CacheEnabled bool          `env:"TOUR_CACHE_ENABLED" envDefault:"false"`
	CacheTTL     time.Duration `env:"TOUR_CACHE_TTL" envDefault:"5m"`
	Redis        database.RedisConfig

	KafkaEnabled bool `env:"KAFKA_ENABLED" envDefault:"false"`
	Kafka        pkgkafka.Config
	MailDriver   string `env:"MAIL_DRIVER" envDefault:"log"`

	CheckoutProvider      string        `env:"CHECKOUT_PROVIDER" envDefault:"mock"`
	CheckoutBaseURL       string        `env:"CHECKOUT_BASE_URL" envDefault:"https://api.stripe.com"`
	CheckoutSecretKey     string        `env:"CHECKOUT_SECRET_KEY"`
	CheckoutCurrency      string        `env:"CHECKOUT_CURRENCY" envDefault:"usd"`
	CheckoutWebhookSecret string        `env:"CHECKOUT_WEBHOOK_SECRET"`
	CheckoutTimeout       time.Duration `env:"CHECKOUT_TIMEOUT" envDefault:"10s"`

	SearchEngine       string `env:"SEARCH_ENGINE" envDefault:"memory"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"natours_tours"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimit          int           `env:"RATE_LIMIT" envDefault:"100"`
	RateWindow         time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`
	TourListMaxAge     int           `env:"TOUR_LIST_MAX_AGE" envDefault:"60"`

	Tracing tracing.Config
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load natours config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that cannot be expressed as defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.Environment != "development" {
		if c.JWTSecret == defaultJWTSecret {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be explicitly set in %q mode", c.Environment))
		}
		if len(c.JWTSecret) < minSecretLength {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters long, got %d", minSecretLength, len(c.JWTSecret)))
		}
	}
	if c.JWTExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}
	if c.JWTCookieExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_COOKIE_EXPIRES_IN must be positive"))
	}

	if err := oneOf("STORE_DRIVER", c.StoreDriver, StorePostgres, StoreMemory); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("RATINGS_LOCK", c.RatingsLock, LockLocal, LockRedis); err != nil {
		errs = append(errs, err)
	}
	if err := oneOf("MAIL_DRIVER", c.MailDriver, MailLog, MailKafka); err != nil {
		errs = append(errs, err)
	}
	if c.MailDriver == MailKafka && !c.KafkaEnabled {
		errs = append(errs, errors.New("MAIL_DRIVER=kafka requires KAFKA_ENABLED=true"))
	}

	if err := oneOf("CHECKOUT_PROVIDER", c.CheckoutProvider, CheckoutMock, CheckoutHTTP); err != nil {
		errs = append(errs, err)
	}
	if c.CheckoutProvider == CheckoutHTTP && c.CheckoutSecretKey == "" {
		errs = append(errs, errors.New("CHECKOUT_SECRET_KEY is required for the http checkout provider"))
	}
	if c.Environment != "development" && c.CheckoutWebhookSecret == "" {
		errs = append(errs, errors.New("CHECKOUT_WEBHOOK_SECRET must be set"))
	}

	if err := oneOf("SEARCH_ENGINE", c.SearchEngine, SearchMemory, SearchElasticsearch); err != nil {
		errs = append(errs, err)
	}
	if c.SearchEngine == SearchElasticsearch && c.ElasticsearchURL == "" {
		errs = append(errs, errors.New("ELASTICSEARCH_URL is required for the elasticsearch search engine"))
	}

	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateWindow <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive when RATE_LIMIT is set"))
	}
	return errors.Join(errs...)
}

// UsesRedis reports whether any component needs the Redis client.
func (c *Config) UsesRedis() bool {
	return c.RatingsLock == LockRedis || c.CacheEnabled
}

// CookieTTL is the lifetime of the token cookie.
func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.JWTCookieExpiresIn) * 24 * time.Hour
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, "|"), value)
}

// Lifetime is a duration that also accepts a whole number of days, as in
// "90d".
type Lifetime time.Duration

// UnmarshalText parses "90d" or any time.ParseDuration string.
func (l *Lifetime) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fmt.Errorf("invalid lifetime %q: %w", s, err)
		}
		*l = Lifetime(time.Duration(n) * 24 * time.Hour)
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid lifetime %q: %w", s, err)
	}
	*l = Lifetime(d)
	return nil
}

// Duration returns l as a time.Duration.
func (l Lifetime) Duration() time.Duration { return time.Duration(l) }
