package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	pkgconfig "github.com/utafrali/giftcart/pkg/config"
	"github.com/utafrali/giftcart/pkg/httpclient"
	"github.com/utafrali/giftcart/pkg/tracing"
)

// Session stores.
const (
	SessionFile   = "file"
	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config holds all configuration for the storefront client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`

	// Cart API
	APIURL     string        `env:"STOREFRONT_API_URL" envDefault:"http://localhost:8003/api"`
	Timeout    time.Duration `env:"STOREFRONT_TIMEOUT" envDefault:"10s"`
	MaxRetries int           `env:"STOREFRONT_MAX_RETRIES" envDefault:"0"`

	// Circuit breaker around the cart API
	BreakerEnabled      bool          `env:"STOREFRONT_BREAKER_ENABLED" envDefault:"true"`
	BreakerFailureRatio float64       `env:"STOREFRONT_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerMinRequests  uint32        `env:"STOREFRONT_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerOpenTimeout  time.Duration `env:"STOREFRONT_BREAKER_OPEN_TIMEOUT" envDefault:"30s"`

	// Session persistence
	SessionStore     string        `env:"SESSION_STORE" envDefault:"file"`
	SessionFile      string        `env:"SESSION_FILE"`
	SessionRedisAddr string        `env:"SESSION_REDIS_ADDR" envDefault:"localhost:6379"`
	SessionKey       string        `env:"SESSION_KEY" envDefault:"giftcart:session:default"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	Tracing tracing.Config
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load(nil)
}

// LoadFrom reads configuration from environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(environ)
}

func load(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	var err error
	if environ == nil {
		err = pkgconfig.Load(cfg)
	} else {
		err = pkgconfig.LoadFrom(cfg, environ)
	}
	if err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "storefront"
	}
	if cfg.SessionStore == SessionFile && cfg.SessionFile == "" {
		cfg.SessionFile = defaultSessionFile()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HTTPClientConfig returns the transport settings for the cart API client.
func (c *Config) HTTPClientConfig() httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = c.Timeout
	hc.MaxRetries = c.MaxRetries
	return hc
}

// BreakerConfig returns the circuit breaker settings for the cart API client.
func (c *Config) BreakerConfig() httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig("cart-api")
	cb.FailureRatio = c.BreakerFailureRatio
	cb.MinRequests = c.BreakerMinRequests
	cb.Timeout = c.BreakerOpenTimeout
	return cb
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "giftcart", "session.json")
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid STOREFRONT_API_URL %q", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid STOREFRONT_TIMEOUT: %s", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("invalid STOREFRONT_MAX_RETRIES: %d", c.MaxRetries)
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("invalid STOREFRONT_BREAKER_FAILURE_RATIO: %v", c.BreakerFailureRatio)
	}
	switch c.SessionStore {
	case SessionFile, SessionMemory:
	case SessionRedis:
		if c.SessionRedisAddr == "" || c.SessionKey == "" {
			return errors.New("SESSION_REDIS_ADDR and SESSION_KEY are required for the redis session store")
		}
	default:
		return fmt.Errorf("invalid SESSION_STORE %q: want %s, %s or %s", c.SessionStore, SessionFile, SessionMemory, SessionRedis)
	}
	return nil
}
