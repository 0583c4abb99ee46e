package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	// Me is the id of the local user.
	Me       int64  `yaml:"me"`
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Session   SessionConfig   `yaml:"session"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Directory DirectoryConfig `yaml:"directory"`
}

type SessionConfig struct {
	RetryCountdown int    `yaml:"retry_countdown"`
	RetryTick      string `yaml:"retry_tick"`
}

type GatewayConfig struct {
	URL           string `yaml:"url"`
	SocketURL     string `yaml:"socket_url"`
	FetchRetries  int    `yaml:"fetch_retries"`
	RetryInterval string `yaml:"retry_interval"`
}

// DirectoryConfig selects the user directory: Postgres when DatabaseURL is set,
// the REST service at URL otherwise.
type DirectoryConfig struct {
	URL           string `yaml:"url"`
	DatabaseURL   string `yaml:"database_url"`
	CacheTTL      string `yaml:"cache_ttl"`
	CacheCapacity int    `yaml:"cache_capacity"`
	LookupTimeout string `yaml:"lookup_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Port:     "8080",
		LogLevel: "info",
		Session: SessionConfig{
			RetryCountdown: 3,
			RetryTick:      "1s",
		},
		Gateway: GatewayConfig{
			URL:           "http://localhost:5000",
			SocketURL:     "ws://localhost:5000/socket",
			FetchRetries:  3,
			RetryInterval: "500ms",
		},
		Directory: DirectoryConfig{
			URL:           "http://localhost:5000",
			CacheTTL:      "5m",
			CacheCapacity: 1000,
			LookupTimeout: "10s",
		},
	}
}

// Load reads defaults, then the YAML file at path if it exists, then .env, then
// the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	var errs []error
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, key, v))
			return
		}
		*dst = n
	}

	if v := strings.TrimSpace(os.Getenv("CHATSYNC_ME")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: CHATSYNC_ME=%q is not a user id", ErrInvalid, v))
		} else {
			c.Me = n
		}
	}
	setString("PORT", &c.Port)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("GATEWAY_URL", &c.Gateway.URL)
	setString("SOCKET_URL", &c.Gateway.SocketURL)
	setInt("FETCH_RETRIES", &c.Gateway.FetchRetries)
	setString("DATABASE_URL", &c.Directory.DatabaseURL)
	setString("DIRECTORY_URL", &c.Directory.URL)
	setString("CACHE_TTL", &c.Directory.CacheTTL)
	setInt("CACHE_CAPACITY", &c.Directory.CacheCapacity)
	setInt("RETRY_COUNTDOWN", &c.Session.RetryCountdown)

	return errors.Join(errs...)
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Me <= 0 {
		errs = append(errs, fmt.Errorf("%w: local user id not configured (set CHATSYNC_ME)", ErrInvalid))
	}
	if c.Session.RetryCountdown < 0 {
		errs = append(errs, fmt.Errorf("%w: retry countdown must not be negative", ErrInvalid))
	}
	if c.Gateway.FetchRetries < 0 {
		errs = append(errs, fmt.Errorf("%w: fetch retries must not be negative", ErrInvalid))
	}
	if c.Directory.CacheCapacity <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache capacity must be positive", ErrInvalid))
	}
	if c.Gateway.URL == "" || c.Gateway.SocketURL == "" {
		errs = append(errs, fmt.Errorf("%w: gateway url and socket url are required", ErrInvalid))
	}
	if c.Directory.URL == "" && c.Directory.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("%w: directory url or database url is required", ErrInvalid))
	}
	for name, v := range map[string]string{
		"session.retry_tick":       c.Session.RetryTick,
		"gateway.retry_interval":   c.Gateway.RetryInterval,
		"directory.cache_ttl":      c.Directory.CacheTTL,
		"directory.lookup_timeout": c.Directory.LookupTimeout,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s=%q is not a positive duration", ErrInvalid, name, v))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) GetRetryTick() time.Duration {
	return duration(c.Session.RetryTick, time.Second)
}

// GetFetchRetries returns the retry count in gateway.Options terms. A
// configured zero turns retries off.
func (c *Config) GetFetchRetries() int {
	if c.Gateway.FetchRetries == 0 {
		return -1
	}
	return c.Gateway.FetchRetries
}

func (c *Config) GetRetryInterval() time.Duration {
	return duration(c.Gateway.RetryInterval, 500*time.Millisecond)
}

func (c *Config) GetCacheTTL() time.Duration {
	return duration(c.Directory.CacheTTL, 5*time.Minute)
}

func (c *Config) GetLookupTimeout() time.Duration {
	return duration(c.Directory.LookupTimeout, 10*time.Second)
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
