// Package config loads the dashboard configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Redis     RedisConfig     `yaml:"redis"`
	Sensu     UpstreamConfig  `yaml:"sensu"`
	PuppetDB  UpstreamConfig  `yaml:"puppetdb"`
	Ubersmith UbersmithConfig `yaml:"ubersmith"`
	Crowd     CrowdConfig     `yaml:"crowd"`
	Cookie    CookieConfig    `yaml:"cookie"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// HTTPConfig configures the listener and static assets.
type HTTPConfig struct {
	Listen    string `yaml:"listen" env:"HTTP_LISTEN"`
	StaticDir string `yaml:"static_dir" env:"HTTP_STATIC_DIR"`
}

// RedisConfig configures the credential store connection.
type RedisConfig struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR"`
	DB   int    `yaml:"db" env:"REDIS_DB"`
}

// UpstreamConfig configures one upstream REST service.
type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// UbersmithConfig configures the ticketing upstream.
type UbersmithConfig struct {
	BaseURL  string        `yaml:"base_url" env:"UBERSMITH_URL"`
	Username string        `yaml:"username" env:"UBERSMITH_USER"`
	Password string        `yaml:"password" env:"UBERSMITH_PASSWORD"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CrowdConfig configures the directory service used for credential
// verification.
type CrowdConfig struct {
	BaseURL     string        `yaml:"base_url" env:"CROWD_URL"`
	Application string        `yaml:"application" env:"CROWD_APPLICATION"`
	Password    string        `yaml:"password" env:"CROWD_PASSWORD"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CookieConfig configures session cookie signing.
type CookieConfig struct {
	Secret string `yaml:"secret" env:"COOKIE_SECRET"`
}

// LogConfig configures the structured loggers.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// MetricsConfig configures the periodic metrics flush.
type MetricsConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval" env:"METRICS_FLUSH_INTERVAL"`
}

// RateLimitConfig configures per-client API rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// Load reads the configuration file at path, applies environment overrides
// and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Env overrides win over file values. StrictDecode is not used because
	// every field has a file-level default path.
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode env overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":3000"
	}
	if c.HTTP.StaticDir == "" {
		c.HTTP.StaticDir = "public"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.FlushInterval <= 0 {
		c.Metrics.FlushInterval = 15 * time.Second
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 25
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 50
	}
	for _, u := range []*time.Duration{
		&c.Sensu.Timeout, &c.PuppetDB.Timeout, &c.Ubersmith.Timeout, &c.Crowd.Timeout,
	} {
		if *u <= 0 {
			*u = 10 * time.Second
		}
	}
}

func (c *Config) validate() error {
	if c.Sensu.BaseURL == "" {
		return fmt.Errorf("config: sensu.base_url is required")
	}
	if c.PuppetDB.BaseURL == "" {
		return fmt.Errorf("config: puppetdb.base_url is required")
	}
	if c.Crowd.BaseURL == "" {
		return fmt.Errorf("config: crowd.base_url is required")
	}
	if len(c.Cookie.Secret) < 16 {
		return fmt.Errorf("config: cookie.secret must be at least 16 characters")
	}
	return nil
}
