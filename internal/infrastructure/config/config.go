package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Ovation Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Hub     HubConfig     `yaml:"hub"`
	Redis   RedisConfig   `yaml:"redis"`
	Webhook WebhookConfig `yaml:"webhook"`
	Logging LoggingConfig `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates for solar calculations.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Elevation float64 `yaml:"elevation"`
}

// HubConfig contains connection settings for the home-automation hub.
type HubConfig struct {
	// URL is the hub's base HTTP URL (e.g., "http://homeassistant.local:8123").
	// The streaming endpoint is derived from it by swapping the scheme to ws/wss.
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// RequestTimeout bounds individual REST calls, in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// IgnoreDomains lists entity domains whose state changes are neither
	// dispatched nor resynced (e.g., noisy diagnostic domains).
	IgnoreDomains []string `yaml:"ignore_domains"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains stream reconnection backoff settings, in seconds.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// RedisConfig contains cache store connection settings.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// StateTTL is the lifetime of cached entity state keys, in seconds.
	StateTTL int `yaml:"state_ttl"`
}

// WebhookConfig contains the inbound HTTP surface settings.
type WebhookConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts HTTPTimeoutConfig `yaml:"timeouts"`
}

// HTTPTimeoutConfig contains HTTP timeout settings, in seconds.
type HTTPTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OVATION_SECTION_KEY
// For example: OVATION_HUB_TOKEN, OVATION_REDIS_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name:     "Ovation",
			Timezone: "UTC",
		},
		Hub: HubConfig{
			URL:            "http://localhost:8123",
			RequestTimeout: 5,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			StateTTL: 3600,
		},
		Webhook: WebhookConfig{
			Host: "0.0.0.0",
			Port: 8126,
			Timeouts: HTTPTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: OVATION_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub
	if v := os.Getenv("OVATION_HUB_URL"); v != "" {
		cfg.Hub.URL = v
	}
	if v := os.Getenv("OVATION_HUB_TOKEN"); v != "" {
		cfg.Hub.Token = v
	}

	// Redis
	if v := os.Getenv("OVATION_REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("OVATION_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("OVATION_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Webhook
	if v := os.Getenv("OVATION_WEBHOOK_HOST"); v != "" {
		cfg.Webhook.Host = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Hub.URL == "" {
		errs = append(errs, "hub.url is required")
	} else if !strings.HasPrefix(c.Hub.URL, "http://") && !strings.HasPrefix(c.Hub.URL, "https://") {
		errs = append(errs, "hub.url must start with http:// or https://")
	}

	// The hub rejects unauthenticated clients at both the REST and stream
	// surfaces, so an empty token can never produce a working deployment.
	if c.Hub.Token == "" {
		errs = append(errs, "hub.token is required (set OVATION_HUB_TOKEN environment variable)")
	}

	if c.Hub.RequestTimeout < 1 {
		errs = append(errs, "hub.request_timeout must be at least 1 second")
	}
	if c.Hub.Reconnect.InitialDelay < 1 {
		errs = append(errs, "hub.reconnect.initial_delay must be at least 1 second")
	}
	if c.Hub.Reconnect.MaxDelay < c.Hub.Reconnect.InitialDelay {
		errs = append(errs, "hub.reconnect.max_delay must be >= initial_delay")
	}

	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, "redis.port must be between 1 and 65535")
	}
	if c.Redis.StateTTL < 1 {
		errs = append(errs, "redis.state_ttl must be at least 1 second")
	}

	if c.Webhook.Port < 1 || c.Webhook.Port > 65535 {
		errs = append(errs, "webhook.port must be between 1 and 65535")
	}

	if c.Site.Location.Latitude < -90 || c.Site.Location.Latitude > 90 {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if c.Site.Location.Longitude < -180 || c.Site.Location.Longitude > 180 {
		errs = append(errs, "site.location.longitude must be between -180 and 180")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the hub request timeout as a Duration.
func (c *HubConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// GetInitialDelay returns the reconnect initial delay as a Duration.
func (c *ReconnectConfig) GetInitialDelay() time.Duration {
	return time.Duration(c.InitialDelay) * time.Second
}

// GetMaxDelay returns the reconnect maximum delay as a Duration.
func (c *ReconnectConfig) GetMaxDelay() time.Duration {
	return time.Duration(c.MaxDelay) * time.Second
}

// Addr returns the redis host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetStateTTL returns the cached state TTL as a Duration.
func (c *RedisConfig) GetStateTTL() time.Duration {
	return time.Duration(c.StateTTL) * time.Second
}

// GetReadTimeout returns the webhook read timeout as a Duration.
func (c *WebhookConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the webhook write timeout as a Duration.
func (c *WebhookConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the webhook idle timeout as a Duration.
func (c *WebhookConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
