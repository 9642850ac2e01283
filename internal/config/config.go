package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	// Handlers and Alerts are the ordered lists of active plugin names.
	// Order here is registration order, which is dispatch order.
	Handlers []string `yaml:"handlers"`
	Alerts   []string `yaml:"alerts"`

	// Plugins holds the raw per-plugin configuration blocks, keyed by
	// plugin name. Each plugin decodes its own block at registration.
	Plugins map[string]yaml.Node `yaml:"plugin_config"`

	Tradovate TradovateConfig `yaml:"tradovate"`
}

// TradovateConfig carries the upstream credentials used only by the
// session manager.
type TradovateConfig struct {
	Environment string `yaml:"environment"` // "demo" or "live"
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	AppID       string `yaml:"app_id"`
	AppVersion  string `yaml:"app_version"`
	CID         int    `yaml:"cid"`
	Secret      string `yaml:"secret"`
	DeviceID    string `yaml:"device_id"`
}

// Load reads configuration from a YAML file, applying environment
// overrides for connection URLs and secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		ListenAddr: ":8080",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.RedisURL = getEnv("TRADEHOOK_REDIS_URL", cfg.RedisURL)
	cfg.DatabaseURL = getEnv("TRADEHOOK_DATABASE_URL", cfg.DatabaseURL)
	cfg.Tradovate.Password = getEnv("TO_PASSWORD", cfg.Tradovate.Password)
	cfg.Tradovate.Secret = getEnv("TO_SECRET", cfg.Tradovate.Secret)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Handlers) == 0 {
		return fmt.Errorf("at least one handler is required")
	}
	if slices.Contains(c.Handlers, "tradovate") {
		if c.RedisURL == "" {
			return fmt.Errorf("redis_url is required when the tradovate handler is active")
		}
		if c.Tradovate.Username == "" || c.Tradovate.Password == "" {
			return fmt.Errorf("tradovate credentials are required when the tradovate handler is active")
		}
	}
	if c.Tradovate.Environment == "" {
		c.Tradovate.Environment = "demo"
	}
	if c.Tradovate.Environment != "demo" && c.Tradovate.Environment != "live" {
		return fmt.Errorf("tradovate environment must be %q or %q, got %q", "demo", "live", c.Tradovate.Environment)
	}
	if c.Tradovate.AppVersion == "" {
		c.Tradovate.AppVersion = "1.0"
	}
	return nil
}

// DecodePlugin decodes the named plugin's configuration block into out.
// It reports whether a block was present; a missing block is not an error
// (plugins like print need no configuration).
func (c *Config) DecodePlugin(name string, out any) (bool, error) {
	node, ok := c.Plugins[name]
	if !ok {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return true, fmt.Errorf("decoding %s config: %w", name, err)
	}
	return true, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
