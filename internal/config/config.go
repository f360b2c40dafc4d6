// Package config handles pjatkbot-go configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/pjatkbot/config.yaml, /config/config.yaml,
// /etc/pjatkbot/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pjatkbot", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/pjatkbot/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all pjatkbot-go configuration.
type Config struct {
	Portal   PortalConfig   `yaml:"portal"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Parser   ParserConfig   `yaml:"parser"`
	Notifier NotifierConfig `yaml:"notifier"`
	Sender   SenderConfig   `yaml:"sender"`
	LogLevel string         `yaml:"log_level"`
}

// PortalConfig points at the remote WebForms schedule portal.
type PortalConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"` // browser UA the portal expects; see internal/portal
}

// MongoConfig is the persistent store connection.
type MongoConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ParserConfig drives ParserManager's tick interval and how far ahead it
// is willing to crawl in forward mode.
type ParserConfig struct {
	Interval  time.Duration `yaml:"interval"`
	DaysAhead int           `yaml:"days_ahead"`
}

// NotifierConfig drives NotificationPlanner's periodic full resync.
type NotifierConfig struct {
	ResyncInterval        time.Duration `yaml:"resync_interval"`
	ResyncRateLimitPerMin int           `yaml:"resync_rate_limit_per_minute"`
}

// SenderConfig drives the outbound sender's dispatch rate and the
// Dispatcher's poll interval for due PendingSends.
type SenderConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	RateLimitPerMin int           `yaml:"rate_limit_per_minute"`
	MaxSendAttempts int           `yaml:"max_send_attempts"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result. After Load returns successfully, all fields are usable
// without additional nil/zero checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${MONGO_URI}). Convenience for
	// container deployments; the recommended approach is still to put
	// secrets directly in the config file mounted from a secret store.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Portal.BaseURL == "" {
		c.Portal.BaseURL = "https://planzajec.pjwstk.edu.pl/PlanOgolny3.aspx"
	}
	if c.Portal.UserAgent == "" {
		c.Portal.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "pjatkbot"
	}
	if c.Mongo.Timeout == 0 {
		c.Mongo.Timeout = 10 * time.Second
	}
	if c.Parser.Interval == 0 {
		c.Parser.Interval = 5 * time.Minute
	}
	if c.Parser.DaysAhead == 0 {
		c.Parser.DaysAhead = 7
	}
	if c.Notifier.ResyncInterval == 0 {
		c.Notifier.ResyncInterval = 1 * time.Hour
	}
	if c.Notifier.ResyncRateLimitPerMin == 0 {
		c.Notifier.ResyncRateLimitPerMin = 600
	}
	if c.Sender.PollInterval == 0 {
		c.Sender.PollInterval = 15 * time.Second
	}
	if c.Sender.RateLimitPerMin == 0 {
		c.Sender.RateLimitPerMin = 20
	}
	if c.Sender.MaxSendAttempts == 0 {
		c.Sender.MaxSendAttempts = 10
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Parser.DaysAhead < 1 {
		return fmt.Errorf("parser.days_ahead must be >= 1, got %d", c.Parser.DaysAhead)
	}
	if c.Sender.MaxSendAttempts < 1 {
		return fmt.Errorf("sender.max_send_attempts must be >= 1, got %d", c.Sender.MaxSendAttempts)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}
