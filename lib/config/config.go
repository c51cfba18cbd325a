// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfig names the environment variable read by Load.
const EnvConfig = "AGENTSYNC_CONFIG"

// ErrNoConfig is returned by Load when AGENTSYNC_CONFIG is unset.
var ErrNoConfig = errors.New("AGENTSYNC_CONFIG environment variable not set; " +
	"set it to the path of your agentsync.yaml config file, or use --config flag")

// Config is the master configuration for an agentsync host.
type Config struct {
	// Root is the base directory for local state. Other paths default
	// to locations under it.
	Root string `yaml:"root"`

	Cloud        CloudConfig        `yaml:"cloud"`
	OfflineSync  OfflineSyncConfig  `yaml:"offline_sync"`
	Mappings     MappingsConfig     `yaml:"mappings"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// CloudConfig configures the GraphQL endpoint.
type CloudConfig struct {
	// Endpoint is the GraphQL URL. Required for anything that talks to
	// the cloud.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds one request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// TokenFile holds the bearer token. AGENTSYNC_TOKEN takes
	// precedence when set.
	TokenFile string `yaml:"token_file"`
}

// OfflineSyncConfig configures the offline queue and retry loop.
type OfflineSyncConfig struct {
	// Enabled turns retryable failures into queued writes.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// QueuePath is the SQLite database file.
	QueuePath string `yaml:"queue_path"`

	// Default: 300s
	RetryInterval time.Duration `yaml:"retry_interval"`

	// Default: 10s
	DrainTaskTimeout time.Duration `yaml:"drain_task_timeout"`

	// MaxWorkers bounds concurrent async syncs.
	// Default: 5
	MaxWorkers int `yaml:"max_workers"`

	// MaxPending bounds pending tasks. Zero means unbounded.
	// Default: 10000
	MaxPending int `yaml:"max_pending"`
}

// MappingsConfig locates mapping document overrides.
type MappingsConfig struct {
	// Dir holds <kind>.jsonc files replacing the built-in documents.
	// Empty means built-ins only.
	Dir string `yaml:"dir"`
}

// SubscriptionConfig configures the realtime subscription client.
type SubscriptionConfig struct {
	// Endpoint is the WebSocket URL. Empty derives it from
	// cloud.endpoint.
	Endpoint string `yaml:"endpoint"`

	// Default: 50
	MaxRetries int `yaml:"max_retries"`

	// Default: 1s
	BaseBackoff time.Duration `yaml:"base_backoff"`

	// Default: 60s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// KeepAliveWarn is the keep-alive gap that logs a warning.
	// Default: 90s
	KeepAliveWarn time.Duration `yaml:"keepalive_warn"`

	// QueueCapacity bounds each consumer queue.
	// Default: 256
	QueueCapacity int `yaml:"queue_capacity"`
}

// LoggingConfig configures the host's slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// SlogLevel parses Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address serving /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration. Path fields still hold
// unexpanded ${AGENTSYNC_ROOT} references; LoadFile and Expand resolve
// them.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Root: filepath.Join(homeDir, ".agentsync"),
		Cloud: CloudConfig{
			Timeout:   30 * time.Second,
			TokenFile: "${AGENTSYNC_ROOT}/token",
		},
		OfflineSync: OfflineSyncConfig{
			QueuePath:        "${AGENTSYNC_ROOT}/queue.db",
			RetryInterval:    300 * time.Second,
			DrainTaskTimeout: 10 * time.Second,
			MaxWorkers:       5,
			MaxPending:       10000,
		},
		Subscription: SubscriptionConfig{
			MaxRetries:    50,
			BaseBackoff:   time.Second,
			MaxBackoff:    60 * time.Second,
			KeepAliveWarn: 90 * time.Second,
			QueueCapacity: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from the file named by AGENTSYNC_CONFIG.
// It returns ErrNoConfig when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvConfig)
	if configPath == "" {
		return nil, ErrNoConfig
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path on top of
// Default and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.Expand()
	return cfg, nil
}

// loadFile merges a single configuration file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// Expand expands ${VAR} and ${VAR:-default} patterns in path fields.
func (c *Config) Expand() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Root = expandVars(c.Root, vars)
	vars["AGENTSYNC_ROOT"] = c.Root

	c.Cloud.TokenFile = expandVars(c.Cloud.TokenFile, vars)
	c.OfflineSync.QueuePath = expandVars(c.OfflineSync.QueuePath, vars)
	c.Mappings.Dir = expandVars(c.Mappings.Dir, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Cloud.Endpoint != "" {
		if err := checkURL(c.Cloud.Endpoint, "http", "https"); err != nil {
			errs = append(errs, fmt.Errorf("cloud.endpoint: %w", err))
		}
	}
	if c.Cloud.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("cloud.timeout must be positive"))
	}

	if c.OfflineSync.Enabled && c.OfflineSync.QueuePath == "" {
		errs = append(errs, fmt.Errorf("offline_sync.queue_path is required when offline sync is enabled"))
	}
	if c.OfflineSync.RetryInterval <= 0 {
		errs = append(errs, fmt.Errorf("offline_sync.retry_interval must be positive"))
	}
	if c.OfflineSync.DrainTaskTimeout <= 0 {
		errs = append(errs, fmt.Errorf("offline_sync.drain_task_timeout must be positive"))
	}
	if c.OfflineSync.MaxWorkers <= 0 {
		errs = append(errs, fmt.Errorf("offline_sync.max_workers must be positive"))
	}
	if c.OfflineSync.MaxPending < 0 {
		errs = append(errs, fmt.Errorf("offline_sync.max_pending must not be negative"))
	}

	if c.Subscription.Endpoint != "" {
		if err := checkURL(c.Subscription.Endpoint, "ws", "wss"); err != nil {
			errs = append(errs, fmt.Errorf("subscription.endpoint: %w", err))
		}
	}
	if c.Subscription.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("subscription.max_retries must be positive"))
	}
	if c.Subscription.BaseBackoff <= 0 {
		errs = append(errs, fmt.Errorf("subscription.base_backoff must be positive"))
	}
	if c.Subscription.MaxBackoff < c.Subscription.BaseBackoff {
		errs = append(errs, fmt.Errorf("subscription.max_backoff must be at least base_backoff"))
	}
	if c.Subscription.KeepAliveWarn <= 0 {
		errs = append(errs, fmt.Errorf("subscription.keepalive_warn must be positive"))
	}
	if c.Subscription.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("subscription.queue_capacity must be positive"))
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	formats := []string{"json", "text"}
	if !slices.Contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	return errors.Join(errs...)
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !slices.Contains(schemes, u.Scheme) || u.Host == "" {
		return fmt.Errorf("%q is not an absolute %v URL", raw, schemes)
	}
	return nil
}

// EnsurePaths creates the directories holding the token and queue
// files.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Root, filepath.Dir(c.OfflineSync.QueuePath)} {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("config: creating %s: %w", path, err)
		}
	}
	return nil
}
