package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds all client configuration. Values come from defaults, then
// an optional YAML file, then DEPPLAN_* environment variables.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Sync    SyncConfig    `yaml:"sync"`
	Log     LogConfig     `yaml:"log"`
	DataDir string        `yaml:"data_dir"`
	Session SessionConfig `yaml:"session"`
}

// APIConfig holds REST backend settings.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

// SyncConfig controls the reconciliation of optimistic board updates.
type SyncConfig struct {
	RetryAttempts  int           `yaml:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SessionConfig holds invitation defaults.
type SessionConfig struct {
	InviteExpiration time.Duration `yaml:"invite_expiration"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "http://localhost:8081/api",
			Timeout:           15 * time.Second,
			RequestsPerSecond: 20,
			Burst:             10,
		},
		Sync: SyncConfig{
			RetryAttempts:  3,
			RetryBaseDelay: 500 * time.Millisecond,
			RetryMaxDelay:  5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			InviteExpiration: 168 * time.Hour,
		},
	}
}

// Load reads the config file at path (or the default location when path
// is empty), then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		err := loadFile(path, cfg)
		if err != nil && (explicit || !errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if cfg.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		cfg.DataDir = dir
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/depplan/config.yaml, or "" when no
// config directory can be determined.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "depplan", "config.yaml")
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.API.BaseURL = getEnv("DEPPLAN_API_URL", c.API.BaseURL)
	c.Log.Level = getEnv("DEPPLAN_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("DEPPLAN_LOG_FORMAT", c.Log.Format)
	c.DataDir = getEnv("DEPPLAN_DATA_DIR", c.DataDir)

	var err error
	if c.API.Timeout, err = getEnvDuration("DEPPLAN_API_TIMEOUT", c.API.Timeout); err != nil {
		return err
	}
	if c.API.RequestsPerSecond, err = getEnvFloat("DEPPLAN_API_RPS", c.API.RequestsPerSecond); err != nil {
		return err
	}
	if c.API.Burst, err = getEnvInt("DEPPLAN_API_BURST", c.API.Burst); err != nil {
		return err
	}
	if c.Sync.RetryAttempts, err = getEnvInt("DEPPLAN_SYNC_RETRY_ATTEMPTS", c.Sync.RetryAttempts); err != nil {
		return err
	}
	if c.Sync.RetryBaseDelay, err = getEnvDuration("DEPPLAN_SYNC_RETRY_BASE_DELAY", c.Sync.RetryBaseDelay); err != nil {
		return err
	}
	if c.Sync.RetryMaxDelay, err = getEnvDuration("DEPPLAN_SYNC_RETRY_MAX_DELAY", c.Sync.RetryMaxDelay); err != nil {
		return err
	}
	return nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api base url %q must be an absolute URL", c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api base url scheme must be http or https, got %q", u.Scheme)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.RequestsPerSecond <= 0 {
		return fmt.Errorf("api requests per second must be positive, got %g", c.API.RequestsPerSecond)
	}
	if c.API.Burst < 1 {
		return fmt.Errorf("api burst must be >= 1, got %d", c.API.Burst)
	}
	if c.Sync.RetryAttempts < 0 {
		return fmt.Errorf("sync retry attempts must be >= 0, got %d", c.Sync.RetryAttempts)
	}
	if c.Sync.RetryBaseDelay <= 0 {
		return fmt.Errorf("sync retry base delay must be positive, got %s", c.Sync.RetryBaseDelay)
	}
	if c.Sync.RetryMaxDelay < c.Sync.RetryBaseDelay {
		return fmt.Errorf("sync retry max delay %s is below base delay %s", c.Sync.RetryMaxDelay, c.Sync.RetryBaseDelay)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	if c.Session.InviteExpiration < time.Hour {
		return fmt.Errorf("invite expiration must be at least 1h, got %s", c.Session.InviteExpiration)
	}
	return nil
}

// defaultDataDir returns the XDG data directory for depplan.
func defaultDataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "depplan"), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}
