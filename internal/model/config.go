package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds the backend connection settings.
type APIConfig struct {
	// BaseURL is the root URL of the institute REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds each HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is how many times a rate-limited request is retried.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RatePerSec caps outbound requests per second.
	RatePerSec int `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
}

// NotificationsConfig controls polling and display of announcements.
type NotificationsConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	ToastSec        int `mapstructure:"toast_sec" yaml:"toast_sec"`
	RetainLimit     int `mapstructure:"retain_limit" yaml:"retain_limit"`
}

// StorageConfig locates the local state database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// SessionConfig locates the session file written by the login flow.
type SessionConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Session       SessionConfig       `mapstructure:"session" yaml:"session"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// PollInterval returns the configured poll interval as a duration.
func (c NotificationsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// ToastDelay returns how long a toast stays visible.
func (c NotificationsConfig) ToastDelay() time.Duration {
	return time.Duration(c.ToastSec) * time.Second
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// ConfigDir returns ~/.config/noticeboard, falling back to the working
// directory when the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "noticeboard")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/noticeboard/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:8080",
			TimeoutSec: 30,
			MaxRetries: 3,
			RatePerSec: 5,
		},
		Notifications: NotificationsConfig{
			PollIntervalSec: 60,
			ToastSec:        5,
			RetainLimit:     50,
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(dir, "state.db"),
		},
		Session: SessionConfig{
			Path: filepath.Join(dir, "session.json"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout_sec", cfg.API.TimeoutSec)
	v.SetDefault("api.max_retries", cfg.API.MaxRetries)
	v.SetDefault("api.rate_per_sec", cfg.API.RatePerSec)
	v.SetDefault("notifications.poll_interval_sec", cfg.Notifications.PollIntervalSec)
	v.SetDefault("notifications.toast_sec", cfg.Notifications.ToastSec)
	v.SetDefault("notifications.retain_limit", cfg.Notifications.RetainLimit)
	v.SetDefault("storage.db_path", cfg.Storage.DBPath)
	v.SetDefault("session.path", cfg.Session.Path)
	v.SetDefault("log.level", cfg.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return cfg, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Non-positive values would stall the poller or drop every item.
	if cfg.Notifications.PollIntervalSec <= 0 {
		cfg.Notifications.PollIntervalSec = 60
	}
	if cfg.Notifications.ToastSec <= 0 {
		cfg.Notifications.ToastSec = 5
	}
	if cfg.Notifications.RetainLimit <= 0 {
		cfg.Notifications.RetainLimit = 50
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("notifications", cfg.Notifications)
	v.Set("storage", cfg.Storage)
	v.Set("session", cfg.Session)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
