package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Library Library `mapstructure:"library"`
	Cache   Cache   `mapstructure:"cache"`
	Fetch   Fetch   `mapstructure:"fetch"`
	Geocode Geocode `mapstructure:"geocode"`
	Logging Logging `mapstructure:"logging"`
}

// Library holds asset source configuration
type Library struct {
	Path string `mapstructure:"path"` // Root of the media library

	// InitialWindowMonths bounds the first enumeration to recent assets;
	// 0 disables the bound.
	InitialWindowMonths int `mapstructure:"initial_window_months"`

	// AllowDelete gates permanent deletion against the source.
	AllowDelete bool `mapstructure:"allow_delete"`
}

// Cache holds decoded-artifact cache configuration
type Cache struct {
	MaxEntries int `mapstructure:"max_entries"`
}

// Fetch holds pipeline timeout/retry configuration
type Fetch struct {
	ImageTimeout time.Duration `mapstructure:"image_timeout"`
	ThumbTimeout time.Duration `mapstructure:"thumb_timeout"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// Geocode holds reverse-geocoding rate limit configuration
type Geocode struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// Logging holds logging configuration
type Logging struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Library: Library{
			Path:                "",
			InitialWindowMonths: 12,
			AllowDelete:         false,
		},
		Cache: Cache{
			MaxEntries: 100,
		},
		Fetch: Fetch{
			ImageTimeout: 20 * time.Second,
			ThumbTimeout: 3 * time.Second,
			Retries:      3,
			RetryBackoff: 500 * time.Millisecond,
		},
		Geocode: Geocode{
			MinInterval: 200 * time.Millisecond,
		},
		Logging: Logging{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "sift", "sift.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "sift", "sift.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "sift")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "sift")
	}
}

// DefaultStatePath returns the default directory for durable engine state
func DefaultStatePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "sift", "state")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "sift", "state")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("SIFT")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveLibraryPath persists the configured library root (first-run setup).
func SaveLibraryPath(path string) error {
	viper.Set("library.path", path)

	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if a library path is set
func (c *Config) IsConfigured() bool {
	return c.Library.Path != ""
}
