// Package config loads the arbor server configuration from file,
// environment and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/arborhq/arbor/internal/logger"
	"github.com/arborhq/arbor/pkg/directory"
	"github.com/arborhq/arbor/pkg/folder"
	"github.com/arborhq/arbor/pkg/store/folder/postgres"
)

// Config is the arbor configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (ARBOR_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior.
	Logging logger.Config `mapstructure:"logging"`

	// Folder carries the folder core behavior switches.
	Folder FolderConfig `mapstructure:"folder"`

	// Store selects and configures the folder backend.
	Store StoreConfig `mapstructure:"store"`

	// Directory configures the principal directory database.
	Directory directory.Config `mapstructure:"directory"`

	// Metrics contains the Prometheus exposition settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// FolderConfig mirrors the recognized folder core options plus the
// reservation hygiene settings.
type FolderConfig struct {
	EnableFolderCache         bool `mapstructure:"enable_folder_cache"`
	EnableSharedFolderCaching bool `mapstructure:"enable_shared_folder_caching"`
	AllowInternalUserEdit     bool `mapstructure:"allow_internal_user_edit"`

	// ReservationTTL bounds how long a crash-abandoned name reservation
	// survives. Default: 1h.
	ReservationTTL time.Duration `mapstructure:"reservation_ttl" validate:"omitempty,gt=0"`
}

// Core converts the file-level switches into the folder core's config
// struct.
func (c FolderConfig) Core() folder.Config {
	return folder.Config{
		EnableFolderCache:         c.EnableFolderCache,
		EnableSharedFolderCaching: c.EnableSharedFolderCaching,
		AllowInternalUserEdit:     c.AllowInternalUserEdit,
	}
}

// StoreConfig selects the folder backend.
type StoreConfig struct {
	// Backend is one of memory, badger, postgres.
	Backend string `mapstructure:"backend" validate:"required,oneof=memory badger postgres"`

	// BadgerPath is the database directory for the badger backend.
	BadgerPath string `mapstructure:"badger_path"`

	Postgres postgres.Config `mapstructure:"postgres"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ApplyDefaults fills in missing values.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
	if cfg.Folder.ReservationTTL == 0 {
		cfg.Folder.ReservationTTL = folder.DefaultReservationTTL
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.Backend == "badger" && cfg.Store.BadgerPath == "" {
		cfg.Store.BadgerPath = "arbor.db"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9090"
	}
	cfg.Directory.ApplyDefaults()
}

// GetDefaultConfig returns the configuration used when no file exists.
func GetDefaultConfig() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Load loads configuration from file, environment, and defaults. An empty
// configPath uses the default search location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures environment variables and config file search.
// Environment variables use the ARBOR_ prefix, e.g. ARBOR_LOGGING_LEVEL.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("ARBOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func getConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "arbor")
}
