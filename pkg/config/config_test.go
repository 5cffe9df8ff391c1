package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborhq/arbor/pkg/folder"
)

func TestDefaults(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, folder.DefaultReservationTTL, cfg.Folder.ReservationTTL)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)

	require.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		var cfg Config
		ApplyDefaults(&cfg)
		return &cfg
	}

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base()
		cfg.Store.Backend = "etcd"
		assert.Error(t, Validate(cfg))
	})

	t.Run("badger requires a path", func(t *testing.T) {
		cfg := base()
		cfg.Store.Backend = "badger"
		cfg.Store.BadgerPath = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("postgres requires connection settings", func(t *testing.T) {
		cfg := base()
		cfg.Store.Backend = "postgres"
		assert.Error(t, Validate(cfg))

		cfg.Store.Postgres.Host = "localhost"
		cfg.Store.Postgres.Database = "arbor"
		cfg.Store.Postgres.User = "arbor"
		assert.NoError(t, Validate(cfg))
	})

	t.Run("metrics need a listen address when enabled", func(t *testing.T) {
		cfg := base()
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("negative reservation ttl", func(t *testing.T) {
		cfg := base()
		cfg.Folder.ReservationTTL = -time.Minute
		assert.Error(t, Validate(cfg))
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.Store.Backend)
	})

	t.Run("reads file values and fills the rest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := []byte(`
logging:
  level: debug
  format: json
store:
  backend: badger
  badger_path: /tmp/arbor-test.db
folder:
  reservation_ttl: 30m
  enable_folder_cache: true
`)
		require.NoError(t, os.WriteFile(path, content, 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.Equal(t, "badger", cfg.Store.Backend)
		assert.Equal(t, "/tmp/arbor-test.db", cfg.Store.BadgerPath)
		assert.Equal(t, 30*time.Minute, cfg.Folder.ReservationTTL)
		assert.True(t, cfg.Folder.EnableFolderCache)

		// Untouched sections keep their defaults.
		assert.Equal(t, ":9090", cfg.Metrics.Listen)
	})

	t.Run("invalid file values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := []byte(`
store:
  backend: etcd
`)
		require.NoError(t, os.WriteFile(path, content, 0o600))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestFolderConfigCore(t *testing.T) {
	fc := FolderConfig{
		EnableFolderCache:         true,
		EnableSharedFolderCaching: true,
		AllowInternalUserEdit:     true,
	}
	core := fc.Core()
	assert.True(t, core.EnableFolderCache)
	assert.True(t, core.EnableSharedFolderCaching)
	assert.True(t, core.AllowInternalUserEdit)
}
