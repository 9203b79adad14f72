package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/edgerunner0x01/violette/internal/errors"
	"github.com/edgerunner0x01/violette/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultWorkers, cfg.Scanning.Workers)
	assert.Equal(t, DefaultHostTimeout, cfg.Scanning.HostTimeout)
	assert.Equal(t, DefaultFreshWindow, cfg.Scanning.FreshWindow)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, DefaultListenAddress, cfg.Server.Listen)
	assert.Equal(t, logging.LevelInfo, cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
scanning:
  workers: 25
database:
  path: /tmp/results.db
logging:
  level: debug
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 25, cfg.Scanning.Workers)
		assert.Equal(t, DefaultHostTimeout, cfg.Scanning.HostTimeout)
		assert.Equal(t, "/tmp/results.db", cfg.Database.Path)
		assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
		// Untouched sections keep their defaults.
		assert.Equal(t, DefaultListenAddress, cfg.Server.Listen)
	})

	t.Run("missing file fails with a config error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Equal(t, verrors.CodeConfiguration, verrors.GetCode(err))
	})

	t.Run("malformed yaml fails with a config error", func(t *testing.T) {
		path := writeConfig(t, "scanning: [not a map")
		_, err := Load(path)
		require.Error(t, err)
		assert.Equal(t, verrors.CodeConfiguration, verrors.GetCode(err))
	})

	t.Run("invalid values fail validation", func(t *testing.T) {
		path := writeConfig(t, `
scanning:
  workers: 0
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Equal(t, verrors.CodeValidation, verrors.GetCode(err))
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects too many workers", func(t *testing.T) {
		cfg := Default()
		cfg.Scanning.Workers = 10000
		err := cfg.Validate()
		require.Error(t, err)
		assert.Equal(t, verrors.CodeValidation, verrors.GetCode(err))
	})

	t.Run("rejects an empty database path", func(t *testing.T) {
		cfg := Default()
		cfg.Database.Path = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("rejects a sub-second host timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Scanning.HostTimeout = 50 * time.Millisecond
		require.Error(t, cfg.Validate())
	})
}
