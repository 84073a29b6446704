package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendFilestore, cfg.Storage.Backend)
	assert.Equal(t, ".sigreg/registry.json", cfg.Storage.Path)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Cache.Enabled)

	window, err := cfg.Cache.LifeWindowDuration()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, window)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[storage]
backend = "Redis"

[storage.redis]
addr = "redis.internal:6379"
db = 2

[log]
level = "debug"
file = "/var/log/sigreg.log"

[cache]
life_window = "1h"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 2, cfg.Storage.Redis.DB)
	assert.Equal(t, "sigreg:", cfg.Storage.Redis.KeyPrefix, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/sigreg.log", cfg.Log.File)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	window, err := cfg.Cache.LifeWindowDuration()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, window)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown backend": `[storage]
backend = "postgres"`,
		"unknown key": `[storage]
engine = "badger"`,
		"bad level": `[log]
level = "trace"`,
		"bad duration": `[cache]
life_window = "soon"`,
		"syntax": `[storage`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvPath, "")
	assert.Equal(t, DefaultPath, ResolvePath(""))

	t.Setenv(EnvPath, "/etc/sigreg.toml")
	assert.Equal(t, "/etc/sigreg.toml", ResolvePath(""))
	assert.Equal(t, "custom.toml", ResolvePath("custom.toml"))
}
