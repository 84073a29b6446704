// Package config loads sigreg settings from a TOML file layered over
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// EnvPath overrides the config file location.
	EnvPath     = "SIGREG_CONFIG"
	DefaultPath = ".sigreg/config.toml"
)

const (
	BackendMemory    = "memory"
	BackendFilestore = "filestore"
	BackendBadger    = "badger"
	BackendRedis     = "redis"
)

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Cache   CacheConfig   `toml:"cache"`
}

type StorageConfig struct {
	Backend    string      `toml:"backend"`
	Path       string      `toml:"path"`
	BadgerDir  string      `toml:"badger_dir"`
	SyncWrites bool        `toml:"sync_writes"`
	Redis      RedisConfig `toml:"redis"`
}

type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
	PoolSize  int    `toml:"pool_size"`
}

type ServerConfig struct {
	Addr           string `toml:"addr"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
	ReadTimeout    string `toml:"read_timeout"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type CacheConfig struct {
	Enabled    bool   `toml:"enabled"`
	LifeWindow string `toml:"life_window"`
}

func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:   BackendFilestore,
			Path:      ".sigreg/registry.json",
			BadgerDir: ".sigreg/badger",
			Redis: RedisConfig{
				Addr:      "127.0.0.1:6379",
				KeyPrefix: "sigreg:",
				PoolSize:  10,
			},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 8 << 20,
			ReadTimeout:    "15s",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Cache: CacheConfig{
			Enabled:    true,
			LifeWindow: "10m",
		},
	}
}

// ResolvePath picks the explicit path, then $SIGREG_CONFIG, then DefaultPath.
func ResolvePath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p
	}
	return DefaultPath
}

// Load decodes the file at path over Default. A missing file yields the
// defaults; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = Default()
			return cfg, cfg.Validate()
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFilestore:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the filestore backend"))
		}
	case BackendBadger:
		if c.Storage.BadgerDir == "" {
			errs = append(errs, errors.New("storage.badger_dir is required for the badger backend"))
		}
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of memory, filestore, badger, redis", c.Storage.Backend))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	if _, err := c.Server.ReadTimeoutDuration(); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.Enabled {
		if _, err := c.Cache.LifeWindowDuration(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c ServerConfig) ReadTimeoutDuration() (time.Duration, error) {
	return parsePositiveDuration("server.read_timeout", c.ReadTimeout)
}

func (c CacheConfig) LifeWindowDuration() (time.Duration, error) {
	return parsePositiveDuration("cache.life_window", c.LifeWindow)
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
