package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/allegro/bigcache/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skelly-dev/sigreg/internal/config"
	"github.com/skelly-dev/sigreg/internal/logging"
	"github.com/skelly-dev/sigreg/internal/observability"
	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/store/badger"
	"github.com/skelly-dev/sigreg/internal/store/filestore"
	"github.com/skelly-dev/sigreg/internal/store/memory"
	"github.com/skelly-dev/sigreg/internal/store/redisstore"
)

// env is everything a command needs to talk to the configured registry.
type env struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	store   registry.Store
	cache   *bigcache.BigCache
	reg     *registry.Registry
	out     io.Writer
	asJSON  bool
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := OptionalStringFlag(cmd, "config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(config.ResolvePath(path))
}

// openEnv loads config, builds the logger and opens the storage backend.
// Callers must Close the returned env.
func openEnv(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json")
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	e := &env{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		store:   store,
		out:     cmd.OutOrStdout(),
		asJSON:  asJSON,
	}
	opts := []registry.Option{registry.WithLogger(logger), registry.WithMetrics(e.metrics)}
	if cfg.Cache.Enabled {
		window, err := cfg.Cache.LifeWindowDuration()
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		cache, err := registry.NewCache(ctx, window)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.cache = cache
		opts = append(opts, registry.WithCache(cache))
	}
	e.reg = registry.New(store, opts...)
	return e, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (registry.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendFilestore:
		return filestore.Open(cfg.Path)
	case config.BackendBadger:
		return badger.Open(badger.Options{
			Path:       cfg.BadgerDir,
			SyncWrites: cfg.SyncWrites,
			Logger:     logger,
		})
	case config.BackendRedis:
		return redisstore.Open(ctx, redisstore.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			PoolSize:  cfg.Redis.PoolSize,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func (e *env) Close() error {
	var errs []error
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	// Sync on a terminal stderr returns EINVAL on some platforms.
	_ = e.logger.Sync()
	return errors.Join(errs...)
}
