package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skelly-dev/sigreg/internal/api"
)

// RunServe runs the HTTP API until SIGINT or SIGTERM.
func RunServe(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	addr, err := OptionalStringFlag(cmd, "addr")
	if err != nil {
		return err
	}
	if addr == "" {
		addr = e.cfg.Server.Addr
	}
	readTimeout, err := e.cfg.Server.ReadTimeoutDuration()
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.New(e.reg, api.Options{
		Logger:         e.logger,
		Metrics:        e.metrics,
		MaxUploadBytes: e.cfg.Server.MaxUploadBytes,
	})
	e.logger.Info("starting sigreg server",
		zap.String("addr", addr),
		zap.String("backend", e.cfg.Storage.Backend),
	)
	return server.Run(ctx, addr, readTimeout)
}
