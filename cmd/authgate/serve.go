package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/authgate/pkg/config"
	"github.com/rhuss/authgate/pkg/debug"
	"github.com/rhuss/authgate/pkg/server"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(debug.Options{
		Categories: cfg.Log.Debug,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
	})

	backends, err := server.OpenBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			slog.Warn("closing backends", "error", err)
		}
	}()

	srv, err := server.New(cfg, server.Options{
		Deps:   backends.Deps(),
		Checks: backends.Checks(),
	})
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	slog.Info("authgate starting", "version", version, "port", cfg.Server.Port)
	return srv.Run(ctx)
}
