package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpserver "github.com/lodestar-quant/lodestar/internal/interfaces/http"
)

func runMonitor(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")

	ctx := context.Background()
	app, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer app.Close()

	serverCfg := app.config.Monitor
	if host != "" {
		serverCfg.Host = host
	}
	if port != 0 {
		serverCfg.Port = port
	}

	opts := httpserver.Options{
		Metrics: app.metrics,
		Runner:  app.orch,
		Checks:  map[string]httpserver.HealthCheck{},
	}
	if app.store != nil {
		opts.Repo = app.store.Repository()
		opts.Checks["database"] = app.store.Health
	}
	if app.cache != nil {
		opts.Checks["cache"] = app.cache.Ping
	}

	server, err := httpserver.NewServer(serverCfg, opts)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("health", fmt.Sprintf("http://%s/health", server.Address())).
			Str("metrics", fmt.Sprintf("http://%s/metrics", server.Address())).
			Str("runs", fmt.Sprintf("http://%s/v1/runs", server.Address())).
			Str("stream", fmt.Sprintf("ws://%s/ws/progress", server.Address())).
			Msg("Monitor endpoints available")

		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}
	log.Info().Msg("Monitor server stopped")
	return nil
}
