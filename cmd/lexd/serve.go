package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/lexd/internal/http"
	"github.com/fyrsmithlabs/lexd/internal/ingest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lexd HTTP server",
	Long: `Starts the HTTP API for ingestion and retrieval.

Endpoints:
  POST /api/v1/query   run a retrieval query
  POST /api/v1/ingest  ingest one extracted document
  GET  /api/v1/status  collection and dependency status
  GET  /health         liveness probe
  GET  /metrics        Prometheus metrics

With ingest.watch enabled the server also watches the configured input
directory and ingests extractor output as it lands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	zl := a.zap()

	srv, err := httpserver.NewServer(a.engine, a.pipeline, a.store, zl, &httpserver.Config{
		Host:       a.cfg.Server.Host,
		Port:       a.cfg.Server.Port,
		Collection: a.cfg.Store.Collection,
		APIKey:     a.cfg.Server.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	var watcher *ingest.Watcher
	if a.cfg.Ingest.Watch {
		watcher, err = ingest.NewWatcher(a.pipeline, a.cfg.Ingest.InputDir, zl)
		if err != nil {
			return fmt.Errorf("initializing input watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("watching %s: %w", a.cfg.Ingest.InputDir, err)
		}
		defer watcher.Stop()
		zl.Info("watching input directory", zap.String("dir", a.cfg.Ingest.InputDir))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-sigCh:
		zl.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		zl.Info("context cancelled, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
