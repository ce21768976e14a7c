// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crategraph/crategraph/services/modgraph/server"
	"github.com/crategraph/crategraph/services/modgraph/storage/badgerstore"
	"github.com/crategraph/crategraph/services/modgraph/telemetry"
)

// serveCrate and traceStdout hold flag values for the serve command.
var (
	serveCrate  string
	traceStdout bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest snapshot over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServeCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveCrate, "crate", "",
		"crate name (default: configured crate_name)")
	serveCmd.Flags().BoolVar(&traceStdout, "trace-stdout", false,
		"export spans to stdout")
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Dir == "" {
		return fmt.Errorf("serve requires storage.dir in the config")
	}
	crate := serveCrate
	if crate == "" {
		crate = cfg.CrateName
	}
	if crate == "" {
		return fmt.Errorf("no crate selected; pass --crate or set crate_name")
	}

	ctx := cmd.Context()
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:   "crategraph",
		TraceToStdout: traceStdout,
		Logger:        slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	store, err := badgerstore.Open(cfg.Storage.Dir, slog.Default())
	if err != nil {
		return err
	}

	t, meta, err := store.LoadLatest(ctx, crate)
	if err != nil {
		store.Close()
		return fmt.Errorf("load latest snapshot for %s: %w", crate, err)
	}
	slog.Info("serving snapshot",
		slog.String("crate", crate),
		slog.String("snapshot_id", meta.SnapshotID),
		slog.Int("modules", meta.ModuleCount))

	handlers, err := server.NewHandlers(t, slog.Default())
	if err != nil {
		store.Close()
		return err
	}
	router := server.NewRouter(handlers, "crategraph")
	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("starting crategraph server", slog.String("address", cfg.Server.Listen))
	serveErr := serveUntilSignal(srv, quit)
	if err := store.Close(); err != nil {
		slog.Warn("failed to close snapshot store", slog.String("error", err.Error()))
	}
	return serveErr
}

// serveUntilSignal runs the server until it fails or a signal arrives, then
// drains in-flight requests before returning.
func serveUntilSignal(srv *http.Server, quit <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-quit:
		slog.Info("shutting down crategraph server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("draining server: %w", err)
		}
		return nil
	}
}
