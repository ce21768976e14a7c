// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command crategraph builds and serves resolved Rust module trees.
//
// The resolve command reads per-file parse results (JSON), links module
// declarations to their definitions, applies #[path] relocations, resolves
// re-exports, prunes unreachable file modules, and can persist the frozen
// tree as a snapshot. The serve command exposes a read-only query API over
// the latest snapshot.
//
// Usage:
//
//	crategraph resolve ./parse-output
//	crategraph resolve ./parse-output --save --label nightly
//	crategraph stats --crate mycrate
//	crategraph serve --crate mycrate
//
// Example requests against the server:
//
//	# Health check
//	curl http://localhost:8089/v1/modgraph/health
//
//	# Resolve a canonical path
//	curl 'http://localhost:8089/v1/modgraph/resolve?path=crate::utils::helper'
//
//	# Shortest public path for a node
//	curl 'http://localhost:8089/v1/modgraph/public-path?id=fn-helper'
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crategraph/crategraph/services/modgraph/config"
)

// configPath, logLevel, and logJSON hold the global flag values.
var (
	configPath string
	logLevel   string
	logJSON    bool
)

var rootCmd = &cobra.Command{
	Use:           "crategraph",
	Short:         "Build and query Rust module resolution trees",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to crategraph.yaml (default: $CRATEGRAPH_CONFIG, then ./crategraph.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"emit logs as JSON instead of text")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging installs the process-wide slog handler from the global flags.
func setupLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if logJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, slog.Default())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
