// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the optional crategraph.yaml runtime configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when no explicit
// path is given.
const DefaultFileName = "crategraph.yaml"

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "CRATEGRAPH_CONFIG"

// Config is the runtime configuration for resolution and persistence.
//
// Example crategraph.yaml:
//
//	crate_name: my-crate
//	dependencies:
//	  - serde
//	  - tokio
//	max_ancestor_depth: 100
//	max_reexport_depth: 32
//	storage:
//	  dir: /var/lib/crategraph
//	server:
//	  listen: :8089
type Config struct {
	// CrateName overrides the crate name carried in parse results.
	CrateName string `yaml:"crate_name"`

	// Dependencies lists the crate's direct external dependencies. The
	// re-export resolver uses these to classify leading path segments.
	Dependencies []string `yaml:"dependencies"`

	// MaxAncestorDepth bounds upward module walks. Zero keeps the default.
	MaxAncestorDepth int `yaml:"max_ancestor_depth"`

	// MaxReExportDepth bounds re-export chains. Zero keeps the default.
	MaxReExportDepth int `yaml:"max_reexport_depth"`

	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
}

// StorageConfig locates the badger database holding resolved trees.
type StorageConfig struct {
	// Dir is the badger directory. Empty disables persistence.
	Dir string `yaml:"dir"`
}

// ServerConfig configures the read-only query server.
type ServerConfig struct {
	// Listen is the bind address, e.g. ":8089".
	Listen string `yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Listen: ":8089"},
	}
}

// Load reads configuration from the given path. An empty path falls back to
// $CRATEGRAPH_CONFIG and then ./crategraph.yaml. A missing file is not an
// error: defaults apply, matching the usual no-config deployment.
func Load(path string, log *slog.Logger) (*Config, error) {
	if log == nil {
		log = slog.Default()
	}
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultFileName
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("no config file; using defaults", slog.String("path", path))
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	log.Info("loaded config", slog.String("path", filepath.Clean(path)))
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.MaxAncestorDepth < 0 {
		return fmt.Errorf("max_ancestor_depth must not be negative")
	}
	if c.MaxReExportDepth < 0 {
		return fmt.Errorf("max_reexport_depth must not be negative")
	}
	return nil
}
