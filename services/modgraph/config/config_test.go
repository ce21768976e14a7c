// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), testLogger())
		require.NoError(t, err)
		assert.Equal(t, ":8089", cfg.Server.Listen)
		assert.Empty(t, cfg.Dependencies)
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crategraph.yaml")
		body := `
crate_name: sample
dependencies:
  - serde
  - tokio
max_reexport_depth: 16
storage:
  dir: /tmp/crategraph-test
`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		cfg, err := Load(path, testLogger())
		require.NoError(t, err)
		assert.Equal(t, "sample", cfg.CrateName)
		assert.Equal(t, []string{"serde", "tokio"}, cfg.Dependencies)
		assert.Equal(t, 16, cfg.MaxReExportDepth)
		assert.Equal(t, "/tmp/crategraph-test", cfg.Storage.Dir)
		// Unset values keep defaults.
		assert.Equal(t, ":8089", cfg.Server.Listen)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("dependencies: {not: [valid"), 0o644))
		_, err := Load(path, testLogger())
		assert.Error(t, err)
	})

	t.Run("negative depth rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "neg.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_ancestor_depth: -1"), 0o644))
		_, err := Load(path, testLogger())
		assert.Error(t, err)
	})
}
