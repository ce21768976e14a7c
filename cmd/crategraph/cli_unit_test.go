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
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crategraph/crategraph/services/modgraph/ir"
	"github.com/crategraph/crategraph/services/modgraph/tree"
)

func writeParseResult(t *testing.T, dir, name, filePath, moduleID string) {
	t.Helper()
	content := `{
		"file_path": "` + filePath + `",
		"modules": [{
			"id": "` + moduleID + `",
			"name": "crate",
			"path": ["crate"],
			"kind": "file_based",
			"file_path": "` + filePath + `"
		}]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadParseResults(t *testing.T) {
	dir := t.TempDir()
	writeParseResult(t, dir, "b.json", "/proj/src/b.rs", "mod-b")
	writeParseResult(t, dir, "a.json", "/proj/src/a.rs", "mod-a")

	results, err := loadParseResults(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Sorted by file name, not discovery order.
	assert.Equal(t, "/proj/src/a.rs", results[0].FilePath)
	assert.Equal(t, "/proj/src/b.rs", results[1].FilePath)
}

func TestLoadParseResults_EmptyDir(t *testing.T) {
	_, err := loadParseResults(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parse results")
}

func TestLoadParseResults_BadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))

	_, err := loadParseResults(context.Background(), dir)
	require.Error(t, err)
}

func TestLoadParseResults_SampleCrate(t *testing.T) {
	ctx := context.Background()
	files, err := loadParseResults(ctx, filepath.Join("..", "..", "test", "fixtures", "sample-crate"))
	require.NoError(t, err)
	require.Len(t, files, 3)

	result, err := tree.Build(ctx, files,
		tree.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	stats := result.Tree.Stats()
	assert.Equal(t, "sample", stats.CrateName)
	assert.Equal(t, 1, stats.ReExportIndexSize)

	// The #[path] declaration links to the relocated definition file.
	id, ok := result.Tree.ResolvePath([]string{"crate", "generated"})
	require.True(t, ok)
	assert.Equal(t, ir.NodeID("file-generated"), id)
}

func TestServeUntilSignal_DrainsOnSignal(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	quit := make(chan os.Signal, 1)

	done := make(chan error, 1)
	go func() { done <- serveUntilSignal(srv, quit) }()
	quit <- syscall.SIGTERM

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after the signal")
	}
}

func TestServeUntilSignal_ReportsListenFailure(t *testing.T) {
	srv := &http.Server{Addr: "256.0.0.1:0", Handler: http.NewServeMux()}
	err := serveUntilSignal(srv, make(chan os.Signal))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server stopped")
}

func TestSetupLogging_RejectsBadLevel(t *testing.T) {
	old := logLevel
	defer func() { logLevel = old }()

	logLevel = "verbose"
	require.Error(t, setupLogging())

	logLevel = "debug"
	require.NoError(t, setupLogging())
}
