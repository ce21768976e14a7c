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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crategraph/crategraph/services/modgraph/ir"
	"github.com/crategraph/crategraph/services/modgraph/storage/badgerstore"
	"github.com/crategraph/crategraph/services/modgraph/tree"
)

// saveSnapshot and snapshotLabel hold flag values for the resolve command.
var (
	saveSnapshot  bool
	snapshotLabel string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <parse-output-dir>",
	Short: "Build a module tree from per-file parse results",
	Long: `Reads every *.json parse result under the given directory, builds the
module tree (declaration linking, #[path] relocation, re-export resolution,
pruning), and prints the resulting stats. With --save the frozen tree is
persisted as a snapshot in the configured storage directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolveCommand,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print stats for the latest stored snapshot",
	Args:  cobra.NoArgs,
	RunE:  runStatsCommand,
}

// crateFlag selects the crate for snapshot-backed commands.
var crateFlag string

func init() {
	resolveCmd.Flags().BoolVar(&saveSnapshot, "save", false,
		"persist the resolved tree as a snapshot")
	resolveCmd.Flags().StringVar(&snapshotLabel, "label", "",
		"label stored with the snapshot")
	statsCmd.Flags().StringVar(&crateFlag, "crate", "",
		"crate name (default: configured crate_name)")
}

func runResolveCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := slog.Default().With(slog.String("run_id", runID))
	ctx := cmd.Context()

	files, err := loadParseResults(ctx, args[0])
	if err != nil {
		return err
	}
	log.Info("loaded parse results",
		slog.String("dir", args[0]), slog.Int("files", len(files)))

	opts := []tree.Option{
		tree.WithLogger(log),
		tree.WithDependencyNames(cfg.Dependencies),
	}
	if cfg.CrateName != "" {
		opts = append(opts, tree.WithCrateName(cfg.CrateName))
	}
	if cfg.MaxAncestorDepth > 0 {
		opts = append(opts, tree.WithMaxAncestorDepth(cfg.MaxAncestorDepth))
	}
	if cfg.MaxReExportDepth > 0 {
		opts = append(opts, tree.WithMaxReExportDepth(cfg.MaxReExportDepth))
	}

	result, err := tree.Build(ctx, files, opts...)
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}
	for _, u := range result.Unlinked {
		log.Warn("file module has no declaration",
			slog.String("id", string(u.ModuleID)),
			slog.String("path", ir.JoinPath(u.Path)))
	}
	if !result.Pruning.Empty() {
		log.Info("pruned unreachable file modules",
			slog.Int("modules", len(result.Pruning.ModuleIDs)),
			slog.Int("items", len(result.Pruning.ItemIDs)))
	}

	if saveSnapshot {
		if cfg.Storage.Dir == "" {
			return fmt.Errorf("--save requires storage.dir in the config")
		}
		store, err := badgerstore.Open(cfg.Storage.Dir, log)
		if err != nil {
			return err
		}
		defer store.Close()
		meta, err := store.Save(ctx, result.Tree, snapshotLabel)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		if !result.Pruning.Empty() {
			if err := store.ApplyPruning(ctx, meta.CrateName, result.Pruning); err != nil {
				return fmt.Errorf("apply pruning: %w", err)
			}
		}
		log.Info("saved snapshot",
			slog.String("snapshot_id", meta.SnapshotID),
			slog.String("tree_hash", meta.TreeHash))
	}

	return printJSON(result.Tree.Stats())
}

func runStatsCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Dir == "" {
		return fmt.Errorf("stats requires storage.dir in the config")
	}
	crate := crateFlag
	if crate == "" {
		crate = cfg.CrateName
	}
	if crate == "" {
		return fmt.Errorf("no crate selected; pass --crate or set crate_name")
	}

	store, err := badgerstore.Open(cfg.Storage.Dir, slog.Default())
	if err != nil {
		return err
	}
	defer store.Close()

	t, meta, err := store.LoadLatest(cmd.Context(), crate)
	if err != nil {
		return fmt.Errorf("load latest snapshot for %s: %w", crate, err)
	}
	slog.Info("loaded snapshot",
		slog.String("snapshot_id", meta.SnapshotID),
		slog.Int64("created_at_ms", meta.CreatedAtMilli))
	return printJSON(t.Stats())
}

// loadParseResults reads every *.json file under dir concurrently. Order of
// the returned slice follows the sorted file names so runs are reproducible.
func loadParseResults(ctx context.Context, dir string) ([]*ir.FileResult, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no parse results (*.json) under %s", dir)
	}
	sort.Strings(matches)

	// Each goroutine writes its own slot, so no lock is needed.
	results := make([]*ir.FileResult, len(matches))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range matches {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fr, err := ir.LoadFileResult(path)
			if err != nil {
				return err
			}
			results[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
