// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

const tracerName = "crategraph/modgraph/tree"

// BuildResult is the outcome of a full pipeline run.
type BuildResult struct {
	// Tree is the frozen, resolved module tree.
	Tree *ModuleTree

	// Pruning lists everything removed by the final pruning stage.
	Pruning *PruningResult

	// Unlinked lists file modules that had no declaration at link time and
	// were subsequently pruned. Informational.
	Unlinked []UnlinkedModule
}

// Build runs the full resolution pipeline over one crate's parse results.
//
// Description:
//
//	Locates the crate root, adds every module, item, and intra-file edge,
//	then runs the stages in their required order: declaration linking,
//	#[path] attribute resolution and index rewriting, re-export
//	resolution, pruning, freeze. Unlinked modules at link time are logged
//	and carried in the result; every other stage error aborts the build.
//
// Inputs:
//   - ctx: cancellation is checked between stages.
//   - files: one crate's parse results, any order.
//   - opts: tree options (logger, dependency names, depth bounds).
//
// Outputs:
//   - *BuildResult: frozen tree plus pruning report.
//   - error: ErrRootModuleNotFound when no file defines the crate root;
//     ErrBuildCancelled on context cancellation; stage errors otherwise.
//
// Thread Safety: NOT safe for concurrent use with the same files slice.
func Build(ctx context.Context, files []*ir.FileResult, opts ...Option) (*BuildResult, error) {
	start := time.Now()
	result, err := build(ctx, files, opts...)
	status := "ok"
	if err != nil {
		status = "error"
	}
	buildsTotal.WithLabelValues(status).Inc()
	if err == nil {
		result.Tree.log.Info("module tree build complete",
			slog.String("crate", result.Tree.CrateName()),
			slog.Int("modules", result.Tree.ModuleCount()),
			slog.Int("edges", result.Tree.EdgeCount()),
			slog.Duration("elapsed", time.Since(start)))
	}
	return result, err
}

func build(ctx context.Context, files []*ir.FileResult, opts ...Option) (*BuildResult, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "tree.Build")
	defer span.End()

	sorted := make([]*ir.FileResult, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FilePath < sorted[j].FilePath })

	root, crateName, err := findRoot(sorted)
	if err != nil {
		return nil, err
	}
	if crateName != "" {
		opts = append([]Option{WithCrateName(crateName)}, opts...)
	}
	t, err := NewTree(root, opts...)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("crate", t.crateName),
		attribute.Int("files", len(sorted)),
	)

	if err := runStage(ctx, tracer, "add_modules", func() error {
		for _, f := range sorted {
			for _, it := range f.Items {
				if err := t.AddItem(it); err != nil {
					return fmt.Errorf("file %s: %w", f.FilePath, err)
				}
			}
			for _, m := range f.Modules {
				if err := t.AddModule(m); err != nil {
					return fmt.Errorf("file %s: %w", f.FilePath, err)
				}
			}
			if err := t.AddEdgeBatch(f.Edges); err != nil {
				return fmt.Errorf("file %s: %w", f.FilePath, err)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var unlinked []UnlinkedModule
	if err := runStage(ctx, tracer, "link_declarations", func() error {
		err := t.LinkDeclarations()
		var ue *UnlinkedModulesError
		if errors.As(err, &ue) {
			// Not fatal: these modules are pruned at the end of the
			// pipeline unless a #[path] attribute claims them first.
			unlinked = ue.Unlinked
			unlinkedModulesTotal.Add(float64(len(ue.Unlinked)))
			t.log.Warn("file modules without declarations", slog.Int("count", len(ue.Unlinked)))
			return nil
		}
		return err
	}); err != nil {
		return nil, err
	}

	if err := runStage(ctx, tracer, "path_attrs", func() error {
		if err := t.ResolvePathAttrs(); err != nil {
			return err
		}
		if err := t.LinkCustomPaths(); err != nil {
			return err
		}
		return t.RewritePathIndex()
	}); err != nil {
		return nil, err
	}

	if err := runStage(ctx, tracer, "re_exports", func() error {
		if err := t.ResolveReExports(); err != nil {
			return err
		}
		externalReExportsTotal.Add(float64(len(t.externalReExports)))
		return nil
	}); err != nil {
		return nil, err
	}

	var pruning *PruningResult
	if err := runStage(ctx, tracer, "prune", func() error {
		var err error
		pruning, err = t.PruneUnlinkedFileModules()
		if err != nil {
			return err
		}
		prunedNodesTotal.WithLabelValues("module").Add(float64(len(pruning.ModuleIDs)))
		prunedNodesTotal.WithLabelValues("item").Add(float64(len(pruning.ItemIDs)))
		return nil
	}); err != nil {
		return nil, err
	}

	if err := runStage(ctx, tracer, "freeze", t.Freeze); err != nil {
		return nil, err
	}

	return &BuildResult{Tree: t, Pruning: pruning, Unlinked: unlinked}, nil
}

// runStage wraps one pipeline stage with cancellation, tracing, and timing.
func runStage(ctx context.Context, tracer trace.Tracer, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: before stage %s: %v", ErrBuildCancelled, name, err)
	}
	_, span := tracer.Start(ctx, "tree."+name)
	defer span.End()

	start := time.Now()
	err := fn()
	buildStageSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("stage %s: %w", name, err)
	}
	return nil
}

// findRoot locates the single crate root among the parse results.
func findRoot(files []*ir.FileResult) (*ir.Module, string, error) {
	var root *ir.Module
	var crateName string
	for _, f := range files {
		m, ok := f.RootModule()
		if !ok {
			continue
		}
		if root != nil {
			return nil, "", fmt.Errorf("%w: both %s and %s define the crate root",
				ErrDuplicateDefinition, root.FilePath, m.FilePath)
		}
		root = m
		crateName = f.CrateName
	}
	if root == nil {
		return nil, "", ErrRootModuleNotFound
	}
	return root, crateName, nil
}
