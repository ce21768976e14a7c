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
	"testing"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

func TestBuild(t *testing.T) {
	t.Run("full pipeline on sample crate", func(t *testing.T) {
		result, err := Build(context.Background(), sampleCrateFiles(), WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		tr := result.Tree
		if !tr.Frozen() {
			t.Error("built tree must be frozen")
		}
		if tr.CrateName() != "sample" {
			t.Errorf("crate name = %q", tr.CrateName())
		}

		// Declaration linked to definition.
		if id, ok := tr.ResolvePath([]string{"crate", "utils"}); !ok || id != "utils-defn" {
			t.Errorf("definition lookup = %s, %v", id, ok)
		}
		if id, ok := tr.ResolveDecl([]string{"crate", "utils"}); !ok || id != "utils-decl" {
			t.Errorf("declaration lookup = %s, %v", id, ok)
		}

		// Re-export published under the root.
		if id, ok := tr.ResolveReExport([]string{"crate", "helper"}); !ok || id != "fn-helper" {
			t.Errorf("re-export lookup = %s, %v", id, ok)
		}

		// Orphan file pruned, and reported as unlinked.
		if _, ok := tr.Module("orphan-defn"); ok {
			t.Error("orphan module survived the build")
		}
		if len(result.Pruning.ModuleIDs) != 1 || result.Pruning.ModuleIDs[0] != "orphan-defn" {
			t.Errorf("pruning result = %+v", result.Pruning)
		}
		if len(result.Unlinked) != 1 || result.Unlinked[0].ModuleID != "orphan-defn" {
			t.Errorf("unlinked = %+v", result.Unlinked)
		}
	})

	t.Run("missing root is fatal", func(t *testing.T) {
		files := sampleCrateFiles()[1:]
		_, err := Build(context.Background(), files, WithLogger(quietLogger()))
		if !errors.Is(err, ErrRootModuleNotFound) {
			t.Errorf("got %v, want ErrRootModuleNotFound", err)
		}
	})

	t.Run("two roots are fatal", func(t *testing.T) {
		files := sampleCrateFiles()
		second := testRoot()
		second.ID = "root-2"
		second.FilePath = "/proj/src/main.rs"
		files = append(files, &ir.FileResult{
			FilePath: "/proj/src/main.rs",
			Modules:  []*ir.Module{second},
		})
		_, err := Build(context.Background(), files, WithLogger(quietLogger()))
		if !errors.Is(err, ErrDuplicateDefinition) {
			t.Errorf("got %v, want ErrDuplicateDefinition", err)
		}
	})

	t.Run("cancelled context aborts between stages", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Build(ctx, sampleCrateFiles(), WithLogger(quietLogger()))
		if !errors.Is(err, ErrBuildCancelled) {
			t.Errorf("got %v, want ErrBuildCancelled", err)
		}
	})

	t.Run("relocated module flows through the whole pipeline", func(t *testing.T) {
		root := testRoot()
		decl := testDecl("reloc-decl", "relocated", []string{"crate", "relocated"}, ir.Public(),
			ir.Attribute{Name: "path", Value: "generated/impl.rs"})
		defn := testFileModule("reloc-defn", "impl", []string{"crate", "impl"}, "/proj/src/generated/impl.rs")
		files := []*ir.FileResult{
			{
				FilePath:  "/proj/src/lib.rs",
				CrateName: "reloc",
				Modules:   []*ir.Module{root, decl},
				Edges:     []ir.Edge{contains("root", "reloc-decl")},
			},
			{
				FilePath: "/proj/src/generated/impl.rs",
				Modules:  []*ir.Module{defn},
			},
		}

		result, err := Build(context.Background(), files, WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		tr := result.Tree
		if id, ok := tr.ResolvePath([]string{"crate", "relocated"}); !ok || id != "reloc-defn" {
			t.Errorf("rewritten path lookup = %s, %v", id, ok)
		}
		if _, ok := tr.ResolvePath([]string{"crate", "impl"}); ok {
			t.Error("pre-relocation path should be gone from the index")
		}
		if !result.Pruning.Empty() {
			t.Errorf("nothing should be pruned, got %+v", result.Pruning)
		}
	})
}
