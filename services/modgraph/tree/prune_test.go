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
	"testing"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

func TestPruneUnlinkedFileModules(t *testing.T) {
	t.Run("linked crate prunes nothing", func(t *testing.T) {
		tr := linkedCrate(t, ir.Public())
		result, err := tr.PruneUnlinkedFileModules()
		if err != nil {
			t.Fatalf("prune: %v", err)
		}
		if !result.Empty() {
			t.Errorf("expected empty result, got %+v", result)
		}
	})

	t.Run("orphan file and its contents removed", func(t *testing.T) {
		tr := linkedCrate(t, ir.Public())
		orphan := testFileModule("f-orphan", "orphan", []string{"crate", "orphan"}, "/proj/src/orphan.rs")
		mustAddModules(t, tr, orphan)
		mustAddItems(t, tr,
			testItem("i-lost", "lost", ir.ItemKindFunction, ir.Inherited()),
			testItem("i-kept", "kept", ir.ItemKindFunction, ir.Public()),
		)
		mustAddEdges(t, tr,
			contains("f-orphan", "i-lost"),
			contains("f-utils", "i-kept"),
		)

		result, err := tr.PruneUnlinkedFileModules()
		if err != nil {
			t.Fatalf("prune: %v", err)
		}

		if len(result.ModuleIDs) != 1 || result.ModuleIDs[0] != "f-orphan" {
			t.Errorf("pruned modules = %v", result.ModuleIDs)
		}
		if len(result.ItemIDs) != 1 || result.ItemIDs[0] != "i-lost" {
			t.Errorf("pruned items = %v", result.ItemIDs)
		}
		if len(result.Edges) != 1 {
			t.Errorf("pruned edges = %v", result.Edges)
		}

		if _, ok := tr.Module("f-orphan"); ok {
			t.Error("orphan module still present")
		}
		if _, ok := tr.Item("i-lost"); ok {
			t.Error("orphan item still present")
		}
		if _, ok := tr.ResolvePath([]string{"crate", "orphan"}); ok {
			t.Error("orphan path index entry still present")
		}
		if _, ok := tr.Item("i-kept"); !ok {
			t.Error("linked module's item should survive")
		}
		if len(tr.EdgesFrom("f-orphan")) != 0 {
			t.Error("adjacency index still references pruned module")
		}
	})

	t.Run("custom path link protects a module", func(t *testing.T) {
		tr := relocatedCrate(t, "impl.rs", "/proj/src/impl.rs")
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatal(err)
		}
		if err := tr.LinkCustomPaths(); err != nil {
			t.Fatal(err)
		}
		result, err := tr.PruneUnlinkedFileModules()
		if err != nil {
			t.Fatalf("prune: %v", err)
		}
		for _, id := range result.ModuleIDs {
			if id == "reloc-defn" {
				t.Error("module reached via CustomPath must not be pruned")
			}
		}
	})

	t.Run("orphan re-export does not prune its target", func(t *testing.T) {
		// The orphan file re-exports a linked module. The pruning closure
		// must stop at the re-export edge: only the orphan and its own
		// contents go, never the resolved target.
		files := sampleCrateFiles()
		orphan := files[2].Modules[0]
		orphan.Imports = []ir.ImportRecord{{
			ID:          "use-stolen",
			SourcePath:  []string{"crate", "utils"},
			VisibleName: "utils",
			Kind:        ir.ImportUse,
			Visibility:  ir.Public(),
		}}
		files[2].Edges = append(files[2].Edges, contains("orphan-defn", "use-stolen"))

		result, err := Build(context.Background(), files, WithLogger(quietLogger()))
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		tr := result.Tree

		if _, ok := tr.Module("utils-defn"); !ok {
			t.Error("linked module pruned through the orphan's re-export")
		}
		if _, ok := tr.Item("fn-helper"); !ok {
			t.Error("item inside linked module pruned")
		}
		if id, ok := tr.ResolvePath([]string{"crate", "utils"}); !ok || id != "utils-defn" {
			t.Errorf("path index lost crate::utils, got %s, %v", id, ok)
		}
		if len(result.Pruning.ModuleIDs) != 1 || result.Pruning.ModuleIDs[0] != "orphan-defn" {
			t.Errorf("pruned modules = %v, want only orphan-defn", result.Pruning.ModuleIDs)
		}
		wantItems := []ir.NodeID{"fn-lost", "use-stolen"}
		if len(result.Pruning.ItemIDs) != len(wantItems) {
			t.Fatalf("pruned items = %v, want %v", result.Pruning.ItemIDs, wantItems)
		}
		for i, id := range wantItems {
			if result.Pruning.ItemIDs[i] != id {
				t.Errorf("pruned items = %v, want %v", result.Pruning.ItemIDs, wantItems)
				break
			}
		}
	})

	t.Run("nested orphan closure", func(t *testing.T) {
		tr := newTestTree(t, testRoot())
		mustAddModules(t, tr,
			testRoot(),
			testFileModule("f-a", "a", []string{"crate", "a"}, "/proj/src/a.rs"),
			testInline("a-sub", "sub", []string{"crate", "a", "sub"}, ir.Public()),
		)
		mustAddItems(t, tr, testItem("i-deep", "deep", ir.ItemKindStruct, ir.Public()))
		mustAddEdges(t, tr,
			contains("f-a", "a-sub"),
			contains("a-sub", "i-deep"),
		)

		result, err := tr.PruneUnlinkedFileModules()
		if err != nil {
			t.Fatalf("prune: %v", err)
		}
		if len(result.ModuleIDs) != 2 {
			t.Errorf("pruned modules = %v, want f-a and a-sub", result.ModuleIDs)
		}
		if len(result.ItemIDs) != 1 || result.ItemIDs[0] != "i-deep" {
			t.Errorf("pruned items = %v", result.ItemIDs)
		}
		if tr.EdgeCount() != 0 {
			t.Errorf("edges remaining = %d", tr.EdgeCount())
		}
	})
}
