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
	"io"
	"log/slog"
	"testing"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRoot() *ir.Module {
	return &ir.Module{
		ID:         "root",
		Name:       "crate",
		Path:       []string{"crate"},
		Visibility: ir.Public(),
		Kind:       ir.ModuleFileBased,
		FilePath:   "/proj/src/lib.rs",
	}
}

func testFileModule(id, name string, path []string, file string) *ir.Module {
	return &ir.Module{
		ID:         ir.NodeID(id),
		Name:       name,
		Path:       path,
		Visibility: ir.Inherited(),
		Kind:       ir.ModuleFileBased,
		FilePath:   file,
	}
}

func testDecl(id, name string, path []string, vis ir.Visibility, attrs ...ir.Attribute) *ir.Module {
	return &ir.Module{
		ID:         ir.NodeID(id),
		Name:       name,
		Path:       path,
		Visibility: vis,
		Kind:       ir.ModuleDeclaration,
		Attributes: attrs,
	}
}

func testInline(id, name string, path []string, vis ir.Visibility) *ir.Module {
	return &ir.Module{
		ID:         ir.NodeID(id),
		Name:       name,
		Path:       path,
		Visibility: vis,
		Kind:       ir.ModuleInline,
	}
}

func testItem(id, name string, kind ir.ItemKind, vis ir.Visibility) *ir.Item {
	return &ir.Item{ID: ir.NodeID(id), Name: name, Kind: kind, Visibility: vis}
}

func contains(src, dst string) ir.Edge {
	return ir.Edge{Source: ir.NodeID(src), Target: ir.NodeID(dst), Kind: ir.EdgeContains}
}

func newTestTree(t *testing.T, root *ir.Module, opts ...Option) *ModuleTree {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	tr, err := NewTree(root, opts...)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	return tr
}

func mustAddModules(t *testing.T, tr *ModuleTree, mods ...*ir.Module) {
	t.Helper()
	for _, m := range mods {
		if err := tr.AddModule(m); err != nil {
			t.Fatalf("AddModule(%s): %v", m.ID, err)
		}
	}
}

func mustAddItems(t *testing.T, tr *ModuleTree, items ...*ir.Item) {
	t.Helper()
	for _, it := range items {
		if err := tr.AddItem(it); err != nil {
			t.Fatalf("AddItem(%s): %v", it.ID, err)
		}
	}
}

func mustAddEdges(t *testing.T, tr *ModuleTree, edges ...ir.Edge) {
	t.Helper()
	if err := tr.AddEdgeBatch(edges); err != nil {
		t.Fatalf("AddEdgeBatch: %v", err)
	}
}

// sampleCrateFiles builds the parse results for a small crate:
//
//	src/lib.rs:    crate root; `pub mod utils;`; `pub use utils::helper;`
//	src/utils.rs:  pub fn helper
//	src/orphan.rs: a file no declaration claims (pruned)
func sampleCrateFiles() []*ir.FileResult {
	root := testRoot()
	utilsDecl := testDecl("utils-decl", "utils", []string{"crate", "utils"}, ir.Public())
	reexport := ir.ImportRecord{
		ID:          "use-helper",
		SourcePath:  []string{"utils", "helper"},
		VisibleName: "helper",
		Kind:        ir.ImportUse,
		Visibility:  ir.Public(),
	}
	root.Imports = []ir.ImportRecord{reexport}

	utilsDefn := testFileModule("utils-defn", "utils", []string{"crate", "utils"}, "/proj/src/utils.rs")
	helper := testItem("fn-helper", "helper", ir.ItemKindFunction, ir.Public())

	orphan := testFileModule("orphan-defn", "orphan", []string{"crate", "orphan"}, "/proj/src/orphan.rs")
	orphanItem := testItem("fn-lost", "lost", ir.ItemKindFunction, ir.Inherited())

	return []*ir.FileResult{
		{
			FilePath:  "/proj/src/lib.rs",
			CrateName: "sample",
			Modules:   []*ir.Module{root, utilsDecl},
			Edges: []ir.Edge{
				contains("root", "utils-decl"),
				contains("root", "use-helper"),
			},
		},
		{
			FilePath: "/proj/src/utils.rs",
			Modules:  []*ir.Module{utilsDefn},
			Items:    []*ir.Item{helper},
			Edges:    []ir.Edge{contains("utils-defn", "fn-helper")},
		},
		{
			FilePath: "/proj/src/orphan.rs",
			Modules:  []*ir.Module{orphan},
			Items:    []*ir.Item{orphanItem},
			Edges:    []ir.Edge{contains("orphan-defn", "fn-lost")},
		},
	}
}
