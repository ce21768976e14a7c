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
	"errors"
	"testing"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

// relocatedCrate builds a tree where `mod relocated;` in lib.rs carries
// #[path = "../shared/impl.rs"].
func relocatedCrate(t *testing.T, attrValue, defnFile string) *ModuleTree {
	t.Helper()
	tr := newTestTree(t, testRoot())
	decl := testDecl("reloc-decl", "relocated", []string{"crate", "relocated"}, ir.Public(),
		ir.Attribute{Name: "path", Value: attrValue})
	defn := testFileModule("reloc-defn", "impl", []string{"crate", "impl"}, defnFile)
	mustAddModules(t, tr, testRoot(), decl, defn)
	mustAddEdges(t, tr, contains("root", "reloc-decl"))
	return tr
}

func TestResolvePathAttrs(t *testing.T) {
	t.Run("joins and normalizes against declaring file dir", func(t *testing.T) {
		tr := relocatedCrate(t, "../shared/impl.rs", "/proj/shared/impl.rs")
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatalf("ResolvePathAttrs: %v", err)
		}
		got, ok := tr.foundPathAttrs["reloc-decl"]
		if !ok {
			t.Fatal("attribute not resolved")
		}
		if got != "/proj/shared/impl.rs" {
			t.Errorf("resolved = %q, want /proj/shared/impl.rs", got)
		}
	})

	t.Run("dot segments collapse without filesystem access", func(t *testing.T) {
		tr := relocatedCrate(t, "./sub/../other.rs", "/proj/src/other.rs")
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatalf("ResolvePathAttrs: %v", err)
		}
		if got := tr.foundPathAttrs["reloc-decl"]; got != "/proj/src/other.rs" {
			t.Errorf("resolved = %q, want /proj/src/other.rs", got)
		}
	})

	t.Run("second drain is an internal error", func(t *testing.T) {
		tr := relocatedCrate(t, "impl.rs", "/proj/src/impl.rs")
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatalf("first drain: %v", err)
		}
		if err := tr.ResolvePathAttrs(); !errors.Is(err, ErrInternalState) {
			t.Errorf("got %v, want ErrInternalState", err)
		}
	})

	t.Run("declaration nested in inline module resolves through ancestors", func(t *testing.T) {
		tr := newTestTree(t, testRoot())
		inner := testInline("inner", "inner", []string{"crate", "inner"}, ir.Public())
		decl := testDecl("deep-decl", "deep", []string{"crate", "inner", "deep"}, ir.Public(),
			ir.Attribute{Name: "path", Value: "deep_impl.rs"})
		defn := testFileModule("deep-defn", "deep_impl", []string{"crate", "deep_impl"}, "/proj/src/deep_impl.rs")
		mustAddModules(t, tr, testRoot(), inner, decl, defn)
		mustAddEdges(t, tr, contains("root", "inner"), contains("inner", "deep-decl"))

		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatalf("ResolvePathAttrs: %v", err)
		}
		if got := tr.foundPathAttrs["deep-decl"]; got != "/proj/src/deep_impl.rs" {
			t.Errorf("resolved = %q", got)
		}
	})
}

func TestLinkCustomPaths(t *testing.T) {
	t.Run("in-tree target produces CustomPath edge", func(t *testing.T) {
		tr := relocatedCrate(t, "impl.rs", "/proj/src/impl.rs")
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatalf("ResolvePathAttrs: %v", err)
		}
		if err := tr.LinkCustomPaths(); err != nil {
			t.Fatalf("LinkCustomPaths: %v", err)
		}
		defnID, ok := tr.customPathTarget("reloc-decl")
		if !ok || defnID != "reloc-defn" {
			t.Errorf("custom path target = %s, %v", defnID, ok)
		}
	})

	t.Run("target outside source tree is recorded, not fatal", func(t *testing.T) {
		tr := relocatedCrate(t, "../../elsewhere/impl.rs", "/proj/src/impl.rs")
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatalf("ResolvePathAttrs: %v", err)
		}
		if err := tr.LinkCustomPaths(); err != nil {
			t.Fatalf("LinkCustomPaths: %v", err)
		}
		ext := tr.ExternalPathAttrs()
		if ext["reloc-decl"] != "/elsewhere/impl.rs" {
			t.Errorf("external attrs = %v", ext)
		}
		if _, ok := tr.customPathTarget("reloc-decl"); ok {
			t.Error("external target must not produce an edge")
		}
	})

	t.Run("missing in-tree target is fatal", func(t *testing.T) {
		tr := relocatedCrate(t, "missing.rs", "/proj/src/impl.rs")
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatalf("ResolvePathAttrs: %v", err)
		}
		err := tr.LinkCustomPaths()
		if !errors.Is(err, ErrDefinitionNotFound) {
			t.Errorf("got %v, want ErrDefinitionNotFound", err)
		}
	})

	t.Run("two modules claiming the file is fatal", func(t *testing.T) {
		tr := relocatedCrate(t, "impl.rs", "/proj/src/impl.rs")
		dup := testFileModule("reloc-dup", "impl2", []string{"crate", "impl2"}, "/proj/src/impl.rs")
		mustAddModules(t, tr, dup)
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatalf("ResolvePathAttrs: %v", err)
		}
		if err := tr.LinkCustomPaths(); !errors.Is(err, ErrDuplicateDefinition) {
			t.Errorf("got %v, want ErrDuplicateDefinition", err)
		}
	})
}

func TestRewritePathIndex(t *testing.T) {
	t.Run("moves definition under declaration path", func(t *testing.T) {
		tr := relocatedCrate(t, "impl.rs", "/proj/src/impl.rs")
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatal(err)
		}
		if err := tr.LinkCustomPaths(); err != nil {
			t.Fatal(err)
		}
		if err := tr.RewritePathIndex(); err != nil {
			t.Fatalf("RewritePathIndex: %v", err)
		}

		if _, ok := tr.ResolvePath([]string{"crate", "impl"}); ok {
			t.Error("old definition path should be removed")
		}
		if id, ok := tr.ResolvePath([]string{"crate", "relocated"}); !ok || id != "reloc-defn" {
			t.Errorf("new path lookup = %s, %v, want reloc-defn", id, ok)
		}
	})

	t.Run("external attrs are skipped", func(t *testing.T) {
		tr := relocatedCrate(t, "../../elsewhere/impl.rs", "/proj/src/impl.rs")
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatal(err)
		}
		if err := tr.LinkCustomPaths(); err != nil {
			t.Fatal(err)
		}
		if err := tr.RewritePathIndex(); err != nil {
			t.Errorf("RewritePathIndex with external attr: %v", err)
		}
	})

	t.Run("conflicting new path is a duplicate path error", func(t *testing.T) {
		tr := relocatedCrate(t, "impl.rs", "/proj/src/impl.rs")
		squatter := testInline("squatter", "relocated", []string{"crate", "relocated"}, ir.Public())
		mustAddModules(t, tr, squatter)
		if err := tr.ResolvePathAttrs(); err != nil {
			t.Fatal(err)
		}
		if err := tr.LinkCustomPaths(); err != nil {
			t.Fatal(err)
		}
		if err := tr.RewritePathIndex(); !errors.Is(err, ErrDuplicatePath) {
			t.Errorf("got %v, want ErrDuplicatePath", err)
		}
	})
}
