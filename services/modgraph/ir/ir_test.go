// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ir

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestImportRecord_Classification(t *testing.T) {
	t.Run("public use is a re-export", func(t *testing.T) {
		r := &ImportRecord{Kind: ImportUse, Visibility: Public()}
		if !r.IsReExport() {
			t.Error("expected public use to be a re-export")
		}
		if r.IsInheritedUse() {
			t.Error("public use should not be an inherited use")
		}
	})

	t.Run("crate-visible use is a re-export", func(t *testing.T) {
		r := &ImportRecord{Kind: ImportUse, Visibility: Crate()}
		if !r.IsReExport() {
			t.Error("expected pub(crate) use to be a re-export")
		}
	})

	t.Run("private use is inherited", func(t *testing.T) {
		r := &ImportRecord{Kind: ImportUse, Visibility: Inherited()}
		if r.IsReExport() {
			t.Error("private use must not be a re-export")
		}
		if !r.IsInheritedUse() {
			t.Error("expected private use to be inherited")
		}
	})

	t.Run("extern crate is always inherited", func(t *testing.T) {
		r := &ImportRecord{Kind: ImportExternCrate, Visibility: Public()}
		if r.IsReExport() {
			t.Error("extern crate must not be a re-export")
		}
		if !r.IsInheritedUse() {
			t.Error("extern crate must classify as inherited use")
		}
	})
}

func TestModule_PathAttr(t *testing.T) {
	decl := &Module{
		ID:         "m1",
		Name:       "relocated",
		Path:       []string{"crate", "relocated"},
		Kind:       ModuleDeclaration,
		Attributes: []Attribute{{Name: "cfg", Value: "test"}, {Name: "path", Value: "../shared/file.rs"}},
	}
	val, ok := decl.PathAttr()
	if !ok {
		t.Fatal("expected path attribute to be found")
	}
	if val != "../shared/file.rs" {
		t.Errorf("got %q, want ../shared/file.rs", val)
	}

	defn := &Module{ID: "m2", Kind: ModuleFileBased, Attributes: decl.Attributes}
	if _, ok := defn.PathAttr(); ok {
		t.Error("definitions must never report a path attribute")
	}
}

func TestValidatePath(t *testing.T) {
	if err := ValidatePath([]string{"crate", "utils"}); err != nil {
		t.Errorf("valid path rejected: %v", err)
	}
	if err := ValidatePath(nil); err == nil {
		t.Error("empty path must be rejected")
	}
	if err := ValidatePath([]string{"crate", ""}); err == nil {
		t.Error("empty segment must be rejected")
	}
}

func TestVisibility_String(t *testing.T) {
	if got := Restricted("crate", "internal").String(); got != "pub(in crate::internal)" {
		t.Errorf("got %q", got)
	}
	if got := Inherited().String(); got != "private" {
		t.Errorf("got %q", got)
	}
}

func TestLoadFileResult(t *testing.T) {
	dir := t.TempDir()

	t.Run("round trip", func(t *testing.T) {
		fr := &FileResult{
			FilePath:  "/src/lib.rs",
			CrateName: "fixture",
			Modules: []*Module{{
				ID:         "root",
				Name:       "crate",
				Path:       []string{"crate"},
				Visibility: Public(),
				Kind:       ModuleFileBased,
				FilePath:   "/src/lib.rs",
			}},
			Edges: []Edge{{Source: "root", Target: "item-1", Kind: EdgeContains}},
		}
		data, err := json.Marshal(fr)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		path := filepath.Join(dir, "lib.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}

		loaded, err := LoadFileResult(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if loaded.Modules[0].Kind != ModuleFileBased {
			t.Errorf("module kind lost in transit: %v", loaded.Modules[0].Kind)
		}
		if loaded.Edges[0].Kind != EdgeContains {
			t.Errorf("edge kind lost in transit: %v", loaded.Edges[0].Kind)
		}
		if _, ok := loaded.RootModule(); !ok {
			t.Error("expected root module to be detected")
		}
	})

	t.Run("empty file rejected", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		if err := os.WriteFile(path, []byte(`{"file_path":"/src/x.rs","modules":[]}`), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := LoadFileResult(path); err == nil {
			t.Error("expected error for result with no modules")
		}
	})
}
