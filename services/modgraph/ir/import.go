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

import "fmt"

// ImportKind distinguishes `use` statements from `extern crate` statements.
type ImportKind int

const (
	// ImportUse is a `use path::to::item;` statement. Its visibility decides
	// whether it is a plain import or a re-export.
	ImportUse ImportKind = iota
	// ImportExternCrate is `extern crate name;`.
	ImportExternCrate
)

var importKindNames = map[ImportKind]string{
	ImportUse:         "use",
	ImportExternCrate: "extern_crate",
}

var importKindValues = func() map[string]ImportKind {
	m := make(map[string]ImportKind, len(importKindNames))
	for k, v := range importKindNames {
		m[v] = k
	}
	return m
}()

// String returns the lowercase name of the kind.
func (k ImportKind) String() string {
	if s, ok := importKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("import_kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ImportKind) MarshalText() ([]byte, error) {
	s, ok := importKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown import kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ImportKind) UnmarshalText(text []byte) error {
	v, ok := importKindValues[string(text)]
	if !ok {
		return fmt.Errorf("unknown import kind %q", string(text))
	}
	*k = v
	return nil
}

// ImportRecord is one `use` or `extern crate` statement. Glob imports keep
// the prefix in SourcePath with IsGlob set; renames keep the binding name in
// VisibleName and the original in OriginalName.
type ImportRecord struct {
	// ID is the node ID of the import statement itself.
	ID NodeID `json:"id"`

	// SourcePath is the path as written, e.g. ["super", "utils", "helper"]
	// or ["crate", "error", "Error"]. Never empty.
	SourcePath []string `json:"source_path"`

	// VisibleName is the binding introduced in the importing scope. For
	// `use a::b as c;` this is "c"; without a rename it is the last source
	// segment.
	VisibleName string `json:"visible_name"`

	// OriginalName is set only when the import renames: the last source
	// segment as written.
	OriginalName string `json:"original_name,omitempty"`

	// Kind selects use statement vs extern crate.
	Kind ImportKind `json:"kind"`

	// Visibility of the statement. Only meaningful for Kind == ImportUse;
	// a public or restricted visibility turns the import into a re-export.
	Visibility Visibility `json:"visibility"`

	// IsGlob marks `use path::*;`.
	IsGlob bool `json:"is_glob,omitempty"`

	// IsSelfImport marks `use path::{self};` style imports.
	IsSelfImport bool `json:"is_self_import,omitempty"`
}

// IsReExport reports whether the statement re-exports its target: a `use`
// with public, crate, or restricted visibility. Extern crate statements are
// never re-exports here.
func (r *ImportRecord) IsReExport() bool {
	if r.Kind != ImportUse {
		return false
	}
	switch r.Visibility.Kind {
	case VisPublic, VisCrate, VisRestricted:
		return true
	default:
		return false
	}
}

// IsInheritedUse reports whether the statement is a plain private import: a
// `use` with inherited visibility, or any `extern crate`.
func (r *ImportRecord) IsInheritedUse() bool {
	if r.Kind == ImportExternCrate {
		return true
	}
	return r.Visibility.IsInherited()
}

// String implements fmt.Stringer for log output.
func (r *ImportRecord) String() string {
	return fmt.Sprintf("%s %s as %q", r.Kind, JoinPath(r.SourcePath), r.VisibleName)
}
