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

// ModuleKind distinguishes the three syntactic forms a module takes.
type ModuleKind int

const (
	// ModuleFileBased is a module whose body lives in its own file
	// (src/lib.rs, src/foo.rs, src/foo/mod.rs).
	ModuleFileBased ModuleKind = iota
	// ModuleInline is `mod foo { ... }` with the body in the enclosing file.
	ModuleInline
	// ModuleDeclaration is `mod foo;`, a declaration whose definition lives
	// elsewhere and is linked during resolution.
	ModuleDeclaration
)

var moduleKindNames = map[ModuleKind]string{
	ModuleFileBased:   "file_based",
	ModuleInline:      "inline",
	ModuleDeclaration: "declaration",
}

var moduleKindValues = func() map[string]ModuleKind {
	m := make(map[string]ModuleKind, len(moduleKindNames))
	for k, v := range moduleKindNames {
		m[v] = k
	}
	return m
}()

// String returns the lowercase name of the kind.
func (k ModuleKind) String() string {
	if s, ok := moduleKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("module_kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ModuleKind) MarshalText() ([]byte, error) {
	s, ok := moduleKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown module kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ModuleKind) UnmarshalText(text []byte) error {
	v, ok := moduleKindValues[string(text)]
	if !ok {
		return fmt.Errorf("unknown module kind %q", string(text))
	}
	*k = v
	return nil
}

// Attribute is a source attribute attached to a module declaration, e.g.
// #[path = "other/file.rs"] or #[cfg(test)].
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// PathAttrName is the attribute that relocates a declaration's definition
// file away from the conventional location.
const PathAttrName = "path"

// Module is one module occurrence extracted from a source file. A module that
// is split across a declaration (`mod foo;`) and a definition (foo.rs)
// appears as TWO Module values sharing the same canonical Path; the resolver
// links them.
//
// # Thread Safety
//
// Module values must not be mutated after being handed to a builder.
type Module struct {
	// ID uniquely identifies this occurrence (declaration and definition
	// have distinct IDs).
	ID NodeID `json:"id"`

	// Name is the final path segment, e.g. "utils".
	Name string `json:"name"`

	// Path is the canonical module path including the root, e.g.
	// ["crate", "utils"]. The crate root module has Path ["crate"].
	Path []string `json:"path"`

	// Visibility of the declaration site.
	Visibility Visibility `json:"visibility"`

	// Kind selects which of FilePath / Items applies.
	Kind ModuleKind `json:"kind"`

	// FilePath is the absolute path of the file holding the body. Set only
	// for file-based modules.
	FilePath string `json:"file_path,omitempty"`

	// Attributes carries outer attributes from the declaration site, most
	// importantly #[path = "..."].
	Attributes []Attribute `json:"attributes,omitempty"`

	// Items lists the IDs of nodes defined directly inside the module body.
	// Empty for declarations.
	Items []NodeID `json:"items,omitempty"`

	// Imports are the `use` and `extern crate` statements appearing in the
	// module body.
	Imports []ImportRecord `json:"imports,omitempty"`

	// DocComment is the module's doc text, if any.
	DocComment string `json:"doc_comment,omitempty"`

	// ContentHash is an upstream-computed hash of the module's source text.
	// Used for persistence keys; never interpreted here.
	ContentHash string `json:"content_hash,omitempty"`
}

// IsFileBased reports whether the module's body lives in its own file.
func (m *Module) IsFileBased() bool { return m.Kind == ModuleFileBased }

// IsInline reports whether the module is `mod foo { ... }`.
func (m *Module) IsInline() bool { return m.Kind == ModuleInline }

// IsDeclaration reports whether the module is a bare `mod foo;`.
func (m *Module) IsDeclaration() bool { return m.Kind == ModuleDeclaration }

// PathAttr returns the value of a #[path = "..."] attribute on a declaration
// and whether one is present. Definitions never carry one.
func (m *Module) PathAttr() (string, bool) {
	if !m.IsDeclaration() {
		return "", false
	}
	for _, a := range m.Attributes {
		if a.Name == PathAttrName {
			return a.Value, true
		}
	}
	return "", false
}

// DefnPath returns the canonical path used for index lookups. Kept as a
// method so both declaration and definition sides read the same way at call
// sites.
func (m *Module) DefnPath() []string { return m.Path }

// String implements fmt.Stringer for log output.
func (m *Module) String() string {
	return fmt.Sprintf("%s %q (%s)", m.Kind, JoinPath(m.Path), m.ID)
}

// Item is a non-module named node: a function, struct, trait, and so on.
// The resolver only needs its name, kind, and visibility to walk paths
// through module contents.
type Item struct {
	ID         NodeID     `json:"id"`
	Name       string     `json:"name"`
	Kind       ItemKind   `json:"kind"`
	Visibility Visibility `json:"visibility"`
}
