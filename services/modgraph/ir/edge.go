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

// EdgeKind enumerates the relationships tracked by the module tree.
type EdgeKind int

const (
	// EdgeContains links a module to a node defined directly inside it.
	EdgeContains EdgeKind = iota
	// EdgeResolvesToDefinition links a module declaration to its
	// conventionally-located file-based definition.
	EdgeResolvesToDefinition
	// EdgeCustomPath links a declaration carrying #[path = "..."] to the
	// definition file the attribute names.
	EdgeCustomPath
	// EdgeReExports links a re-exporting import statement to the node it
	// re-exports.
	EdgeReExports
	// EdgeModuleImports links a module to an import statement appearing in
	// its body.
	EdgeModuleImports

	// NumEdgeKinds is the count of valid kinds, usable to size arrays
	// indexed by EdgeKind.
	NumEdgeKinds = int(EdgeModuleImports) + 1
)

var edgeKindNames = map[EdgeKind]string{
	EdgeContains:             "contains",
	EdgeResolvesToDefinition: "resolves_to_definition",
	EdgeCustomPath:           "custom_path",
	EdgeReExports:            "re_exports",
	EdgeModuleImports:        "module_imports",
}

var edgeKindValues = func() map[string]EdgeKind {
	m := make(map[string]EdgeKind, len(edgeKindNames))
	for k, v := range edgeKindNames {
		m[v] = k
	}
	return m
}()

// String returns the lowercase name of the kind.
func (k EdgeKind) String() string {
	if s, ok := edgeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("edge_kind(%d)", int(k))
}

// IsValid reports whether the kind is one of the declared constants.
func (k EdgeKind) IsValid() bool {
	return k >= EdgeContains && int(k) < NumEdgeKinds
}

// MarshalText implements encoding.TextMarshaler.
func (k EdgeKind) MarshalText() ([]byte, error) {
	s, ok := edgeKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown edge kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EdgeKind) UnmarshalText(text []byte) error {
	v, ok := edgeKindValues[string(text)]
	if !ok {
		return fmt.Errorf("unknown edge kind %q", string(text))
	}
	*k = v
	return nil
}

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	Source NodeID   `json:"source"`
	Target NodeID   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// String implements fmt.Stringer for log output.
func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", e.Source, e.Kind, e.Target)
}
