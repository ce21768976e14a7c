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

// NodeID uniquely identifies a node across all files of one crate.
//
// IDs are produced upstream (content-addressed UUIDs in practice) and are
// opaque here: the resolver never parses them, it only compares them and uses
// them as map keys. The empty string is never a valid ID.
type NodeID string

// IsZero reports whether the ID is unset.
func (id NodeID) IsZero() bool { return id == "" }

// ItemKind classifies a node. Kinds marked "primary" are addressable by a
// canonical module path and may be indexed, re-exported, and pruned as
// standalone entries; secondary kinds (fields, variants) only exist inside
// their parent item.
type ItemKind int

const (
	ItemKindUnknown ItemKind = iota
	ItemKindModule
	ItemKindFunction
	ItemKindStruct
	ItemKindEnum
	ItemKindTrait
	ItemKindTypeAlias
	ItemKindUnion
	ItemKindConst
	ItemKindStatic
	ItemKindMacro
	ItemKindImport
	ItemKindField
	ItemKindVariant
)

var itemKindNames = map[ItemKind]string{
	ItemKindUnknown:   "unknown",
	ItemKindModule:    "module",
	ItemKindFunction:  "function",
	ItemKindStruct:    "struct",
	ItemKindEnum:      "enum",
	ItemKindTrait:     "trait",
	ItemKindTypeAlias: "type_alias",
	ItemKindUnion:     "union",
	ItemKindConst:     "const",
	ItemKindStatic:    "static",
	ItemKindMacro:     "macro",
	ItemKindImport:    "import",
	ItemKindField:     "field",
	ItemKindVariant:   "variant",
}

var itemKindValues = func() map[string]ItemKind {
	m := make(map[string]ItemKind, len(itemKindNames))
	for k, v := range itemKindNames {
		m[v] = k
	}
	return m
}()

// String returns the lowercase name of the kind.
func (k ItemKind) String() string {
	if s, ok := itemKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("item_kind(%d)", int(k))
}

// IsPrimary reports whether nodes of this kind are addressable by canonical
// path. Fields and variants are not; everything else known is.
func (k ItemKind) IsPrimary() bool {
	switch k {
	case ItemKindField, ItemKindVariant, ItemKindUnknown:
		return false
	default:
		return true
	}
}

// MarshalText implements encoding.TextMarshaler so ItemKind serializes as its
// name in JSON.
func (k ItemKind) MarshalText() ([]byte, error) {
	s, ok := itemKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown item kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ItemKind) UnmarshalText(text []byte) error {
	v, ok := itemKindValues[string(text)]
	if !ok {
		return fmt.Errorf("unknown item kind %q", string(text))
	}
	*k = v
	return nil
}
