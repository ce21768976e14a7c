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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

// SchemaVersion identifies the serialized tree layout. Bump on any breaking
// change to SerializableTree.
const SchemaVersion = "1.0"

// PathEntry is one sorted index entry.
type PathEntry struct {
	Path string    `json:"path"`
	ID   ir.NodeID `json:"id"`
}

// SerializableTree is the stable on-disk form of a frozen ModuleTree.
// All slices are sorted so equal trees serialize to identical bytes.
type SerializableTree struct {
	SchemaVersion     string               `json:"schema_version"`
	CrateName         string               `json:"crate_name,omitempty"`
	RootID            ir.NodeID            `json:"root_id"`
	RootFile          string               `json:"root_file"`
	Modules           []*ir.Module         `json:"modules"`
	Items             []*ir.Item           `json:"items,omitempty"`
	Edges             []ir.Edge            `json:"edges"`
	PathIndex         []PathEntry          `json:"path_index"`
	DeclIndex         []PathEntry          `json:"decl_index"`
	ReExportIndex     []PathEntry          `json:"reexport_index,omitempty"`
	ExternalPathAttrs []PathEntry          `json:"external_path_attrs,omitempty"`
	ExternalReExports []ExternalItemRecord `json:"external_reexports,omitempty"`
}

// ExternalItemRecord is the serialized form of one external re-export.
type ExternalItemRecord struct {
	Dependency string   `json:"dependency"`
	Path       []string `json:"path"`
}

// ToSerializable converts a frozen tree into its stable serialized form.
// The tree must be frozen first so the snapshot cannot race a mutation.
func (t *ModuleTree) ToSerializable() (*SerializableTree, error) {
	if !t.frozen {
		return nil, fmt.Errorf("tree must be frozen before serialization")
	}

	s := &SerializableTree{
		SchemaVersion: SchemaVersion,
		CrateName:     t.crateName,
		RootID:        t.rootID,
		RootFile:      t.rootFile,
	}

	for _, id := range t.ModuleIDs() {
		s.Modules = append(s.Modules, t.modules[id])
	}

	itemIDs := make([]ir.NodeID, 0, len(t.items))
	for id := range t.items {
		itemIDs = append(itemIDs, id)
	}
	sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })
	for _, id := range itemIDs {
		s.Items = append(s.Items, t.items[id])
	}

	s.Edges = make([]ir.Edge, len(t.edges))
	copy(s.Edges, t.edges)
	sort.Slice(s.Edges, func(i, j int) bool {
		a, b := s.Edges[i], s.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Kind < b.Kind
	})

	s.PathIndex = sortedEntries(t.pathIndex)
	s.DeclIndex = sortedEntries(t.declIndex)
	s.ReExportIndex = sortedEntries(t.reexportIndex)

	// Keyed by declaration ID: two declarations may legally point at the
	// same external file, so the target path is not unique.
	for id, target := range t.externalPathAttrs {
		s.ExternalPathAttrs = append(s.ExternalPathAttrs, PathEntry{Path: target, ID: id})
	}
	sort.Slice(s.ExternalPathAttrs, func(i, j int) bool {
		return s.ExternalPathAttrs[i].ID < s.ExternalPathAttrs[j].ID
	})

	for _, e := range t.externalReExports {
		s.ExternalReExports = append(s.ExternalReExports, ExternalItemRecord{
			Dependency: e.Dependency,
			Path:       ir.ClonePath(e.Path),
		})
	}
	sort.Slice(s.ExternalReExports, func(i, j int) bool {
		return ir.JoinPath(s.ExternalReExports[i].Path) < ir.JoinPath(s.ExternalReExports[j].Path)
	})

	return s, nil
}

// FromSerializable reconstructs a frozen tree from its serialized form.
func FromSerializable(s *SerializableTree, opts ...Option) (*ModuleTree, error) {
	if s == nil {
		return nil, fmt.Errorf("nil serialized tree")
	}
	if s.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %q (want %q)", s.SchemaVersion, SchemaVersion)
	}

	var root *ir.Module
	for _, m := range s.Modules {
		if m.ID == s.RootID {
			root = m
			break
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: root %s missing from serialized modules", ErrRootModuleNotFound, s.RootID)
	}

	t, err := NewTree(root, opts...)
	if err != nil {
		return nil, err
	}
	t.crateName = s.CrateName

	for _, m := range s.Modules {
		t.modules[m.ID] = m
	}
	for _, it := range s.Items {
		t.items[it.ID] = it
	}
	for _, e := range s.Edges {
		t.addEdge(e)
	}
	for _, pe := range s.PathIndex {
		t.pathIndex[pe.Path] = pe.ID
	}
	for _, pe := range s.DeclIndex {
		t.declIndex[pe.Path] = pe.ID
	}
	for _, pe := range s.ReExportIndex {
		t.reexportIndex[pe.Path] = pe.ID
	}
	for _, pe := range s.ExternalPathAttrs {
		t.externalPathAttrs[pe.ID] = pe.Path
	}
	for _, e := range s.ExternalReExports {
		t.externalReExports = append(t.externalReExports, ExternalItemError{
			Dependency: e.Dependency,
			Path:       e.Path,
		})
	}

	// Serialized trees carry no pending work.
	t.pendingExports = nil
	t.pendingPathAttrs = nil

	if err := t.Freeze(); err != nil {
		return nil, err
	}
	return t, nil
}

// MarshalJSON renders the stable serialized form.
func (t *ModuleTree) MarshalJSON() ([]byte, error) {
	s, err := t.ToSerializable()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// ContentHash returns the hex SHA-256 of the serialized tree, usable as a
// persistence key component.
func (t *ModuleTree) ContentHash() (string, error) {
	data, err := t.MarshalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func sortedEntries(m map[string]ir.NodeID) []PathEntry {
	if len(m) == 0 {
		return nil
	}
	out := make([]PathEntry, 0, len(m))
	for k, v := range m {
		out = append(out, PathEntry{Path: k, ID: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
