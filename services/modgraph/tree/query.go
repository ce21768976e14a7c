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
	"fmt"
	"sort"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

// TreeStats summarizes a tree for CLI output and the query API.
type TreeStats struct {
	CrateName         string         `json:"crate_name,omitempty"`
	Modules           int            `json:"modules"`
	ModulesByKind     map[string]int `json:"modules_by_kind"`
	Items             int            `json:"items"`
	Edges             int            `json:"edges"`
	EdgesByKind       map[string]int `json:"edges_by_kind"`
	PathIndexSize     int            `json:"path_index_size"`
	DeclIndexSize     int            `json:"decl_index_size"`
	ReExportIndexSize int            `json:"reexport_index_size"`
	PendingImports    int            `json:"pending_imports"`
	ExternalPathAttrs int            `json:"external_path_attrs"`
	ExternalReExports int            `json:"external_reexports"`
}

// Stats computes summary counts over the tree.
func (t *ModuleTree) Stats() TreeStats {
	s := TreeStats{
		CrateName:         t.crateName,
		Modules:           len(t.modules),
		ModulesByKind:     make(map[string]int, 3),
		Items:             len(t.items),
		Edges:             len(t.edges),
		EdgesByKind:       make(map[string]int, ir.NumEdgeKinds),
		PathIndexSize:     len(t.pathIndex),
		DeclIndexSize:     len(t.declIndex),
		ReExportIndexSize: len(t.reexportIndex),
		PendingImports:    len(t.pendingImports),
		ExternalPathAttrs: len(t.externalPathAttrs),
		ExternalReExports: len(t.externalReExports),
	}
	for _, m := range t.modules {
		s.ModulesByKind[m.Kind.String()]++
	}
	for _, e := range t.edges {
		s.EdgesByKind[e.Kind.String()]++
	}
	return s
}

// ShortestPublicPath returns the shortest path under which a node is
// publicly reachable.
//
// Description:
//
//	Candidates come from two places: re-export index entries pointing at
//	the node (public by construction) and the node's canonical path when
//	its effective visibility is public. The shortest candidate wins;
//	ties break lexicographically, so the answer is deterministic.
//
// Errors:
//   - ErrNotPubliclyAccessible when no candidate exists.
func (t *ModuleTree) ShortestPublicPath(id ir.NodeID) ([]string, error) {
	var candidates []string

	for key, target := range t.reexportIndex {
		if target == id {
			candidates = append(candidates, key)
		}
	}

	for key, target := range t.pathIndex {
		if target != id {
			continue
		}
		if t.isCanonicalPathPublic(id) {
			candidates = append(candidates, key)
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotPubliclyAccessible, id)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := ir.SplitPath(candidates[i]), ir.SplitPath(candidates[j])
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return candidates[i] < candidates[j]
	})
	return ir.SplitPath(candidates[0]), nil
}

// isCanonicalPathPublic reports whether a node and every module above it are
// publicly visible, bounded by the ancestor depth limit.
func (t *ModuleTree) isCanonicalPathPublic(id ir.NodeID) bool {
	cur := id
	for depth := 0; depth <= t.maxAncestorDepth; depth++ {
		if cur == t.rootID {
			return true
		}
		if m, ok := t.modules[cur]; ok {
			if !t.EffectiveVisibility(cur).IsPublic() && m.ID != t.rootID {
				return false
			}
		} else if it, ok := t.items[cur]; ok {
			if !it.Visibility.IsPublic() {
				return false
			}
		} else {
			return false
		}
		parent, err := t.ParentOf(cur)
		if err != nil {
			return false
		}
		cur = parent
	}
	return false
}
