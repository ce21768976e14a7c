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
	"log/slog"
	"sort"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

// PruningResult reports everything removed by PruneUnlinkedFileModules so
// sibling stores holding per-node records can apply the same deletions.
// All slices are sorted.
type PruningResult struct {
	ModuleIDs []ir.NodeID `json:"module_ids"`
	ItemIDs   []ir.NodeID `json:"item_ids"`
	Edges     []ir.Edge   `json:"edges"`
}

// Empty reports whether the pass removed nothing.
func (r *PruningResult) Empty() bool {
	return len(r.ModuleIDs) == 0 && len(r.ItemIDs) == 0 && len(r.Edges) == 0
}

// PruneUnlinkedFileModules removes file-based modules no declaration claims,
// together with everything they contain.
//
// Description:
//
//	Seeds are file-based modules (other than the crate root) with no
//	incoming ResolvesToDefinition or CustomPath edge after the linking
//	stages: files present on disk but never reached by a `mod` statement.
//	A BFS across outgoing Contains and ModuleImports edges collects the
//	full closure of contained modules, items, and import nodes; other
//	edge kinds (re-exports, linking edges) never pull linked nodes into
//	the closure. Every edge touching a pruned node is dropped, the
//	path and declaration indices lose their pruned entries, and the
//	adjacency indices are rebuilt from the surviving edge list.
//
// Outputs:
//   - *PruningResult: sorted IDs and edges removed; empty result when the
//     crate is fully linked.
func (t *ModuleTree) PruneUnlinkedFileModules() (*PruningResult, error) {
	if t.frozen {
		return nil, ErrTreeFrozen
	}

	var seeds []ir.NodeID
	for _, id := range t.ModuleIDs() {
		m := t.modules[id]
		if !m.IsFileBased() || id == t.rootID {
			continue
		}
		if !t.hasIncomingLink(id) {
			seeds = append(seeds, id)
		}
	}

	pruned := make(map[ir.NodeID]bool, len(seeds))
	queue := append([]ir.NodeID(nil), seeds...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if pruned[cur] {
			continue
		}
		pruned[cur] = true
		for _, i := range t.bySource[cur] {
			e := t.edges[i]
			// Only structural containment defines the prunable closure.
			// Following ReExports or ResolvesToDefinition edges here would
			// drag linked nodes reachable from the orphan into the pruned
			// set.
			if e.Kind != ir.EdgeContains && e.Kind != ir.EdgeModuleImports {
				continue
			}
			if !pruned[e.Target] {
				queue = append(queue, e.Target)
			}
		}
	}

	result := &PruningResult{}
	if len(pruned) == 0 {
		return result, nil
	}

	for id := range pruned {
		if _, ok := t.modules[id]; ok {
			result.ModuleIDs = append(result.ModuleIDs, id)
		} else {
			result.ItemIDs = append(result.ItemIDs, id)
		}
	}
	sort.Slice(result.ModuleIDs, func(i, j int) bool { return result.ModuleIDs[i] < result.ModuleIDs[j] })
	sort.Slice(result.ItemIDs, func(i, j int) bool { return result.ItemIDs[i] < result.ItemIDs[j] })

	kept := make([]ir.Edge, 0, len(t.edges))
	for _, e := range t.edges {
		if pruned[e.Source] || pruned[e.Target] {
			result.Edges = append(result.Edges, e)
			continue
		}
		kept = append(kept, e)
	}
	sort.Slice(result.Edges, func(i, j int) bool {
		a, b := result.Edges[i], result.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Kind < b.Kind
	})

	for _, id := range result.ModuleIDs {
		delete(t.modules, id)
	}
	for _, id := range result.ItemIDs {
		delete(t.items, id)
	}
	for key, id := range t.pathIndex {
		if pruned[id] {
			delete(t.pathIndex, key)
		}
	}
	for key, id := range t.declIndex {
		if pruned[id] {
			delete(t.declIndex, key)
		}
	}
	for key, id := range t.reexportIndex {
		if pruned[id] {
			delete(t.reexportIndex, key)
		}
	}

	t.edges = kept
	t.bySource = make(map[ir.NodeID][]int, len(t.modules))
	t.byTarget = make(map[ir.NodeID][]int, len(t.modules))
	for i, e := range t.edges {
		t.bySource[e.Source] = append(t.bySource[e.Source], i)
		t.byTarget[e.Target] = append(t.byTarget[e.Target], i)
	}

	t.log.Info("pruned unlinked file modules",
		slog.Int("modules", len(result.ModuleIDs)),
		slog.Int("items", len(result.ItemIDs)),
		slog.Int("edges", len(result.Edges)))
	return result, nil
}

// hasIncomingLink reports whether a definition has an incoming
// ResolvesToDefinition or CustomPath edge.
func (t *ModuleTree) hasIncomingLink(id ir.NodeID) bool {
	for _, i := range t.byTarget[id] {
		k := t.edges[i].Kind
		if k == ir.EdgeResolvesToDefinition || k == ir.EdgeCustomPath {
			return true
		}
	}
	return false
}
