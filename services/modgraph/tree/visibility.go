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
	"log/slog"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

// ParentOf returns the module that contains the given node.
//
// Description:
//
//	A node's parent is normally the source of its incoming Contains edge.
//	File-based definitions have no direct Contains parent; for those the
//	walk hops through the incoming ResolvesToDefinition or CustomPath
//	edge to the declaration, whose Contains parent is the answer.
//
// Errors:
//   - ErrContainingModuleNotFound when neither route yields a parent.
func (t *ModuleTree) ParentOf(id ir.NodeID) (ir.NodeID, error) {
	for _, i := range t.byTarget[id] {
		if t.edges[i].Kind == ir.EdgeContains {
			return t.edges[i].Source, nil
		}
	}
	for _, i := range t.byTarget[id] {
		k := t.edges[i].Kind
		if k != ir.EdgeResolvesToDefinition && k != ir.EdgeCustomPath {
			continue
		}
		declID := t.edges[i].Source
		for _, j := range t.byTarget[declID] {
			if t.edges[j].Kind == ir.EdgeContains {
				return t.edges[j].Source, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrContainingModuleNotFound, id)
}

// EffectiveVisibility returns the visibility that governs access to a
// module.
//
// Description:
//
//	Inline modules and the crate root carry their own visibility. A
//	file-based definition's effective visibility is the visibility of its
//	declaration (`pub mod foo;` decides, not the file). When a file
//	module has no linked declaration the walk falls back to the module's
//	own visibility, which only happens for modules about to be pruned.
func (t *ModuleTree) EffectiveVisibility(id ir.NodeID) ir.Visibility {
	m, ok := t.modules[id]
	if !ok {
		return ir.Inherited()
	}
	if !m.IsFileBased() || id == t.rootID {
		return m.Visibility
	}
	for _, i := range t.byTarget[id] {
		k := t.edges[i].Kind
		if k != ir.EdgeResolvesToDefinition && k != ir.EdgeCustomPath {
			continue
		}
		if decl, ok := t.modules[t.edges[i].Source]; ok {
			return decl.Visibility
		}
	}
	t.log.Debug("file module has no declaration; using own visibility",
		slog.String("module", string(id)))
	return m.Visibility
}

// IsAccessible reports whether the target module is visible from the source
// module.
//
// Description:
//
//	Public and crate visibility are always accessible within one tree.
//	Restricted visibility resolves its scope path through the definition
//	index and then the declaration index; the target is accessible when
//	the source is the restriction module or reaches it walking ancestors.
//	Inherited (private) visibility is accessible from any structural
//	ancestor of the target, walking through declaration indirection.
func (t *ModuleTree) IsAccessible(source, target ir.NodeID) bool {
	vis := t.EffectiveVisibility(target)
	switch vis.Kind {
	case ir.VisPublic, ir.VisCrate:
		return true
	case ir.VisRestricted:
		restriction, ok := t.resolveRestriction(vis.Scope)
		if !ok {
			return false
		}
		cur := source
		for depth := 0; depth <= t.maxAncestorDepth; depth++ {
			if cur == restriction {
				return true
			}
			parent, err := t.ParentOf(cur)
			if err != nil {
				return false
			}
			cur = parent
		}
		return false
	case ir.VisInherited:
		cur := target
		for depth := 0; depth <= t.maxAncestorDepth; depth++ {
			parent, err := t.ParentOf(cur)
			if err != nil {
				return false
			}
			if parent == source {
				return true
			}
			cur = parent
		}
		return false
	default:
		return false
	}
}

// resolveRestriction maps a `pub(in path)` scope to a module ID, trying the
// definition index first and the declaration index second.
func (t *ModuleTree) resolveRestriction(scope []string) (ir.NodeID, bool) {
	key := ir.JoinPath(scope)
	if id, ok := t.pathIndex[key]; ok {
		return id, true
	}
	if id, ok := t.declIndex[key]; ok {
		return id, true
	}
	return "", false
}
