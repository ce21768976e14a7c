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
	"fmt"
	"log/slog"
	"sort"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

// ResolveReExports resolves every queued `pub use` statement to its target
// and publishes the result in the re-export index.
//
// Description:
//
//	Drains the pending export queue (a second call logs a warning and
//	returns nil; the queue transfers ownership on the first drain). Each
//	export's source path is resolved relative to its containing module
//	through the scoped resolver. Successful resolutions produce a
//	ReExports edge and a public-path index entry; exports that name an
//	external dependency are recorded and skipped. Glob exports are
//	skipped with a debug log since they carry no single binding name.
//	A `use path::{self}` export resolves like any other: its source path
//	already names the module it republishes.
//
// Errors:
//   - *UnresolvedReExportError, *AmbiguousPathError from path resolution.
//   - *ConflictingReExportError when two exports claim one public path for
//     different targets. Re-publishing the same target is a no-op.
//   - ErrReExportChainTooLong when re-exports of re-exports exceed the
//     configured depth.
func (t *ModuleTree) ResolveReExports() error {
	if t.frozen {
		return ErrTreeFrozen
	}
	if t.pendingExports == nil {
		t.log.Warn("pending exports already drained; nothing to resolve")
		return nil
	}
	exports := *t.pendingExports
	t.pendingExports = nil

	for _, pe := range exports {
		// A glob re-export introduces one binding per item in the target
		// module, not a binding named by VisibleName; enumerating those
		// needs the target's item set, so globs are logged and skipped.
		if pe.Export.IsGlob {
			t.log.Debug("skipping glob re-export",
				slog.String("import", string(pe.Export.ID)),
				slog.String("module", string(pe.ContainingModule)),
				slog.String("path", ir.JoinPath(pe.Export.SourcePath)))
			continue
		}
		edge, pubPath, err := t.resolveSingleExport(pe)
		if err != nil {
			var ext *ExternalItemError
			if errors.As(err, &ext) {
				t.externalReExports = append(t.externalReExports, *ext)
				t.log.Debug("re-export targets external dependency",
					slog.String("dependency", ext.Dependency),
					slog.String("path", ir.JoinPath(ext.Path)))
				continue
			}
			return err
		}
		if err := t.addReexportChecked(pubPath, edge.Target); err != nil {
			return err
		}
		t.addEdge(edge)
	}
	return nil
}

// resolveSingleExport resolves one re-export to (edge, public path).
func (t *ModuleTree) resolveSingleExport(pe pendingExport) (ir.Edge, []string, error) {
	exp := pe.Export
	if len(exp.SourcePath) == 0 {
		return ir.Edge{}, nil, &UnresolvedReExportError{ImportID: exp.ID, Path: nil, Reason: "empty source path"}
	}

	base := pe.ContainingModule
	segments := exp.SourcePath
	if segments[0] == "crate" {
		base = t.rootID
		segments = segments[1:]
		if len(segments) == 0 {
			return ir.Edge{}, nil, &UnresolvedReExportError{ImportID: exp.ID, Path: exp.SourcePath, Reason: "bare crate path"}
		}
	}

	// Root-level exports whose first segment names a dependency leave the
	// crate; those are recorded, not resolved.
	if base == t.rootID && t.dependencyNames[segments[0]] {
		return ir.Edge{}, nil, &ExternalItemError{Dependency: segments[0], Path: ir.ClonePath(exp.SourcePath)}
	}

	targetID, err := t.resolvePathRelativeTo(pe.ContainingModule, base, segments, exp.SourcePath, exp.ID)
	if err != nil {
		return ir.Edge{}, nil, err
	}

	targetID, err = t.followReExportChain(targetID, exp.ID, exp.SourcePath)
	if err != nil {
		return ir.Edge{}, nil, err
	}

	if _, isModule := t.modules[targetID]; !isModule {
		item, known := t.items[targetID]
		if !known || !item.Kind.IsPrimary() {
			return ir.Edge{}, nil, &UnresolvedReExportError{
				ImportID: exp.ID,
				Path:     exp.SourcePath,
				Reason:   fmt.Sprintf("target %s is not a primary node", targetID),
			}
		}
	}

	containing, ok := t.modules[pe.ContainingModule]
	if !ok {
		return ir.Edge{}, nil, internalErr("re-export %s queued under unknown module %s", exp.ID, pe.ContainingModule)
	}
	pubPath := append(ir.ClonePath(containing.Path), exp.VisibleName)

	return ir.Edge{Source: exp.ID, Target: targetID, Kind: ir.EdgeReExports}, pubPath, nil
}

// followReExportChain hops through already-resolved re-exports so the index
// points at the ultimate target. A chain deeper than the configured bound is
// assumed to be circular.
func (t *ModuleTree) followReExportChain(id ir.NodeID, importID ir.NodeID, srcPath []string) (ir.NodeID, error) {
	cur := id
	for depth := 0; ; depth++ {
		item, ok := t.items[cur]
		if !ok || item.Kind != ir.ItemKindImport {
			return cur, nil
		}
		next, ok := t.reexportTarget(cur)
		if !ok {
			// The chained export has not resolved yet; keep the import
			// node as the target.
			return cur, nil
		}
		if depth >= t.maxReExportDepth {
			return "", fmt.Errorf("%w: depth %d following %s (re-export %s)",
				ErrReExportChainTooLong, t.maxReExportDepth, ir.JoinPath(srcPath), importID)
		}
		cur = next
	}
}

// reexportTarget returns the target of an import node's ReExports edge.
func (t *ModuleTree) reexportTarget(importID ir.NodeID) (ir.NodeID, bool) {
	for _, i := range t.bySource[importID] {
		if t.edges[i].Kind == ir.EdgeReExports {
			return t.edges[i].Target, true
		}
	}
	return "", false
}

// addReexportChecked publishes one public path in the re-export index.
// Re-inserting the same target is idempotent; a different target conflicts.
func (t *ModuleTree) addReexportChecked(pubPath []string, target ir.NodeID) error {
	key := ir.JoinPath(pubPath)
	if existing, ok := t.reexportIndex[key]; ok {
		if existing == target {
			return nil
		}
		return &ConflictingReExportError{Path: ir.ClonePath(pubPath), Existing: existing, Conflicting: target}
	}
	t.reexportIndex[key] = target
	return nil
}

// resolvePathRelativeTo walks a source path from a base module.
//
// Description:
//
//	Handles the scoped prefixes first: `self` anchors at the base (a bare
//	`self` resolves to the base itself), each leading `super` hops to the
//	parent. The remaining segments resolve through Contains children:
//	modules must be accessible from the module being walked, non-module
//	items are assumed visible (their visibility gates usage, not path
//	existence). Every segment before the last must land on a module.
//
// Inputs:
//   - origin: module containing the `use` statement; accessibility is
//     judged from here.
//   - base: module the walk starts from.
//   - segments: path segments after crate-prefix stripping.
//   - fullPath, importID: identify the originating export in errors.
func (t *ModuleTree) resolvePathRelativeTo(origin, base ir.NodeID, segments []string, fullPath []string, importID ir.NodeID) (ir.NodeID, error) {
	cur := base
	i := 0

	if i < len(segments) && segments[i] == "self" {
		i++
		if i == len(segments) {
			return cur, nil
		}
	}
	for i < len(segments) && segments[i] == "super" {
		parent, err := t.ParentOf(cur)
		if err != nil {
			return "", &UnresolvedReExportError{
				ImportID: importID,
				Path:     fullPath,
				Segment:  "super",
				Reason:   fmt.Sprintf("no parent for %s", cur),
			}
		}
		cur = parent
		i++
		if i == len(segments) {
			return cur, nil
		}
	}

	for ; i < len(segments); i++ {
		seg := segments[i]
		candidates, hidden := t.matchChildren(origin, cur, seg)
		switch len(candidates) {
		case 0:
			reason := ""
			if hidden {
				reason = fmt.Sprintf("not visible from %s", origin)
			}
			return "", &UnresolvedReExportError{ImportID: importID, Path: fullPath, Segment: seg, Reason: reason}
		case 1:
			// fallthrough below
		default:
			return "", &AmbiguousPathError{Path: ir.ClonePath(fullPath), Segment: seg, Candidates: candidates}
		}
		next := candidates[0]
		// Walking continues through the body: a declaration segment hands
		// off to its linked definition.
		if m, ok := t.modules[next]; ok && m.IsDeclaration() {
			if defn, linked := t.definitionOf(next); linked {
				next = defn
			}
		}
		if i < len(segments)-1 {
			if _, isModule := t.modules[next]; !isModule {
				return "", &UnresolvedReExportError{
					ImportID: importID,
					Path:     fullPath,
					Segment:  seg,
					Reason:   "intermediate segment is not a module",
				}
			}
		}
		cur = next
	}
	return cur, nil
}

// definitionOf returns the definition a declaration resolves to, through
// its ResolvesToDefinition or CustomPath edge.
func (t *ModuleTree) definitionOf(declID ir.NodeID) (ir.NodeID, bool) {
	for _, i := range t.bySource[declID] {
		k := t.edges[i].Kind
		if k == ir.EdgeResolvesToDefinition || k == ir.EdgeCustomPath {
			return t.edges[i].Target, true
		}
	}
	return "", false
}

// matchChildren collects the Contains children of a module that answer to
// the given name and are accessible from the origin module, in deterministic
// order. The second result reports whether a name matched but was hidden, so
// callers can say "not visible" instead of "not found".
func (t *ModuleTree) matchChildren(origin, moduleID ir.NodeID, name string) ([]ir.NodeID, bool) {
	var out []ir.NodeID
	hidden := false
	for _, child := range t.containsChildren(moduleID) {
		if m, ok := t.modules[child]; ok {
			if m.Name == name {
				if t.IsAccessible(origin, child) {
					out = append(out, child)
				} else {
					hidden = true
				}
			}
			continue
		}
		if it, ok := t.items[child]; ok && it.Name == name {
			out = append(out, child)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, hidden
}
