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
	"path/filepath"
	"sort"
	"strings"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

// ResolvePathAttrs turns each queued #[path = "..."] attribute into an
// absolute, lexically normalized file path.
//
// Description:
//
//	Drains the pending queue (ownership transfer: a second call is an
//	internal-state error). Each declaration's attribute value is joined
//	onto the directory of the nearest file-based ancestor, then `.` and
//	`..` segments are collapsed without touching the filesystem.
//
// Errors:
//   - ErrInternalState when the queue was already drained or a queued
//     module lost its attribute.
//   - *DuplicatePathAttrError when one declaration resolves twice.
//   - ErrContainingModuleNotFound / ErrRootNotFileBased /
//     ErrFilePathMissingParent from the ancestor walk.
func (t *ModuleTree) ResolvePathAttrs() error {
	if t.frozen {
		return ErrTreeFrozen
	}
	if t.pendingPathAttrs == nil {
		return internalErr("pending path attributes drained twice")
	}
	queued := *t.pendingPathAttrs
	t.pendingPathAttrs = nil

	for _, declID := range queued {
		m, ok := t.modules[declID]
		if !ok {
			return internalErr("queued path attribute for unknown module %s", declID)
		}
		attrVal, ok := m.PathAttr()
		if !ok {
			return internalErr("module %s queued without a path attribute", declID)
		}
		dir, err := t.declaringFileDir(declID)
		if err != nil {
			return err
		}
		resolved := normalizeRelocation(dir, attrVal)
		if prev, dup := t.foundPathAttrs[declID]; dup && prev != resolved {
			return &DuplicatePathAttrError{ModuleID: declID, Resolved: resolved}
		}
		t.foundPathAttrs[declID] = resolved
		t.log.Debug("resolved path attribute",
			slog.String("module", string(declID)),
			slog.String("attr", attrVal),
			slog.String("resolved", resolved))
	}
	return nil
}

// LinkCustomPaths matches each resolved #[path] target against the parsed
// file-based modules and records CustomPath edges.
//
// Description:
//
//	Exactly one file-based module with the target file path must exist
//	for an in-tree target. Targets outside the crate's source directory
//	are recorded in the external set and skipped; files are routinely
//	shared across crates that way.
//
// Errors:
//   - ErrDuplicateDefinition when two file modules claim the target file.
//   - *DefinitionNotFoundError when an in-tree target has no module.
func (t *ModuleTree) LinkCustomPaths() error {
	if t.frozen {
		return ErrTreeFrozen
	}
	srcRoot := filepath.Dir(t.rootFile)

	for _, declID := range t.sortedPathAttrDecls() {
		target := t.foundPathAttrs[declID]
		var defnID ir.NodeID
		found := false
		for _, id := range t.ModuleIDs() {
			m := t.modules[id]
			if !m.IsFileBased() || m.FilePath != target {
				continue
			}
			if found {
				return fmt.Errorf("%w: modules %s and %s both claim file %q", ErrDuplicateDefinition, defnID, id, target)
			}
			defnID = id
			found = true
		}
		if !found {
			if !strings.HasPrefix(target, srcRoot+string(filepath.Separator)) {
				t.externalPathAttrs[declID] = target
				t.log.Warn("path attribute target outside source tree",
					slog.String("module", string(declID)),
					slog.String("target", target))
				continue
			}
			return &DefinitionNotFoundError{ModuleID: declID, Target: target}
		}
		t.addEdge(ir.Edge{Source: declID, Target: defnID, Kind: ir.EdgeCustomPath})
	}
	return nil
}

// RewritePathIndex moves each relocated definition under its declaration's
// canonical path.
//
// Description:
//
//	A definition reached through #[path] was indexed under the path
//	implied by its file location; its real canonical path is the
//	declaration's. For each declaration with a CustomPath edge, the old
//	index entry is removed (a missing entry is only logged; an entry
//	held by a different node is an internal-state error) and the
//	definition is re-inserted under the declaration's path.
//
// Errors:
//   - ErrInternalState on index corruption.
//   - *DuplicatePathError when the declaration's path is already held by a
//     different node.
func (t *ModuleTree) RewritePathIndex() error {
	if t.frozen {
		return ErrTreeFrozen
	}

	for _, declID := range t.sortedPathAttrDecls() {
		defnID, ok := t.customPathTarget(declID)
		if !ok {
			if _, external := t.externalPathAttrs[declID]; external {
				continue
			}
			return internalErr("declaration %s has a resolved path attribute but no custom path edge", declID)
		}
		decl := t.modules[declID]
		defn, ok := t.modules[defnID]
		if !ok {
			return internalErr("custom path edge from %s targets unknown module %s", declID, defnID)
		}

		oldKey := ir.JoinPath(defn.Path)
		if existing, present := t.pathIndex[oldKey]; !present {
			t.log.Warn("relocated definition missing from path index",
				slog.String("path", oldKey),
				slog.String("module", string(defnID)))
		} else if existing != defnID {
			return internalErr("path index entry %q held by %s, expected %s", oldKey, existing, defnID)
		} else {
			delete(t.pathIndex, oldKey)
		}

		newKey := ir.JoinPath(decl.Path)
		if existing, present := t.pathIndex[newKey]; present && existing != defnID {
			return &DuplicatePathError{Path: ir.ClonePath(decl.Path), Existing: existing, Conflicting: defnID}
		}
		t.pathIndex[newKey] = defnID
	}
	return nil
}

// customPathTarget returns the definition a declaration's CustomPath edge
// points at.
func (t *ModuleTree) customPathTarget(declID ir.NodeID) (ir.NodeID, bool) {
	for _, i := range t.bySource[declID] {
		if t.edges[i].Kind == ir.EdgeCustomPath {
			return t.edges[i].Target, true
		}
	}
	return "", false
}

// sortedPathAttrDecls returns the declarations with resolved path attributes
// in deterministic order.
func (t *ModuleTree) sortedPathAttrDecls() []ir.NodeID {
	ids := make([]ir.NodeID, 0, len(t.foundPathAttrs))
	for id := range t.foundPathAttrs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// declaringFileDir walks up from a module until it reaches a file-based
// ancestor and returns that file's directory.
func (t *ModuleTree) declaringFileDir(id ir.NodeID) (string, error) {
	cur := id
	for depth := 0; depth <= t.maxAncestorDepth; depth++ {
		m, ok := t.modules[cur]
		if !ok {
			return "", internalErr("ancestor walk reached unknown module %s", cur)
		}
		if m.IsFileBased() {
			dir := filepath.Dir(m.FilePath)
			if dir == "" || dir == "." {
				return "", fmt.Errorf("%w: %q", ErrFilePathMissingParent, m.FilePath)
			}
			return dir, nil
		}
		if cur == t.rootID {
			return "", fmt.Errorf("%w: ancestor walk reached root %s", ErrRootNotFileBased, cur)
		}
		parent, err := t.ParentOf(cur)
		if err != nil {
			return "", err
		}
		cur = parent
	}
	return "", &RecursionLimitError{Start: id, Limit: t.maxAncestorDepth}
}

// normalizeRelocation joins a #[path] attribute value onto its declaring
// directory and collapses `.` and `..` lexically.
func normalizeRelocation(dir, attr string) string {
	if filepath.IsAbs(attr) {
		return filepath.Clean(attr)
	}
	return filepath.Join(dir, attr)
}
