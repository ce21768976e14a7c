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
	"strings"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

// Sentinel errors for tree operations. Structured errors below report these
// through errors.Is so callers can branch on category without unpacking.
var (
	// ErrTreeFrozen is returned when attempting to modify a frozen tree.
	// Once Freeze() is called, the tree becomes read-only.
	ErrTreeFrozen = errors.New("module tree is frozen and cannot be modified")

	// ErrDuplicatePath is the category for canonical-path index collisions:
	// two distinct nodes claiming the same path.
	ErrDuplicatePath = errors.New("duplicate canonical path")

	// ErrDuplicateModuleID is returned when a module ID is added twice.
	ErrDuplicateModuleID = errors.New("duplicate module ID")

	// ErrDuplicatePathAttr is the category for a declaration resolving two
	// #[path] targets.
	ErrDuplicatePathAttr = errors.New("duplicate path attribute")

	// ErrDuplicateDefinition is returned when a #[path] attribute matches
	// more than one file-based module.
	ErrDuplicateDefinition = errors.New("multiple definitions for path attribute")

	// ErrDefinitionNotFound is returned when a #[path] attribute points
	// inside the source tree but no parsed file-based module matches.
	ErrDefinitionNotFound = errors.New("definition not found for path attribute")

	// ErrModuleNotFound is returned when an ID is not a known module.
	ErrModuleNotFound = errors.New("module not found")

	// ErrRootModuleNotFound is returned when no input file defines the
	// crate root module.
	ErrRootModuleNotFound = errors.New("crate root module not found")

	// ErrContainingModuleNotFound is returned when a node has no Contains
	// parent reachable through the tree's edges.
	ErrContainingModuleNotFound = errors.New("containing module not found")

	// ErrRootNotFileBased is returned when an upward walk reaches the crate
	// root without finding a file-based module.
	ErrRootNotFileBased = errors.New("root module is not file-based")

	// ErrFilePathMissingParent is returned when a file-based module's file
	// path has no usable parent directory.
	ErrFilePathMissingParent = errors.New("module file path has no parent directory")

	// ErrUnlinkedModules is the category for the aggregate warning returned
	// by LinkDeclarations when some file modules have no declaration.
	// Callers treat it as non-fatal.
	ErrUnlinkedModules = errors.New("unlinked file modules found")

	// ErrUnresolvedReExport is the category for re-export source paths that
	// do not resolve to a primary node.
	ErrUnresolvedReExport = errors.New("unresolved re-export target")

	// ErrAmbiguousPath is the category for a path segment matching more
	// than one accessible candidate.
	ErrAmbiguousPath = errors.New("ambiguous path segment")

	// ErrConflictingReExport is the category for two re-exports claiming
	// the same public path for different targets.
	ErrConflictingReExport = errors.New("conflicting re-export path")

	// ErrReExportChainTooLong is returned when following re-exports of
	// re-exports exceeds the configured depth.
	ErrReExportChainTooLong = errors.New("re-export chain too long")

	// ErrExternalItem is the category for re-exports whose first segment
	// names an external dependency. Recorded, never resolved.
	ErrExternalItem = errors.New("re-export targets external dependency")

	// ErrNotPubliclyAccessible is returned when a node has no publicly
	// visible path.
	ErrNotPubliclyAccessible = errors.New("item is not publicly accessible")

	// ErrRecursionLimit is returned when an ancestor walk exceeds the
	// configured depth. Indicates a containment cycle or a pathological
	// tree.
	ErrRecursionLimit = errors.New("recursion limit exceeded")

	// ErrBuildCancelled is returned when a build is cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")

	// ErrInternalState is the category for invariant violations inside the
	// tree itself: drained queues drained again, index entries disagreeing
	// with the module map. These are bugs, not bad input.
	ErrInternalState = errors.New("internal state violation")
)

// internalErr wraps a formatted message in the ErrInternalState category.
func internalErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternalState, fmt.Sprintf(format, args...))
}

// DuplicatePathError reports a canonical-path collision between two nodes.
type DuplicatePathError struct {
	Path        []string
	Existing    ir.NodeID
	Conflicting ir.NodeID
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("duplicate canonical path %q: held by %s, conflicting %s",
		ir.JoinPath(e.Path), e.Existing, e.Conflicting)
}

// Is reports category membership for errors.Is.
func (e *DuplicatePathError) Is(target error) bool { return target == ErrDuplicatePath }

// DuplicatePathAttrError reports a declaration that resolved two #[path]
// targets.
type DuplicatePathAttrError struct {
	ModuleID ir.NodeID
	Resolved string
}

func (e *DuplicatePathAttrError) Error() string {
	return fmt.Sprintf("duplicate path attribute on %s (resolved %q)", e.ModuleID, e.Resolved)
}

func (e *DuplicatePathAttrError) Is(target error) bool { return target == ErrDuplicatePathAttr }

// UnlinkedModule identifies one file-based module with no matching
// declaration.
type UnlinkedModule struct {
	ModuleID ir.NodeID
	Path     []string
}

// UnlinkedModulesError aggregates every unlinked module found in one
// LinkDeclarations pass. It is a warning: the edges for linked modules are
// committed regardless.
type UnlinkedModulesError struct {
	Unlinked []UnlinkedModule
}

func (e *UnlinkedModulesError) Error() string {
	paths := make([]string, len(e.Unlinked))
	for i, u := range e.Unlinked {
		paths[i] = ir.JoinPath(u.Path)
	}
	return fmt.Sprintf("%d unlinked file modules: %s", len(e.Unlinked), strings.Join(paths, ", "))
}

func (e *UnlinkedModulesError) Is(target error) bool { return target == ErrUnlinkedModules }

// UnresolvedReExportError reports a re-export whose source path could not be
// resolved. Segment is the first segment that failed, when known.
type UnresolvedReExportError struct {
	ImportID ir.NodeID
	Path     []string
	Segment  string
	Reason   string
}

func (e *UnresolvedReExportError) Error() string {
	msg := fmt.Sprintf("unresolved re-export %s (path %q)", e.ImportID, ir.JoinPath(e.Path))
	if e.Segment != "" {
		msg += fmt.Sprintf(" at segment %q", e.Segment)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnresolvedReExportError) Is(target error) bool { return target == ErrUnresolvedReExport }

// AmbiguousPathError reports a path segment matched by more than one
// accessible candidate.
type AmbiguousPathError struct {
	Path       []string
	Segment    string
	Candidates []ir.NodeID
}

func (e *AmbiguousPathError) Error() string {
	return fmt.Sprintf("ambiguous segment %q in path %q: %d candidates",
		e.Segment, ir.JoinPath(e.Path), len(e.Candidates))
}

func (e *AmbiguousPathError) Is(target error) bool { return target == ErrAmbiguousPath }

// ConflictingReExportError reports two re-exports claiming the same public
// path for different targets.
type ConflictingReExportError struct {
	Path        []string
	Existing    ir.NodeID
	Conflicting ir.NodeID
}

func (e *ConflictingReExportError) Error() string {
	return fmt.Sprintf("conflicting re-export path %q: held by %s, conflicting %s",
		ir.JoinPath(e.Path), e.Existing, e.Conflicting)
}

func (e *ConflictingReExportError) Is(target error) bool { return target == ErrConflictingReExport }

// ExternalItemError reports a re-export whose first segment names a known
// external dependency. These are recorded and skipped, not resolved.
type ExternalItemError struct {
	Dependency string
	Path       []string
}

func (e *ExternalItemError) Error() string {
	return fmt.Sprintf("re-export %q targets external dependency %q", ir.JoinPath(e.Path), e.Dependency)
}

func (e *ExternalItemError) Is(target error) bool { return target == ErrExternalItem }

// DefinitionNotFoundError reports a #[path] attribute pointing inside the
// source tree at a file no parsed module covers.
type DefinitionNotFoundError struct {
	ModuleID ir.NodeID
	Target   string
}

func (e *DefinitionNotFoundError) Error() string {
	return fmt.Sprintf("no definition found for path attribute on %s (target %q)", e.ModuleID, e.Target)
}

func (e *DefinitionNotFoundError) Is(target error) bool { return target == ErrDefinitionNotFound }

// RecursionLimitError reports an upward walk that exceeded its depth bound.
type RecursionLimitError struct {
	Start ir.NodeID
	Limit int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit %d exceeded walking ancestors of %s", e.Limit, e.Start)
}

func (e *RecursionLimitError) Is(target error) bool { return target == ErrRecursionLimit }
