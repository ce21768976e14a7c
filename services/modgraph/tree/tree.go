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
	"sort"

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

const (
	// defaultMaxAncestorDepth bounds upward walks through Contains parents.
	// A crate nested deeper than this is assumed to be a containment cycle.
	defaultMaxAncestorDepth = 100

	// defaultMaxReExportDepth bounds chains of re-exports of re-exports.
	defaultMaxReExportDepth = 32
)

// pendingImport is a private `use` (or extern crate) waiting for later name
// resolution phases. The tree records them but does not resolve them.
type pendingImport struct {
	ModuleID ir.NodeID
	Import   ir.ImportRecord
}

// pendingExport is a re-exporting `use` waiting for ResolveReExports.
type pendingExport struct {
	ContainingModule ir.NodeID
	Export           ir.ImportRecord
}

// ModuleTree is the resolved module structure of one crate.
//
// Description:
//
//	Holds every module occurrence, the items they contain, three disjoint
//	path indices (definitions, declarations, public re-exports), and the
//	typed edges connecting nodes. Built through the staged pipeline
//	documented on the package; read-only after Freeze.
//
// Thread Safety: single writer while building; safe for concurrent reads
// after Freeze().
type ModuleTree struct {
	crateName string
	rootID    ir.NodeID
	rootFile  string
	frozen    bool

	modules map[ir.NodeID]*ir.Module
	items   map[ir.NodeID]*ir.Item

	// pendingImports holds private imports for downstream consumers. The
	// resolver itself never drains them.
	pendingImports []pendingImport

	// pendingExports is drained exactly once by ResolveReExports. A nil
	// slice pointer means the drain already happened.
	pendingExports *[]pendingExport

	// pendingPathAttrs is drained exactly once by ResolvePathAttrs.
	pendingPathAttrs *[]ir.NodeID

	// pathIndex maps canonical paths to definition nodes (modules and
	// items). Declarations never appear here.
	pathIndex map[string]ir.NodeID

	// declIndex maps canonical paths to module declarations only.
	declIndex map[string]ir.NodeID

	// reexportIndex maps public re-export paths to their targets.
	reexportIndex map[string]ir.NodeID

	// foundPathAttrs maps declarations to the absolute file path their
	// #[path] attribute resolved to.
	foundPathAttrs map[ir.NodeID]string

	// externalPathAttrs records declarations whose #[path] target lies
	// outside the crate's source directory.
	externalPathAttrs map[ir.NodeID]string

	// externalReExports records re-exports that named an external
	// dependency and were skipped.
	externalReExports []ExternalItemError

	edges    []ir.Edge
	bySource map[ir.NodeID][]int
	byTarget map[ir.NodeID][]int

	dependencyNames  map[string]bool
	maxAncestorDepth int
	maxReExportDepth int
	log              *slog.Logger
}

// Option configures a ModuleTree.
type Option func(*ModuleTree)

// WithLogger sets the structured logger used for stage and warning output.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *ModuleTree) {
		if l != nil {
			t.log = l
		}
	}
}

// WithCrateName records the crate the tree belongs to. Used in logs and
// persistence keys only.
func WithCrateName(name string) Option {
	return func(t *ModuleTree) { t.crateName = name }
}

// WithDependencyNames sets the external dependency names consulted by the
// re-export resolver. Typically the crate's direct dependencies.
func WithDependencyNames(names []string) Option {
	return func(t *ModuleTree) {
		t.dependencyNames = make(map[string]bool, len(names))
		for _, n := range names {
			t.dependencyNames[n] = true
		}
	}
}

// WithMaxAncestorDepth overrides the ancestor-walk recursion bound.
func WithMaxAncestorDepth(n int) Option {
	return func(t *ModuleTree) {
		if n > 0 {
			t.maxAncestorDepth = n
		}
	}
}

// WithMaxReExportDepth overrides the re-export chain depth bound.
func WithMaxReExportDepth(n int) Option {
	return func(t *ModuleTree) {
		if n > 0 {
			t.maxReExportDepth = n
		}
	}
}

// NewTree creates an empty tree rooted at the given crate root module.
//
// Description:
//
//	The root must be a file-based module (src/lib.rs or src/main.rs); its
//	file path anchors #[path] attribute classification. The root is NOT
//	added to the module map here; callers add it through AddModule along
//	with every other module.
//
// Outputs:
//   - *ModuleTree: the empty tree.
//   - error: ErrRootNotFileBased if the root has no backing file.
func NewTree(root *ir.Module, opts ...Option) (*ModuleTree, error) {
	if root == nil || !root.IsFileBased() || root.FilePath == "" {
		return nil, fmt.Errorf("%w: crate root must be a file-based module", ErrRootNotFileBased)
	}
	exports := make([]pendingExport, 0)
	attrs := make([]ir.NodeID, 0)
	t := &ModuleTree{
		rootID:            root.ID,
		rootFile:          root.FilePath,
		modules:           make(map[ir.NodeID]*ir.Module),
		items:             make(map[ir.NodeID]*ir.Item),
		pendingExports:    &exports,
		pendingPathAttrs:  &attrs,
		pathIndex:         make(map[string]ir.NodeID),
		declIndex:         make(map[string]ir.NodeID),
		reexportIndex:     make(map[string]ir.NodeID),
		foundPathAttrs:    make(map[ir.NodeID]string),
		externalPathAttrs: make(map[ir.NodeID]string),
		bySource:          make(map[ir.NodeID][]int),
		byTarget:          make(map[ir.NodeID][]int),
		dependencyNames:   make(map[string]bool),
		maxAncestorDepth:  defaultMaxAncestorDepth,
		maxReExportDepth:  defaultMaxReExportDepth,
		log:               slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// AddItem registers a non-module node so path segments can resolve through
// it. Unknown IDs referenced by edges are tolerated; unknown IDs referenced
// by path resolution are not.
func (t *ModuleTree) AddItem(item *ir.Item) error {
	if t.frozen {
		return ErrTreeFrozen
	}
	if item == nil || item.ID.IsZero() {
		return fmt.Errorf("invalid item: missing ID")
	}
	t.items[item.ID] = item
	return nil
}

// AddModule adds one module occurrence to the tree.
//
// Description:
//
//	Partitions the module's imports into the pending queues, indexes the
//	module by canonical path (declarations into declIndex, everything else
//	into pathIndex), and queues #[path] declarations for attribute
//	resolution.
//
// Errors:
//   - ErrTreeFrozen after Freeze().
//   - *DuplicatePathError when another node already holds the path.
//   - ErrDuplicateModuleID when the ID was added before.
//   - ErrInternalState when the export queue was already drained.
func (t *ModuleTree) AddModule(m *ir.Module) error {
	if t.frozen {
		return ErrTreeFrozen
	}
	if m == nil || m.ID.IsZero() {
		return fmt.Errorf("invalid module: missing ID")
	}
	if err := ir.ValidatePath(m.Path); err != nil {
		return fmt.Errorf("module %s: %w", m.ID, err)
	}
	if _, exists := t.modules[m.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModuleID, m.ID)
	}

	for _, imp := range m.Imports {
		switch {
		case imp.IsInheritedUse():
			t.pendingImports = append(t.pendingImports, pendingImport{ModuleID: m.ID, Import: imp})
		case imp.IsReExport():
			if t.pendingExports == nil {
				return internalErr("pending exports already drained; cannot queue re-export %s", imp.ID)
			}
			*t.pendingExports = append(*t.pendingExports, pendingExport{ContainingModule: m.ID, Export: imp})
		}
	}

	key := ir.JoinPath(m.Path)
	if m.IsDeclaration() {
		if existing, ok := t.declIndex[key]; ok && existing != m.ID {
			return &DuplicatePathError{Path: ir.ClonePath(m.Path), Existing: existing, Conflicting: m.ID}
		}
		t.declIndex[key] = m.ID
	} else {
		if existing, ok := t.pathIndex[key]; ok && existing != m.ID {
			return &DuplicatePathError{Path: ir.ClonePath(m.Path), Existing: existing, Conflicting: m.ID}
		}
		t.pathIndex[key] = m.ID
	}

	if _, ok := m.PathAttr(); ok {
		if t.pendingPathAttrs == nil {
			return internalErr("pending path attributes already drained; cannot queue %s", m.ID)
		}
		*t.pendingPathAttrs = append(*t.pendingPathAttrs, m.ID)
	}

	t.modules[m.ID] = m
	return nil
}

// AddEdgeBatch appends intra-file edges and maintains the adjacency indices.
// Edges may reference items the tree has not seen; resolution only follows
// edges whose endpoints it knows.
func (t *ModuleTree) AddEdgeBatch(edges []ir.Edge) error {
	if t.frozen {
		return ErrTreeFrozen
	}
	for _, e := range edges {
		if !e.Kind.IsValid() {
			return fmt.Errorf("invalid edge kind %d (%s -> %s)", int(e.Kind), e.Source, e.Target)
		}
		if e.Source.IsZero() || e.Target.IsZero() {
			return fmt.Errorf("edge with empty endpoint: %s", e)
		}
		t.addEdge(e)
	}
	return nil
}

// addEdge appends one edge, bypassing the frozen check. Internal stages use
// it after validation.
func (t *ModuleTree) addEdge(e ir.Edge) {
	idx := len(t.edges)
	t.edges = append(t.edges, e)
	t.bySource[e.Source] = append(t.bySource[e.Source], idx)
	t.byTarget[e.Target] = append(t.byTarget[e.Target], idx)
}

// Root returns the crate root module ID.
func (t *ModuleTree) Root() ir.NodeID { return t.rootID }

// RootFile returns the absolute path of the crate root's file.
func (t *ModuleTree) RootFile() string { return t.rootFile }

// CrateName returns the crate name, if configured.
func (t *ModuleTree) CrateName() string { return t.crateName }

// Frozen reports whether the tree has been finalized.
func (t *ModuleTree) Frozen() bool { return t.frozen }

// Module returns the module with the given ID.
func (t *ModuleTree) Module(id ir.NodeID) (*ir.Module, bool) {
	m, ok := t.modules[id]
	return m, ok
}

// Item returns the item with the given ID.
func (t *ModuleTree) Item(id ir.NodeID) (*ir.Item, bool) {
	it, ok := t.items[id]
	return it, ok
}

// ModuleCount returns the number of module occurrences in the tree.
func (t *ModuleTree) ModuleCount() int { return len(t.modules) }

// EdgeCount returns the number of edges in the tree.
func (t *ModuleTree) EdgeCount() int { return len(t.edges) }

// ModuleIDs returns every module ID in sorted order. The slice is a copy.
func (t *ModuleTree) ModuleIDs() []ir.NodeID {
	ids := make([]ir.NodeID, 0, len(t.modules))
	for id := range t.modules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ResolvePath looks up a canonical path in the definition index.
func (t *ModuleTree) ResolvePath(path []string) (ir.NodeID, bool) {
	id, ok := t.pathIndex[ir.JoinPath(path)]
	return id, ok
}

// ResolveDecl looks up a canonical path in the declaration index.
func (t *ModuleTree) ResolveDecl(path []string) (ir.NodeID, bool) {
	id, ok := t.declIndex[ir.JoinPath(path)]
	return id, ok
}

// ResolveReExport looks up a public re-export path.
func (t *ModuleTree) ResolveReExport(path []string) (ir.NodeID, bool) {
	id, ok := t.reexportIndex[ir.JoinPath(path)]
	return id, ok
}

// ExternalPathAttrs returns declarations whose #[path] target lies outside
// the source tree, keyed by declaration ID. The map is a copy.
func (t *ModuleTree) ExternalPathAttrs() map[ir.NodeID]string {
	out := make(map[ir.NodeID]string, len(t.externalPathAttrs))
	for k, v := range t.externalPathAttrs {
		out[k] = v
	}
	return out
}

// ExternalReExports returns the re-exports that named external dependencies.
// The slice is a copy.
func (t *ModuleTree) ExternalReExports() []ExternalItemError {
	out := make([]ExternalItemError, len(t.externalReExports))
	copy(out, t.externalReExports)
	return out
}

// PendingImportCount reports how many private imports are held for
// downstream resolution phases.
func (t *ModuleTree) PendingImportCount() int { return len(t.pendingImports) }

// EdgesFrom returns copies of the edges leaving the given node.
func (t *ModuleTree) EdgesFrom(id ir.NodeID) []ir.Edge {
	idxs := t.bySource[id]
	if len(idxs) == 0 {
		return nil
	}
	out := make([]ir.Edge, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, t.edges[i])
	}
	return out
}

// EdgesTo returns copies of the edges arriving at the given node.
func (t *ModuleTree) EdgesTo(id ir.NodeID) []ir.Edge {
	idxs := t.byTarget[id]
	if len(idxs) == 0 {
		return nil
	}
	out := make([]ir.Edge, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, t.edges[i])
	}
	return out
}

// containsChildren returns the targets of Contains edges leaving a module.
func (t *ModuleTree) containsChildren(id ir.NodeID) []ir.NodeID {
	var out []ir.NodeID
	for _, i := range t.bySource[id] {
		if t.edges[i].Kind == ir.EdgeContains {
			out = append(out, t.edges[i].Target)
		}
	}
	return out
}

// Freeze finalizes the tree, verifying index consistency first. After a
// successful Freeze the tree is read-only.
func (t *ModuleTree) Freeze() error {
	if t.frozen {
		return nil
	}
	if err := t.validateIndexes(); err != nil {
		return err
	}
	t.frozen = true
	return nil
}

// validateIndexes cross-checks the adjacency indices and path indices
// against the edge list and module map.
func (t *ModuleTree) validateIndexes() error {
	count := 0
	for _, idxs := range t.bySource {
		count += len(idxs)
	}
	if count != len(t.edges) {
		return internalErr("bySource holds %d edge refs, edge list holds %d", count, len(t.edges))
	}
	count = 0
	for _, idxs := range t.byTarget {
		count += len(idxs)
	}
	if count != len(t.edges) {
		return internalErr("byTarget holds %d edge refs, edge list holds %d", count, len(t.edges))
	}
	for key, id := range t.declIndex {
		m, ok := t.modules[id]
		if !ok {
			return internalErr("declIndex entry %q points at unknown module %s", key, id)
		}
		if !m.IsDeclaration() {
			return internalErr("declIndex entry %q points at non-declaration %s", key, id)
		}
	}
	for key, id := range t.pathIndex {
		if m, ok := t.modules[id]; ok && m.IsDeclaration() {
			return internalErr("pathIndex entry %q points at declaration %s", key, id)
		}
	}
	return nil
}
