// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree assembles per-file parse results into one resolved module
// tree for a crate: declarations linked to definitions, #[path] relocations
// applied, re-exports resolved, and unreachable file modules pruned.
//
// # Ownership Model
//
// The tree stores pointers to ir.Module and ir.Item values but does NOT own
// them:
//   - Modules and items MUST NOT be mutated after AddModule / AddItem.
//   - The tree does not copy them (for memory efficiency).
//
// # Thread Safety
//
// ModuleTree is NOT safe for concurrent use while building. It is designed
// for:
//   - Single-writer access during the build pipeline.
//   - Read-only access after Freeze() is called.
//
// After Freeze(), the tree can be safely read from multiple goroutines.
//
// # Lifecycle
//
// The pipeline is strict and ordered; Build runs it end to end:
//  1. NewTree with the crate root module.
//  2. AddItem / AddModule / AddEdgeBatch for every file's contents.
//  3. LinkDeclarations: `mod foo;` -> foo.rs edges.
//  4. ResolvePathAttrs, LinkCustomPaths, RewritePathIndex: #[path] handling.
//  5. ResolveReExports: `pub use` edges and the public re-export index.
//  6. PruneUnlinkedFileModules: drop file modules nothing declares.
//  7. Freeze.
//
// Callers that drive the stages manually must keep this order; each stage
// assumes the previous one has run.
package tree
