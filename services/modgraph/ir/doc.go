// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ir defines the intermediate representation consumed by the module
// tree builder: modules, items, imports, visibility, and the edge kinds that
// connect them.
//
// Each parsed source file is delivered as a FileResult. Per-file extraction is
// performed upstream; this package only describes the shapes the resolver
// works with. All types carry JSON tags so FileResult batches can be loaded
// from disk by the CLI.
//
// # Ownership Model
//
// The tree package stores pointers to Module and Item values but does NOT own
// them:
//   - Modules and Items MUST NOT be mutated after being handed to a builder.
//   - FileResult batches are never copied (for memory efficiency).
//
// # Thread Safety
//
// All types in this package are plain data. They are safe for concurrent
// reads once construction is complete.
package ir
