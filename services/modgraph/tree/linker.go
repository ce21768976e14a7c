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

	"github.com/crategraph/crategraph/services/modgraph/ir"
)

// LinkDeclarations connects `mod foo;` declarations to their
// conventionally-located file-based definitions.
//
// Description:
//
//	For every file-based module except the crate root, looks up the
//	module's canonical path in the declaration index. A hit produces a
//	ResolvesToDefinition edge from the declaration to the definition. A
//	miss is collected; such modules either carry a #[path] relocation
//	(handled by the later attribute stages) or belong to no declaration
//	at all (pruned at the end of the pipeline).
//
//	Edges for every hit are committed even when some modules miss, so a
//	partially-declared crate still links everything it can.
//
// Outputs:
//   - error: *UnlinkedModulesError (category ErrUnlinkedModules) listing the
//     misses, or nil when every file module linked. Callers treat the
//     aggregate as a warning.
func (t *ModuleTree) LinkDeclarations() error {
	if t.frozen {
		return ErrTreeFrozen
	}

	var pending []ir.Edge
	var unlinked []UnlinkedModule

	for _, id := range t.ModuleIDs() {
		m := t.modules[id]
		if !m.IsFileBased() || id == t.rootID {
			continue
		}
		declID, ok := t.declIndex[ir.JoinPath(m.DefnPath())]
		if !ok {
			unlinked = append(unlinked, UnlinkedModule{ModuleID: id, Path: ir.ClonePath(m.Path)})
			continue
		}
		pending = append(pending, ir.Edge{Source: declID, Target: id, Kind: ir.EdgeResolvesToDefinition})
	}

	for _, e := range pending {
		t.addEdge(e)
	}
	t.log.Debug("linked module declarations",
		slog.Int("linked", len(pending)),
		slog.Int("unlinked", len(unlinked)))

	if len(unlinked) > 0 {
		return &UnlinkedModulesError{Unlinked: unlinked}
	}
	return nil
}
