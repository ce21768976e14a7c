// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ir

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileResult is the output of parsing one source file: the modules and items
// it defines and the intra-file edges between them. A set of FileResults for
// one crate is the complete input to the module tree builder.
type FileResult struct {
	// FilePath is the absolute path of the parsed file.
	FilePath string `json:"file_path"`

	// CrateName is the owning crate, the same across one batch.
	CrateName string `json:"crate_name,omitempty"`

	// Modules defined or declared in this file, including the file's own
	// file-based module.
	Modules []*Module `json:"modules"`

	// Items are the non-module named nodes defined in this file.
	Items []*Item `json:"items,omitempty"`

	// Edges are the intra-file relationships (Contains, ModuleImports).
	// Cross-file edges are produced later by the resolver.
	Edges []Edge `json:"edges,omitempty"`
}

// RootModule returns the file's root-of-crate module, if this file defines
// one: a file-based module whose path is exactly ["crate"].
func (f *FileResult) RootModule() (*Module, bool) {
	for _, m := range f.Modules {
		if m.IsFileBased() && len(m.Path) == 1 {
			return m, true
		}
	}
	return nil, false
}

// LoadFileResult reads one FileResult from a JSON file on disk.
func LoadFileResult(path string) (*FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read parse result %s: %w", path, err)
	}
	var fr FileResult
	if err := json.Unmarshal(data, &fr); err != nil {
		return nil, fmt.Errorf("decode parse result %s: %w", path, err)
	}
	if len(fr.Modules) == 0 {
		return nil, fmt.Errorf("parse result %s contains no modules", path)
	}
	return &fr, nil
}
