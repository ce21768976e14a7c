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
	"fmt"
	"strings"
)

// JoinPath renders canonical path segments in source notation, e.g.
// ["crate", "utils", "parse"] -> "crate::utils::parse".
func JoinPath(segments []string) string {
	return strings.Join(segments, "::")
}

// SplitPath is the inverse of JoinPath.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "::")
}

// ValidatePath checks that a canonical path is usable as an index key: at
// least one segment and no empty segments.
func ValidatePath(segments []string) error {
	if len(segments) == 0 {
		return fmt.Errorf("canonical path must have at least one segment")
	}
	for i, s := range segments {
		if s == "" {
			return fmt.Errorf("canonical path segment %d is empty in %q", i, JoinPath(segments))
		}
	}
	return nil
}

// ClonePath returns an independent copy of the segments. Callers that store
// paths across mutations use this to avoid aliasing the input slice.
func ClonePath(segments []string) []string {
	if segments == nil {
		return nil
	}
	out := make([]string, len(segments))
	copy(out, segments)
	return out
}
