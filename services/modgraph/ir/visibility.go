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

import "fmt"

// VisibilityKind enumerates the four visibility levels a declaration can
// carry. Restricted additionally names the module path the item is visible
// within (see Visibility.Scope).
type VisibilityKind int

const (
	// VisInherited is the default: visible only to the parent module.
	VisInherited VisibilityKind = iota
	// VisPublic is `pub`: visible everywhere.
	VisPublic
	// VisCrate is `pub(crate)`: visible anywhere within the crate.
	VisCrate
	// VisRestricted is `pub(in path)`: visible within the named module.
	VisRestricted
)

var visibilityKindNames = map[VisibilityKind]string{
	VisInherited:  "inherited",
	VisPublic:     "public",
	VisCrate:      "crate",
	VisRestricted: "restricted",
}

var visibilityKindValues = func() map[string]VisibilityKind {
	m := make(map[string]VisibilityKind, len(visibilityKindNames))
	for k, v := range visibilityKindNames {
		m[v] = k
	}
	return m
}()

// String returns the lowercase name of the kind.
func (k VisibilityKind) String() string {
	if s, ok := visibilityKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("visibility(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k VisibilityKind) MarshalText() ([]byte, error) {
	s, ok := visibilityKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown visibility kind %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *VisibilityKind) UnmarshalText(text []byte) error {
	v, ok := visibilityKindValues[string(text)]
	if !ok {
		return fmt.Errorf("unknown visibility kind %q", string(text))
	}
	*k = v
	return nil
}

// Visibility is a declaration's visibility level. Scope is populated only for
// VisRestricted and holds the path segments of the restricting module (e.g.
// ["crate", "internal"] for `pub(in crate::internal)`).
type Visibility struct {
	Kind  VisibilityKind `json:"kind"`
	Scope []string       `json:"scope,omitempty"`
}

// Public returns a `pub` visibility.
func Public() Visibility { return Visibility{Kind: VisPublic} }

// Crate returns a `pub(crate)` visibility.
func Crate() Visibility { return Visibility{Kind: VisCrate} }

// Inherited returns the default (private) visibility.
func Inherited() Visibility { return Visibility{Kind: VisInherited} }

// Restricted returns a `pub(in path)` visibility scoped to the given module
// path segments.
func Restricted(scope ...string) Visibility {
	return Visibility{Kind: VisRestricted, Scope: scope}
}

// IsPublic reports whether the visibility is plain `pub`.
func (v Visibility) IsPublic() bool { return v.Kind == VisPublic }

// IsInherited reports whether the visibility is the private default.
func (v Visibility) IsInherited() bool { return v.Kind == VisInherited }

// String renders the visibility the way it appears in source.
func (v Visibility) String() string {
	switch v.Kind {
	case VisPublic:
		return "pub"
	case VisCrate:
		return "pub(crate)"
	case VisRestricted:
		return fmt.Sprintf("pub(in %s)", JoinPath(v.Scope))
	default:
		return "private"
	}
}
