// Package types provides the key-space primitives and error taxonomy shared
// by the store, module and app layers.
package types

import (
	"fmt"
	"strings"
)

// Identifier is a single validated path segment. It is immutable once
// constructed; the zero value is invalid.
//
// The accepted character set is alphanumerics plus `.`, `_`, `+`, `-`, `#`,
// `[`, `]`, `<` and `>`. Slashes are excluded so identifiers compose into
// slash-delimited paths without escaping.
type Identifier struct {
	s string
}

// NewIdentifier validates s and returns it as an Identifier.
func NewIdentifier(s string) (Identifier, error) {
	if s == "" {
		return Identifier{}, ErrEmptyIdentifier
	}
	for i := 0; i < len(s); i++ {
		if !isIdentifierByte(s[i]) {
			return Identifier{}, fmt.Errorf("%w: %q contains %q", ErrInvalidIdentifier, s, s[i])
		}
	}
	return Identifier{s: s}, nil
}

// MustIdentifier is like NewIdentifier but panics on invalid input.
// Intended for identifiers fixed at construction time.
func MustIdentifier(s string) Identifier {
	id, err := NewIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identifier text.
func (id Identifier) String() string { return id.s }

// IsZero reports whether the identifier is the (invalid) zero value.
func (id Identifier) IsZero() bool { return id.s == "" }

func isIdentifierByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("._+-#[]<>", c) >= 0
}
