package types

import (
	"fmt"
	"strings"
)

// Path is a non-empty ordered sequence of Identifiers. Its serialized form
// joins the identifiers with "/", and that form is the key used by the
// merkle tree. Paths order lexicographically over their serialized form.
type Path struct {
	ids []Identifier
}

// NewPath builds a path from identifiers.
func NewPath(ids ...Identifier) (Path, error) {
	if len(ids) == 0 {
		return Path{}, ErrEmptyPath
	}
	for _, id := range ids {
		if id.IsZero() {
			return Path{}, fmt.Errorf("%w: zero identifier", ErrInvalidIdentifier)
		}
	}
	return Path{ids: append([]Identifier(nil), ids...)}, nil
}

// ParsePath parses a slash-delimited path, validating every segment.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return Path{}, ErrEmptyPath
	}
	segs := strings.Split(s, "/")
	ids := make([]Identifier, 0, len(segs))
	for _, seg := range segs {
		id, err := NewIdentifier(seg)
		if err != nil {
			return Path{}, fmt.Errorf("parsing path %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return Path{ids: ids}, nil
}

// MustPath is like ParsePath but panics on invalid input.
func MustPath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PathFromIdentifier returns the single-segment path for id.
func PathFromIdentifier(id Identifier) Path {
	return Path{ids: []Identifier{id}}
}

// Prepend returns a new path with id as the leading segment.
func (p Path) Prepend(id Identifier) Path {
	ids := make([]Identifier, 0, len(p.ids)+1)
	ids = append(ids, id)
	ids = append(ids, p.ids...)
	return Path{ids: ids}
}

// Identifiers returns a copy of the path's segments.
func (p Path) Identifiers() []Identifier {
	return append([]Identifier(nil), p.ids...)
}

// Len returns the number of segments.
func (p Path) Len() int { return len(p.ids) }

// IsZero reports whether the path is the (invalid) zero value.
func (p Path) IsZero() bool { return len(p.ids) == 0 }

// String returns the slash-joined serialized form.
func (p Path) String() string {
	parts := make([]string, len(p.ids))
	for i, id := range p.ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, "/")
}

// Bytes returns the serialized form as bytes, the key used by the tree.
func (p Path) Bytes() []byte { return []byte(p.String()) }
