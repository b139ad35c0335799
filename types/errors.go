package types

import (
	"errors"
	"fmt"
)

// Key-space errors.
var (
	// ErrEmptyIdentifier is returned when constructing an identifier from
	// an empty string.
	ErrEmptyIdentifier = errors.New("identifier is empty")

	// ErrInvalidIdentifier is returned when an identifier contains a
	// character outside the accepted set.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrEmptyPath is returned when constructing a path with no segments.
	ErrEmptyPath = errors.New("path is empty")
)

// Store errors.
var (
	// ErrDeleteUnsupported is returned by stores whose backing medium
	// cannot delete keys. Callers must treat this as a capability gap,
	// not a silent no-op.
	ErrDeleteUnsupported = errors.New("delete not supported by this store")

	// ErrHeightUnsupported is returned by stores that cannot resolve
	// reads against historical committed heights.
	ErrHeightUnsupported = errors.New("historical height reads not supported by this store")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrHeightNotFound is returned when a proof is requested at a
	// height that was never committed or has been pruned away.
	ErrHeightNotFound = errors.New("height not available")

	// ErrInvalidProof is returned when a proof is malformed or fails
	// verification.
	ErrInvalidProof = errors.New("invalid proof")
)

// Application errors.
var (
	// ErrInvalidGenesis indicates malformed genesis state. Starting a
	// chain from invalid genesis is unrecoverable; callers must abort
	// process startup on this error.
	ErrInvalidGenesis = errors.New("invalid genesis state")

	// ErrModuleRegistered is returned when registering a module under an
	// identifier that is already taken.
	ErrModuleRegistered = errors.New("module identifier already registered")
)

// WrapValidationError wraps a validation error with field context.
func WrapValidationError(err error, field string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", field, err)
}
