package store

import (
	"sync/atomic"

	"github.com/blockberries/stateberry/types"
)

// NoopStore discards all writes and reads everything as absent. It serves
// consumers that only need the Store shape, and it deliberately does not
// implement Delete: it is the concrete example of the capability gap the
// Store contract allows for.
type NoopStore struct {
	height atomic.Uint64
}

var _ Store = (*NoopStore)(nil)

// NewNoopStore creates a no-op store.
func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

// Set implements Store. The value is discarded.
func (s *NoopStore) Set(path types.Path, _ []byte) ([]byte, error) {
	if path.IsZero() {
		return nil, types.ErrEmptyPath
	}
	return nil, nil
}

// Get implements Store. Every key reads as absent.
func (s *NoopStore) Get(types.Height, types.Path) ([]byte, error) {
	return nil, nil
}

// Delete implements Store by reporting the capability gap.
func (s *NoopStore) Delete(types.Path) error {
	return types.ErrDeleteUnsupported
}

// GetKeys implements Store.
func (s *NoopStore) GetKeys(types.Path) ([]types.Path, error) {
	return nil, nil
}

// Apply implements Store.
func (s *NoopStore) Apply() error { return nil }

// Commit implements Store. The height counter still advances so callers
// can drive a commit loop against it.
func (s *NoopStore) Commit() ([]byte, error) {
	s.height.Add(1)
	return nil, nil
}

// Reset implements Store.
func (s *NoopStore) Reset() error { return nil }

// Prune implements Store.
func (s *NoopStore) Prune(uint64) (uint64, error) {
	return s.height.Load(), nil
}

// CurrentHeight implements Store.
func (s *NoopStore) CurrentHeight() uint64 {
	return s.height.Load()
}

// Close implements Store.
func (s *NoopStore) Close() error { return nil }
