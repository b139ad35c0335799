package store

import (
	"sync"

	"github.com/blockberries/stateberry/types"
)

// SharedStore grants multiple owners access to one underlying provable
// store. Every handle produced by Share refers to the same instance and
// the same lock, so writes are mutually exclusive across all owners while
// concurrent readers may proceed together.
//
// This is how independent modules each hold what looks like their own
// store while the orchestrator retains a single consistent view.
type SharedStore struct {
	mu    *sync.RWMutex
	inner ProvableStore
}

var _ ProvableStore = (*SharedStore)(nil)

// NewSharedStore wraps inner in a shared-ownership handle.
func NewSharedStore(inner ProvableStore) *SharedStore {
	return &SharedStore{
		mu:    &sync.RWMutex{},
		inner: inner,
	}
}

// Share returns a new handle to the same underlying store. It is not a
// copy of state: all handles observe every mutation.
func (s *SharedStore) Share() *SharedStore {
	return &SharedStore{mu: s.mu, inner: s.inner}
}

// Set implements Store.
func (s *SharedStore) Set(path types.Path, value []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Set(path, value)
}

// Get implements Store.
func (s *SharedStore) Get(height types.Height, path types.Path) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.Get(height, path)
}

// Delete implements Store.
func (s *SharedStore) Delete(path types.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Delete(path)
}

// GetKeys implements Store.
func (s *SharedStore) GetKeys(prefix types.Path) ([]types.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.GetKeys(prefix)
}

// Apply implements Store.
func (s *SharedStore) Apply() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Apply()
}

// Commit implements Store.
func (s *SharedStore) Commit() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Commit()
}

// Reset implements Store.
func (s *SharedStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Reset()
}

// Prune implements Store.
func (s *SharedStore) Prune(height uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Prune(height)
}

// CurrentHeight implements Store.
func (s *SharedStore) CurrentHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.CurrentHeight()
}

// RootHash implements ProvableStore.
func (s *SharedStore) RootHash() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.RootHash()
}

// GetProof implements ProvableStore.
func (s *SharedStore) GetProof(height types.Height, path types.Path) (*Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inner.GetProof(height, path)
}

// Close implements Store.
func (s *SharedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
