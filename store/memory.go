package store

import (
	"fmt"
	"sync"

	"github.com/blockberries/stateberry/avl"
	"github.com/blockberries/stateberry/types"
)

// InMemoryStore is the merkleized in-memory implementation of
// ProvableStore.
//
// It keeps one tree per committed height (1-based, prunable), a staged tree
// holding the last fully-applied state, and a pending tree accumulating the
// in-flight unit of work. Trees share structure, so Apply, Commit and Reset
// are constant-size pointer copies and committed snapshots are immutable:
// readers of past heights never race with the writer mutating pending.
type InMemoryStore struct {
	mu sync.RWMutex

	// committed[i] is the snapshot at height base+i+1.
	committed []*avl.Tree
	base      uint64

	staged  *avl.Tree
	pending *avl.Tree
}

var _ ProvableStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		staged:  avl.NewTree(),
		pending: avl.NewTree(),
	}
}

// Set stores a value under path in the pending state. The value must be
// non-empty so the entry stays provable.
func (s *InMemoryStore) Set(path types.Path, value []byte) ([]byte, error) {
	if path.IsZero() {
		return nil, types.ErrEmptyPath
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("setting %q: value cannot be empty", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, _ := s.pending.Set(path.Bytes(), value)
	return prev, nil
}

// Get retrieves the value for path at the given height.
func (s *InMemoryStore) Get(height types.Height, path types.Path) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree := s.treeAt(height)
	if tree == nil {
		// Never-committed, pruned or future heights read as absent.
		return nil, nil
	}
	value, _ := tree.Get(path.Bytes())
	return value, nil
}

// Delete removes path from the pending state. Deleting an absent key is a
// no-op.
func (s *InMemoryStore) Delete(path types.Path) error {
	if path.IsZero() {
		return types.ErrEmptyPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending.Remove(path.Bytes())
	return nil
}

// GetKeys returns the pending-state keys matching prefix in ascending
// order.
func (s *InMemoryStore) GetKeys(prefix types.Path) ([]types.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var prefixBytes []byte
	if !prefix.IsZero() {
		prefixBytes = prefix.Bytes()
	}

	var paths []types.Path
	for _, key := range s.pending.GetKeys(prefixBytes) {
		path, err := types.ParsePath(string(key))
		if err != nil {
			return nil, fmt.Errorf("stored key %q is not a path: %w", key, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Apply promotes pending into staged without creating a new height.
func (s *InMemoryStore) Apply() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = s.pending.Copy()
	return nil
}

// Commit applies the pending state and appends it as a new committed
// height, returning the new root hash.
func (s *InMemoryStore) Commit() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = s.pending.Copy()
	s.committed = append(s.committed, s.staged.Copy())
	return s.staged.RootHash(), nil
}

// Reset discards the pending state, restoring it to staged.
func (s *InMemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = s.staged.Copy()
	return nil
}

// Prune discards committed snapshots strictly below height and returns the
// actual pruned-to height. The newest snapshot is always retained.
func (s *InMemoryStore) Prune(height uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.base + uint64(len(s.committed))
	if current == 0 {
		return 0, nil
	}
	target := min(height, current)
	if target <= s.base+1 {
		return s.base + 1, nil
	}

	drop := target - 1 - s.base
	s.committed = s.committed[drop:]
	s.base += drop
	return target, nil
}

// CurrentHeight returns the number of committed heights, including pruned
// ones.
func (s *InMemoryStore) CurrentHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.base + uint64(len(s.committed))
}

// RootHash returns the root hash of the pending state.
func (s *InMemoryStore) RootHash() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pending.RootHash()
}

// GetProof returns an ICS23 proof for path at the given height. The height
// must resolve to an available state; proving an absent key at an
// available height yields a valid non-existence proof.
func (s *InMemoryStore) GetProof(height types.Height, path types.Path) (*Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree := s.treeAt(height)
	if tree == nil {
		return nil, fmt.Errorf("proving %q at %s: %w", path, height, types.ErrHeightNotFound)
	}

	key := path.Bytes()
	raw, err := tree.GetProof(key).Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshaling proof for %q: %w", path, err)
	}

	value, exists := tree.Get(key)
	proof := &Proof{
		Key:        key,
		Value:      value,
		Exists:     exists,
		RootHash:   tree.RootHash(),
		ProofBytes: raw,
	}
	if n, ok := height.Committed(); ok {
		proof.Height = n
	} else if height.IsLatest() {
		proof.Height = s.base + uint64(len(s.committed))
	}
	return proof, nil
}

// Close implements Store. The in-memory store holds no external resources.
func (s *InMemoryStore) Close() error { return nil }

// treeAt resolves a Height to a tree, or nil when the height is not
// available. Callers must hold at least a read lock.
func (s *InMemoryStore) treeAt(height types.Height) *avl.Tree {
	switch {
	case height.IsPending():
		return s.pending
	case height.IsLatest():
		if len(s.committed) == 0 {
			return nil
		}
		return s.committed[len(s.committed)-1]
	default:
		n, _ := height.Committed()
		if n <= s.base || n > s.base+uint64(len(s.committed)) {
			return nil
		}
		return s.committed[n-s.base-1]
	}
}

// snapshotTree returns the committed snapshot at height n for export.
func (s *InMemoryStore) snapshotTree(n uint64) (*avl.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree := s.treeAt(types.Stable(n))
	if tree == nil {
		return nil, fmt.Errorf("snapshot at height %d: %w", n, types.ErrHeightNotFound)
	}
	return tree, nil
}

// restore replaces the store's entire state with a single committed
// snapshot at height n, as produced by snapshot import.
func (s *InMemoryStore) restore(n uint64, tree *avl.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.committed = []*avl.Tree{tree.Copy()}
	s.base = n - 1
	s.staged = tree.Copy()
	s.pending = tree.Copy()
}
