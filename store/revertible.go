package store

import (
	"fmt"
	"sync"

	"github.com/blockberries/stateberry/types"
)

// revertOp is a single undo entry. A delete entry undoes an insert; a set
// entry restores a previously present value.
type revertOp struct {
	delete bool
	path   types.Path
	value  []byte
}

// RevertibleStore adds operation-log rollback on top of a backing store
// that may not support transactions natively. Every Set and Delete records
// its inverse; Reset replays the log in strict LIFO order against the
// backing store.
//
// Correctness hazard, by contract: replayed operations can restructure a
// merkleized backing store (rotations), so rollback restores key/value
// contents but does not guarantee recovering the exact pre-transaction
// root hash. Where root-hash determinism across rollback matters, use the
// in-memory store's native snapshot Reset instead. The wrapper remains
// useful over opaque durable backends that cannot be cheaply snapshotted.
type RevertibleStore struct {
	mu    sync.Mutex
	inner Store
	log   []revertOp
}

var _ Store = (*RevertibleStore)(nil)

// NewRevertibleStore wraps inner with an operation log.
func NewRevertibleStore(inner Store) *RevertibleStore {
	return &RevertibleStore{inner: inner}
}

// Set stores a value under path, recording the inverse operation first.
func (s *RevertibleStore) Set(path types.Path, value []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.inner.Set(path, value)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		s.log = append(s.log, revertOp{delete: true, path: path})
	} else {
		s.log = append(s.log, revertOp{path: path, value: prev})
	}
	return prev, nil
}

// Get implements Store.
func (s *RevertibleStore) Get(height types.Height, path types.Path) ([]byte, error) {
	return s.inner.Get(height, path)
}

// Delete removes path, recording the restore operation if the key was
// present.
func (s *RevertibleStore) Delete(path types.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.inner.Get(types.Pending(), path)
	if err != nil {
		return err
	}
	if err := s.inner.Delete(path); err != nil {
		return err
	}
	if prev != nil {
		s.log = append(s.log, revertOp{path: path, value: prev})
	}
	return nil
}

// GetKeys implements Store.
func (s *RevertibleStore) GetKeys(prefix types.Path) ([]types.Path, error) {
	return s.inner.GetKeys(prefix)
}

// Apply discards the operation log without touching the backing store, so
// stacked revertible layers each manage their own log.
func (s *RevertibleStore) Apply() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = nil
	return nil
}

// Commit discards the log and commits the backing store.
func (s *RevertibleStore) Commit() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = nil
	return s.inner.Commit()
}

// Reset replays the operation log in reverse, undoing every recorded
// mutation. Entries are popped before being applied and the replay goes
// directly to the backing store, never through the logging Set/Delete;
// replaying through the log would append new entries and risk
// non-termination.
//
// A failed replay step leaves the backing store partially reverted, which
// is unrecoverable; the error must be treated as fatal by the caller.
func (s *RevertibleStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.log) > 0 {
		op := s.log[len(s.log)-1]
		s.log = s.log[:len(s.log)-1]

		if op.delete {
			if err := s.inner.Delete(op.path); err != nil {
				return fmt.Errorf("reverting insert of %q: %w", op.path, err)
			}
			continue
		}
		if _, err := s.inner.Set(op.path, op.value); err != nil {
			return fmt.Errorf("restoring %q: %w", op.path, err)
		}
	}
	return nil
}

// Prune implements Store.
func (s *RevertibleStore) Prune(height uint64) (uint64, error) {
	return s.inner.Prune(height)
}

// CurrentHeight implements Store.
func (s *RevertibleStore) CurrentHeight() uint64 {
	return s.inner.CurrentHeight()
}

// Close implements Store.
func (s *RevertibleStore) Close() error {
	return s.inner.Close()
}

// PendingOps returns the number of operations recorded since the last
// Apply, Commit or Reset.
func (s *RevertibleStore) PendingOps() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.log)
}
