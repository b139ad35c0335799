package store

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blockberries/stateberry/types"
)

// BadgerStore is a durable Store over Badger. It mirrors the LevelDB
// backend's layering: the database holds the latest committed state,
// pending and staged changes live in in-memory overlays, and historical
// height reads are a capability gap.
type BadgerStore struct {
	mu     sync.RWMutex
	db     *badger.DB
	cache  *lru.Cache[string, []byte]
	closed bool

	// Overlay values; a nil value is a tombstone.
	pending map[string][]byte
	staged  map[string][]byte

	height uint64
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) a Badger-backed store at path.
// cacheSize bounds the committed-read cache; 0 selects DefaultCacheSize.
func NewBadgerStore(path string, cacheSize int) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", path, err)
	}

	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating read cache: %w", err)
	}

	s := &BadgerStore{
		db:      db,
		cache:   cache,
		pending: make(map[string][]byte),
		staged:  make(map[string][]byte),
	}
	if err := s.loadHeight(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) loadHeight() error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaHeightKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading height: %w", err)
		}
		return item.Value(func(raw []byte) error {
			if len(raw) != 8 {
				return fmt.Errorf("loading height: malformed counter of %d bytes", len(raw))
			}
			s.height = binary.BigEndian.Uint64(raw)
			return nil
		})
	})
}

// Set stores a value under path in the pending overlay.
func (s *BadgerStore) Set(path types.Path, value []byte) ([]byte, error) {
	if path.IsZero() {
		return nil, types.ErrEmptyPath
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("setting %q: value cannot be empty", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	prev, err := s.pendingGet(path.String())
	if err != nil {
		return nil, err
	}
	s.pending[path.String()] = append([]byte(nil), value...)
	return prev, nil
}

// Get retrieves the value for path; see LevelDBStore.Get for the height
// resolution rules shared by the durable backends.
func (s *BadgerStore) Get(height types.Height, path types.Path) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	switch {
	case height.IsPending():
		return s.pendingGet(path.String())
	case height.IsLatest():
		return s.committedGet(path.String())
	default:
		n, _ := height.Committed()
		if n != s.height {
			return nil, fmt.Errorf("reading %q at %s: %w", path, height, types.ErrHeightUnsupported)
		}
		return s.committedGet(path.String())
	}
}

func (s *BadgerStore) pendingGet(key string) ([]byte, error) {
	if value, ok := s.pending[key]; ok {
		return value, nil
	}
	if value, ok := s.staged[key]; ok {
		return value, nil
	}
	return s.committedGet(key)
}

func (s *BadgerStore) committedGet(key string) ([]byte, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, nil
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}
	if value != nil {
		s.cache.Add(key, value)
	}
	return value, nil
}

// Delete removes path in the pending overlay.
func (s *BadgerStore) Delete(path types.Path) error {
	if path.IsZero() {
		return types.ErrEmptyPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	s.pending[path.String()] = nil
	return nil
}

// GetKeys returns the pending-visible keys matching prefix.
func (s *BadgerStore) GetKeys(prefix types.Path) ([]types.Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	var prefixBytes []byte
	if !prefix.IsZero() {
		prefixBytes = prefix.Bytes()
	}

	present := make(map[string]bool)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixBytes
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if key[0] == '!' {
				continue
			}
			present[key] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating prefix %q: %w", prefix, err)
	}

	applyOverlay(present, s.staged, prefixBytes)
	applyOverlay(present, s.pending, prefixBytes)

	keys := make([]string, 0, len(present))
	for key := range present {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	paths := make([]types.Path, 0, len(keys))
	for _, key := range keys {
		path, err := types.ParsePath(key)
		if err != nil {
			return nil, fmt.Errorf("stored key %q is not a path: %w", key, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Apply folds the pending overlay into the staged overlay.
func (s *BadgerStore) Apply() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	s.applyLocked()
	return nil
}

func (s *BadgerStore) applyLocked() {
	for key, value := range s.pending {
		s.staged[key] = value
	}
	s.pending = make(map[string][]byte)
}

// Commit applies pending changes and writes the staged overlay in a single
// write batch, advancing the height counter.
func (s *BadgerStore) Commit() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	s.applyLocked()

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for key, value := range s.staged {
		if value == nil {
			if err := wb.Delete([]byte(key)); err != nil {
				return nil, fmt.Errorf("batching delete of %q: %w", key, err)
			}
		} else {
			if err := wb.Set([]byte(key), value); err != nil {
				return nil, fmt.Errorf("batching %q: %w", key, err)
			}
		}
	}
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, s.height+1)
	if err := wb.Set(metaHeightKey, heightBytes); err != nil {
		return nil, fmt.Errorf("batching height: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}

	for key := range s.staged {
		s.cache.Remove(key)
	}
	s.staged = make(map[string][]byte)
	s.height++

	// Not merkleized; no root hash to report.
	return nil, nil
}

// Reset discards the pending overlay, restoring it to the staged state.
func (s *BadgerStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	s.pending = make(map[string][]byte)
	return nil
}

// Prune implements Store. Badger keeps no history below the latest height.
func (s *BadgerStore) Prune(uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.height, nil
}

// CurrentHeight implements Store.
func (s *BadgerStore) CurrentHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.height
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
