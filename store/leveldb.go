package store

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/blockberries/stateberry/types"
)

// metaHeightKey persists the committed height counter. The leading '!' is
// outside the path character set, so metadata can never collide with user
// keys.
var metaHeightKey = []byte("!height")

// DefaultCacheSize is the default number of committed entries cached in
// memory by the durable backends.
const DefaultCacheSize = 1024

// LevelDBStore is a durable Store over LevelDB.
//
// The database holds only the latest committed state; pending and staged
// changes live in in-memory overlays until Commit writes them in one
// batch. Historical height reads are not supported, and the store is not
// provable (Commit returns a nil root hash).
type LevelDBStore struct {
	mu     sync.RWMutex
	db     *leveldb.DB
	cache  *lru.Cache[string, []byte]
	closed bool

	// Overlay values; a nil value is a tombstone.
	pending map[string][]byte
	staged  map[string][]byte

	height uint64
}

var _ Store = (*LevelDBStore)(nil)

// NewLevelDBStore opens (or creates) a LevelDB-backed store at path.
// cacheSize bounds the committed-read cache; 0 selects DefaultCacheSize.
func NewLevelDBStore(path string, cacheSize int) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb at %s: %w", path, err)
	}

	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating read cache: %w", err)
	}

	s := &LevelDBStore{
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

func (s *LevelDBStore) loadHeight() error {
	raw, err := s.db.Get(metaHeightKey, nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading height: %w", err)
	}
	if len(raw) != 8 {
		return fmt.Errorf("loading height: malformed counter of %d bytes", len(raw))
	}
	s.height = binary.BigEndian.Uint64(raw)
	return nil
}

// Set stores a value under path in the pending overlay.
func (s *LevelDBStore) Set(path types.Path, value []byte) ([]byte, error) {
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

// Get retrieves the value for path. Pending reads see the overlays;
// Latest (and Stable at the current height) read committed state only.
// Other historical heights are a capability gap of this backend.
func (s *LevelDBStore) Get(height types.Height, path types.Path) ([]byte, error) {
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

// pendingGet resolves a key through pending, staged, then the database.
// Callers must hold at least a read lock.
func (s *LevelDBStore) pendingGet(key string) ([]byte, error) {
	if value, ok := s.pending[key]; ok {
		return value, nil
	}
	if value, ok := s.staged[key]; ok {
		return value, nil
	}
	return s.committedGet(key)
}

// committedGet reads a committed key through the LRU cache. Callers must
// hold at least a read lock.
func (s *LevelDBStore) committedGet(key string) ([]byte, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, nil
	}
	value, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}
	s.cache.Add(key, value)
	return value, nil
}

// Delete removes path in the pending overlay.
func (s *LevelDBStore) Delete(path types.Path) error {
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
func (s *LevelDBStore) GetKeys(prefix types.Path) ([]types.Path, error) {
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
	iter := s.db.NewIterator(util.BytesPrefix(prefixBytes), nil)
	for iter.Next() {
		key := string(iter.Key())
		if key[0] == '!' {
			continue
		}
		present[key] = true
	}
	iter.Release()
	if err := iter.Error(); err != nil {
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

func applyOverlay(present map[string]bool, overlay map[string][]byte, prefix []byte) {
	for key, value := range overlay {
		if len(prefix) > 0 && (len(key) < len(prefix) || key[:len(prefix)] != string(prefix)) {
			continue
		}
		if value == nil {
			delete(present, key)
		} else {
			present[key] = true
		}
	}
}

// Apply folds the pending overlay into the staged overlay.
func (s *LevelDBStore) Apply() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	s.applyLocked()
	return nil
}

func (s *LevelDBStore) applyLocked() {
	for key, value := range s.pending {
		s.staged[key] = value
	}
	s.pending = make(map[string][]byte)
}

// Commit applies pending changes and writes the staged overlay to the
// database in a single batch, advancing the height counter.
func (s *LevelDBStore) Commit() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}

	s.applyLocked()

	batch := new(leveldb.Batch)
	for key, value := range s.staged {
		if value == nil {
			batch.Delete([]byte(key))
		} else {
			batch.Put([]byte(key), value)
		}
	}
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, s.height+1)
	batch.Put(metaHeightKey, heightBytes)

	if err := s.db.Write(batch, nil); err != nil {
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
func (s *LevelDBStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return types.ErrStoreClosed
	}

	s.pending = make(map[string][]byte)
	return nil
}

// Prune implements Store. The backend keeps no history below the latest
// height, so pruning reports the current height as the floor.
func (s *LevelDBStore) Prune(uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.height, nil
}

// CurrentHeight implements Store.
func (s *LevelDBStore) CurrentHeight() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.height
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
