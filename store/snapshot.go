package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blockberries/stateberry/avl"
	"github.com/blockberries/stateberry/memory"
	"github.com/blockberries/stateberry/metrics"
)

// Snapshot errors.
var (
	ErrSnapshotNotFound      = errors.New("snapshot not found")
	ErrSnapshotChunkNotFound = errors.New("snapshot chunk not found")
	ErrSnapshotCorrupt       = errors.New("snapshot is corrupt")
)

// Default snapshot configuration.
const (
	DefaultChunkSize = 10 * 1024 * 1024 // 10 MB per chunk
	SnapshotVersion  = 1                // Snapshot format version
)

// Snapshot describes an exported state snapshot at a committed height. The
// payload is the gzip-compressed in-order entry stream of the height's
// tree, split into chunks; RootHash pins the tree the stream must rebuild.
type Snapshot struct {
	// Version is the snapshot format version.
	Version uint32

	// Height is the committed height this snapshot was taken at.
	Height uint64

	// Hash uniquely identifies this snapshot (sha256 over height and
	// chunks).
	Hash []byte

	// ChunkSize is the maximum size of each chunk in bytes.
	ChunkSize int

	// Chunks is the total number of chunks.
	Chunks int

	// RootHash is the merkle root the imported tree must reproduce.
	RootHash []byte

	// CreatedAt is when this snapshot was created.
	CreatedAt time.Time
}

// SnapshotInfo summarizes an available snapshot.
type SnapshotInfo struct {
	Height    uint64
	Hash      []byte
	Chunks    int
	Size      int64
	CreatedAt time.Time
}

// SnapshotChunk is a single chunk of snapshot payload.
type SnapshotChunk struct {
	Index int
	Hash  []byte
	Data  []byte
}

// ChunkProvider supplies chunks during snapshot import.
type ChunkProvider interface {
	// GetChunk returns the chunk at the given index.
	GetChunk(index int) ([]byte, error)

	// ChunkCount returns the total number of chunks.
	ChunkCount() int
}

// FileSnapshotStore persists snapshots of an in-memory store to the
// filesystem, one directory per snapshot with a binary metadata file and
// numbered chunk files.
type FileSnapshotStore struct {
	path      string
	source    *InMemoryStore
	chunkSize int
	metrics   metrics.Metrics
	mu        sync.RWMutex
}

// NewFileSnapshotStore creates a snapshot store rooted at path.
func NewFileSnapshotStore(path string, source *InMemoryStore) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &FileSnapshotStore{
		path:      path,
		source:    source,
		chunkSize: DefaultChunkSize,
		metrics:   metrics.NewNopMetrics(),
	}, nil
}

// SetChunkSize sets the chunk size for new snapshots.
func (s *FileSnapshotStore) SetChunkSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunkSize = size
}

// SetMetrics replaces the snapshot store's metrics sink.
func (s *FileSnapshotStore) SetMetrics(m metrics.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Create exports the committed tree at height into a new snapshot.
func (s *FileSnapshotStore) Create(height uint64) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()

	tree, err := s.source.snapshotTree(height)
	if err != nil {
		return nil, err
	}

	buffer := memory.GetBuffer(memory.LargeBufferSize)
	defer memory.PutBuffer(buffer)
	gzWriter := gzip.NewWriter(buffer)
	if err := exportEntries(gzWriter, tree); err != nil {
		return nil, fmt.Errorf("exporting entries: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	chunks := splitIntoChunks(buffer.Bytes(), s.chunkSize)

	h := sha256.New()
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, height)
	h.Write(heightBytes)
	for _, chunk := range chunks {
		h.Write(chunk)
	}
	hash := h.Sum(nil)

	snapshotDir := filepath.Join(s.path, fmt.Sprintf("%x", hash[:8]))
	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	for i, chunk := range chunks {
		chunkPath := filepath.Join(snapshotDir, fmt.Sprintf("chunk_%d", i))
		if err := os.WriteFile(chunkPath, chunk, 0o644); err != nil {
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}
	}

	snapshot := &Snapshot{
		Version:   SnapshotVersion,
		Height:    height,
		Hash:      hash,
		ChunkSize: s.chunkSize,
		Chunks:    len(chunks),
		RootHash:  tree.RootHash(),
		CreatedAt: time.Now(),
	}

	metadata, err := encodeSnapshotMetadata(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	metadataPath := filepath.Join(snapshotDir, "metadata")
	if err := os.WriteFile(metadataPath, metadata, 0o644); err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	s.metrics.ObserveSnapshotDuration(time.Since(start))
	return snapshot, nil
}

// List returns information about all available snapshots, newest first.
func (s *FileSnapshotStore) List() ([]*SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var snapshots []*SnapshotInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metadata, err := os.ReadFile(filepath.Join(s.path, entry.Name(), "metadata"))
		if err != nil {
			continue // Skip invalid snapshots
		}
		snapshot, err := decodeSnapshotMetadata(metadata)
		if err != nil {
			continue
		}

		var totalSize int64
		for i := 0; i < snapshot.Chunks; i++ {
			chunkPath := filepath.Join(s.path, entry.Name(), fmt.Sprintf("chunk_%d", i))
			if info, err := os.Stat(chunkPath); err == nil {
				totalSize += info.Size()
			}
		}

		snapshots = append(snapshots, &SnapshotInfo{
			Height:    snapshot.Height,
			Hash:      snapshot.Hash,
			Chunks:    snapshot.Chunks,
			Size:      totalSize,
			CreatedAt: snapshot.CreatedAt,
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Height > snapshots[j].Height
	})
	return snapshots, nil
}

// Load loads a snapshot's metadata by hash.
func (s *FileSnapshotStore) Load(hash []byte) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir, ok := s.snapshotDir(hash)
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	metadata, err := os.ReadFile(filepath.Join(dir, "metadata"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	snapshot, err := decodeSnapshotMetadata(metadata)
	if err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	if !bytes.Equal(snapshot.Hash, hash) {
		return nil, ErrSnapshotCorrupt
	}
	return snapshot, nil
}

// LoadChunk loads a specific chunk of a snapshot.
func (s *FileSnapshotStore) LoadChunk(hash []byte, index int) (*SnapshotChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir, ok := s.snapshotDir(hash)
	if !ok {
		return nil, ErrSnapshotChunkNotFound
	}
	data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("chunk_%d", index)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotChunkNotFound
		}
		return nil, fmt.Errorf("reading chunk: %w", err)
	}

	chunkHash := sha256.Sum256(data)
	return &SnapshotChunk{
		Index: index,
		Hash:  chunkHash[:],
		Data:  data,
	}, nil
}

// Delete removes a snapshot and all its chunks.
func (s *FileSnapshotStore) Delete(hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, ok := s.snapshotDir(hash)
	if !ok {
		return ErrSnapshotNotFound
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ErrSnapshotNotFound
	}
	return os.RemoveAll(dir)
}

// Prune removes old snapshots, keeping only the most recent ones.
func (s *FileSnapshotStore) Prune(keepRecent int) error {
	snapshots, err := s.List()
	if err != nil {
		return err
	}
	if len(snapshots) <= keepRecent {
		return nil
	}
	for _, snapshot := range snapshots[keepRecent:] {
		if err := s.Delete(snapshot.Hash); err != nil {
			return err
		}
	}
	return nil
}

// Has checks if a snapshot exists.
func (s *FileSnapshotStore) Has(hash []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir, ok := s.snapshotDir(hash)
	if !ok {
		return false
	}
	_, err := os.Stat(dir)
	return err == nil
}

// Import rebuilds the snapshot's tree from the provided chunks, verifies
// it reproduces the snapshot's root hash, and installs it as the store's
// single committed height. Used to restore state during fast sync.
func (s *FileSnapshotStore) Import(snapshot *Snapshot, provider ChunkProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	buffer := memory.GetBuffer(memory.LargeBufferSize)
	defer memory.PutBuffer(buffer)
	for i := 0; i < provider.ChunkCount(); i++ {
		chunk, err := provider.GetChunk(i)
		if err != nil {
			return fmt.Errorf("getting chunk %d: %w", i, err)
		}
		buffer.Write(chunk)
	}

	gzReader, err := gzip.NewReader(buffer)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}

	tree := avl.NewTree()
	for {
		key, value, err := decodeEntry(gzReader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("decoding entry: %w", err)
		}
		tree.Set(key, value)
	}

	if !bytes.Equal(tree.RootHash(), snapshot.RootHash) {
		return fmt.Errorf("%w: root hash mismatch after import", ErrSnapshotCorrupt)
	}

	s.source.restore(snapshot.Height, tree)
	return nil
}

// snapshotDir maps a snapshot hash to its directory. Hashes come from
// callers and may be arbitrary bytes; anything shorter than the directory
// prefix cannot name a snapshot.
func (s *FileSnapshotStore) snapshotDir(hash []byte) (string, bool) {
	if len(hash) < 8 {
		return "", false
	}
	return filepath.Join(s.path, fmt.Sprintf("%x", hash[:8])), true
}

// Entry stream encoding: key_length (4 bytes) + key + value_length
// (4 bytes) + value, big-endian, entries in ascending key order.

func exportEntries(w io.Writer, tree *avl.Tree) error {
	var exportErr error
	tree.Iterate(func(key, value []byte) bool {
		exportErr = encodeEntry(w, key, value)
		return exportErr == nil
	})
	return exportErr
}

func encodeEntry(w io.Writer, key, value []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(key))); err != nil {
		return err
	}
	if _, err := w.Write(key); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(value))); err != nil {
		return err
	}
	_, err := w.Write(value)
	return err
}

func decodeEntry(r io.Reader) (key, value []byte, err error) {
	var keyLen uint32
	if err := binary.Read(r, binary.BigEndian, &keyLen); err != nil {
		return nil, nil, err
	}
	key = make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, nil, err
	}

	var valueLen uint32
	if err := binary.Read(r, binary.BigEndian, &valueLen); err != nil {
		return nil, nil, err
	}
	value = make([]byte, valueLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, nil, err
	}
	return key, value, nil
}

func splitIntoChunks(data []byte, chunkSize int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var chunks [][]byte
	for i := 0; i < len(data); i += chunkSize {
		end := min(i+chunkSize, len(data))
		chunks = append(chunks, data[i:end])
	}
	return chunks
}

func encodeSnapshotMetadata(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, s.Version); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.Height); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(s.Hash))); err != nil {
		return nil, err
	}
	buf.Write(s.Hash)
	if err := binary.Write(&buf, binary.BigEndian, uint32(s.ChunkSize)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(s.Chunks)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(s.RootHash))); err != nil {
		return nil, err
	}
	buf.Write(s.RootHash)
	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeSnapshotMetadata(data []byte) (*Snapshot, error) {
	r := bytes.NewReader(data)
	s := &Snapshot{}

	if err := binary.Read(r, binary.BigEndian, &s.Version); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &s.Height); err != nil {
		return nil, err
	}

	var hashLen uint32
	if err := binary.Read(r, binary.BigEndian, &hashLen); err != nil {
		return nil, err
	}
	s.Hash = make([]byte, hashLen)
	if _, err := io.ReadFull(r, s.Hash); err != nil {
		return nil, err
	}

	var chunkSize uint32
	if err := binary.Read(r, binary.BigEndian, &chunkSize); err != nil {
		return nil, err
	}
	s.ChunkSize = int(chunkSize)

	var chunks uint32
	if err := binary.Read(r, binary.BigEndian, &chunks); err != nil {
		return nil, err
	}
	s.Chunks = int(chunks)

	var rootLen uint32
	if err := binary.Read(r, binary.BigEndian, &rootLen); err != nil {
		return nil, err
	}
	s.RootHash = make([]byte, rootLen)
	if _, err := io.ReadFull(r, s.RootHash); err != nil {
		return nil, err
	}

	var createdAt int64
	if err := binary.Read(r, binary.BigEndian, &createdAt); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(0, createdAt)

	return s, nil
}

// MemoryChunkProvider provides chunks from memory.
type MemoryChunkProvider struct {
	chunks [][]byte
}

// NewMemoryChunkProvider creates a new memory-based chunk provider.
func NewMemoryChunkProvider(chunks [][]byte) *MemoryChunkProvider {
	return &MemoryChunkProvider{chunks: chunks}
}

// GetChunk returns the chunk at the given index.
func (p *MemoryChunkProvider) GetChunk(index int) ([]byte, error) {
	if index < 0 || index >= len(p.chunks) {
		return nil, ErrSnapshotChunkNotFound
	}
	return p.chunks[index], nil
}

// ChunkCount returns the total number of chunks.
func (p *MemoryChunkProvider) ChunkCount() int {
	return len(p.chunks)
}
