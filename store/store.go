// Package store provides the versioned key/value store hierarchy: the
// capability contracts, a merkleized in-memory implementation with
// height-indexed snapshots, shared-ownership and revertible wrappers, and
// durable backends over LevelDB and Badger.
package store

import (
	"bytes"
	"fmt"

	ics23 "github.com/cosmos/ics23/go"

	"github.com/blockberries/stateberry/avl"
	"github.com/blockberries/stateberry/types"
)

// Store is the capability set shared by every storage backend.
//
// A store holds exactly one in-flight working state ("pending") plus
// whatever committed history the backing medium can afford. All mutating
// calls act on pending; Commit turns the applied state into a new committed
// height. Implementations must be safe for concurrent use.
type Store interface {
	// Set stores a value under path in the pending state and returns the
	// previous value, if any. It fails only on backing-medium errors.
	Set(path types.Path, value []byte) ([]byte, error)

	// Get retrieves the value for path at the given height.
	// Returns nil, nil if the key does not exist at that height.
	Get(height types.Height, path types.Path) ([]byte, error)

	// Delete removes path from the pending state. Stores whose backing
	// medium cannot delete return ErrDeleteUnsupported; callers must
	// treat that as a fatal capability gap, not a silent no-op.
	Delete(path types.Path) error

	// GetKeys returns every key at the pending state whose serialized
	// form starts with prefix. The zero-value path matches all keys.
	GetKeys(prefix types.Path) ([]types.Path, error)

	// Apply promotes the pending state into the staged state without
	// creating a new committed height.
	Apply() error

	// Commit applies the pending state and records it as a new committed
	// height. It returns the new root hash; stores without merkle
	// structure return a nil hash.
	Commit() ([]byte, error)

	// Reset discards the pending state, restoring it to the last applied
	// state. This is the rollback primitive for a failed unit of work.
	Reset() error

	// Prune discards committed heights strictly below height and returns
	// the actual pruned-to height. Reads below the pruned floor report
	// absence, not an error.
	Prune(height uint64) (uint64, error)

	// CurrentHeight returns the number of committed heights.
	CurrentHeight() uint64

	// Close releases the store's resources.
	Close() error
}

// ProvableStore is a Store whose contents are merkleized: it can report a
// root hash and produce ICS23 commitment proofs for any key.
type ProvableStore interface {
	Store

	// RootHash returns the root hash of the pending state.
	RootHash() []byte

	// GetProof returns a membership or non-membership proof for path at
	// the given height. Proving an absent key is not an error.
	GetProof(height types.Height, path types.Path) (*Proof, error)
}

// Proof is a merkle proof for one key, serialized in the ICS23
// CommitmentProof wire format so third-party verifiers can check it with
// the published proof specification.
type Proof struct {
	// Key is the serialized path this proof is for.
	Key []byte

	// Value is the value if the key exists, nil otherwise.
	Value []byte

	// Exists indicates whether the key exists in the tree.
	Exists bool

	// RootHash is the root hash of the tree this proof was generated from.
	RootHash []byte

	// Height is the committed height this proof was generated at
	// (0 for the pending state).
	Height uint64

	// ProofBytes contains the serialized ICS23 commitment proof.
	ProofBytes []byte
}

// Spec returns the proof specification all store proofs verify against.
func Spec() *ics23.ProofSpec {
	return avl.ProofSpec()
}

// Verify verifies the proof against the given root hash. For existence
// proofs the full ICS23 verification algorithm runs; for non-existence
// proofs each neighbor must verify as an existence proof against the same
// root, bracket the absent key, and be structurally adjacent to it (or a
// tree boundary, for one-sided proofs).
func (p *Proof) Verify(rootHash []byte) (bool, error) {
	if p == nil || len(p.ProofBytes) == 0 {
		return false, types.ErrInvalidProof
	}
	if len(rootHash) == 0 {
		return false, fmt.Errorf("%w: empty root hash", types.ErrInvalidProof)
	}

	var commitmentProof ics23.CommitmentProof
	if err := commitmentProof.Unmarshal(p.ProofBytes); err != nil {
		return false, fmt.Errorf("%w: unmarshaling proof: %v", types.ErrInvalidProof, err)
	}

	if p.Exists {
		if commitmentProof.GetExist() == nil {
			return false, fmt.Errorf("%w: not an existence proof", types.ErrInvalidProof)
		}
		return ics23.VerifyMembership(Spec(), rootHash, &commitmentProof, p.Key, p.Value), nil
	}

	nonexist := commitmentProof.GetNonexist()
	if nonexist == nil {
		return false, fmt.Errorf("%w: not a non-existence proof", types.ErrInvalidProof)
	}
	if !bytes.Equal(nonexist.Key, p.Key) {
		return false, nil
	}
	return avl.VerifyNonMembership(rootHash, nonexist), nil
}
