package avl

import (
	"bytes"
	"crypto/sha256"

	ics23 "github.com/cosmos/ics23/go"
)

// ProofSpec returns the fixed ICS23 proof specification for trees built by
// this package. Verifiers need nothing else: hash is SHA-256 throughout,
// values are prehashed, and every inner step frames a 32-byte child at one
// of three fixed slots (own entry, left subtree, right subtree) behind a
// one-byte inner prefix, with absent subtrees pinned to 32 zero bytes.
func ProofSpec() *ics23.ProofSpec {
	return &ics23.ProofSpec{
		LeafSpec: leafOp(),
		InnerSpec: &ics23.InnerSpec{
			ChildOrder:      []int32{0, 1, 2},
			ChildSize:       HashSize,
			MinPrefixLength: int32(len(innerPrefix)),
			MaxPrefixLength: int32(len(innerPrefix)),
			EmptyChild:      bytes.Clone(emptyChildHash),
			Hash:            ics23.HashOp_SHA256,
		},
	}
}

// EmptyRootHash returns the canonical root hash of the empty tree.
func EmptyRootHash() []byte {
	sum := sha256.Sum256(emptyChildHash)
	return sum[:]
}

func leafOp() *ics23.LeafOp {
	return &ics23.LeafOp{
		Hash:         ics23.HashOp_SHA256,
		PrehashKey:   ics23.HashOp_NO_HASH,
		PrehashValue: ics23.HashOp_SHA256,
		Length:       ics23.LengthOp_NO_PREFIX,
		Prefix:       bytes.Clone(leafPrefix),
	}
}

// GetProof returns an ICS23 commitment proof for key: an existence proof if
// the key is present, otherwise a non-existence proof carrying existence
// proofs for the adjacent present keys (one-sided when the key lies beyond
// a boundary of the tree). Proving an absent key is not an error.
func (t *Tree) GetProof(key []byte) *ics23.CommitmentProof {
	if ep := t.existenceProof(key); ep != nil {
		return &ics23.CommitmentProof{
			Proof: &ics23.CommitmentProof_Exist{Exist: ep},
		}
	}

	nonexist := &ics23.NonExistenceProof{Key: bytes.Clone(key)}
	if pred := t.predecessor(key); pred != nil {
		nonexist.Left = t.existenceProof(pred.key)
	}
	if succ := t.successor(key); succ != nil {
		nonexist.Right = t.existenceProof(succ.key)
	}
	return &ics23.CommitmentProof{
		Proof: &ics23.CommitmentProof_Nonexist{Nonexist: nonexist},
	}
}

// existenceProof builds the root-to-target proof for a present key, or nil
// if the key is absent. The path starts with the target node's own entry
// slot (absent for leaf targets, hence the empty path in a single-node
// tree) and continues bottom-up through the ancestor slots.
func (t *Tree) existenceProof(key []byte) *ics23.ExistenceProof {
	type step struct {
		n    *node
		slot int
	}
	var steps []step

	n := t.root
	for n != nil {
		cmp := bytes.Compare(key, n.key)
		if cmp == 0 {
			break
		}
		if cmp < 0 {
			steps = append(steps, step{n, 1})
			n = n.left
		} else {
			steps = append(steps, step{n, 2})
			n = n.right
		}
	}
	if n == nil {
		return nil
	}

	proof := &ics23.ExistenceProof{
		Key:   bytes.Clone(n.key),
		Value: bytes.Clone(n.value),
		Leaf:  leafOp(),
	}
	if !n.isLeaf() {
		prefix, suffix := n.innerPreimageParts(0)
		proof.Path = append(proof.Path, &ics23.InnerOp{
			Hash:   ics23.HashOp_SHA256,
			Prefix: prefix,
			Suffix: suffix,
		})
	}
	for i := len(steps) - 1; i >= 0; i-- {
		prefix, suffix := steps[i].n.innerPreimageParts(steps[i].slot)
		proof.Path = append(proof.Path, &ics23.InnerOp{
			Hash:   ics23.HashOp_SHA256,
			Prefix: prefix,
			Suffix: suffix,
		})
	}
	return proof
}

// VerifyNonMembership checks a non-existence proof against a root hash.
// Each cited neighbor must verify as an existence proof under the root and
// bracket the absent key, and the neighbors must actually be in-order
// adjacent: a one-sided proof's neighbor must be the tree minimum or
// maximum, and a two-sided proof's neighbors must have no entry between
// them. Without the adjacency checks any present key could be "proven"
// absent by citing its own predecessor and successor.
func VerifyNonMembership(rootHash []byte, nonexist *ics23.NonExistenceProof) bool {
	if nonexist == nil {
		return false
	}
	left, right := nonexist.Left, nonexist.Right
	if left == nil && right == nil {
		// Only the empty tree has no neighbors to cite.
		return bytes.Equal(rootHash, EmptyRootHash())
	}
	if left != nil {
		if bytes.Compare(left.Key, nonexist.Key) >= 0 {
			return false
		}
		if err := left.Verify(ProofSpec(), rootHash, left.Key, left.Value); err != nil {
			return false
		}
	}
	if right != nil {
		if bytes.Compare(right.Key, nonexist.Key) <= 0 {
			return false
		}
		if err := right.Verify(ProofSpec(), rootHash, right.Key, right.Value); err != nil {
			return false
		}
	}
	switch {
	case left == nil:
		return isTreeMin(right.Path)
	case right == nil:
		return isTreeMax(left.Path)
	default:
		return areAdjacent(left.Path, right.Path)
	}
}

// Child slots of an inner hash preimage, recoverable from an InnerOp's
// framing lengths alone.
const (
	slotEntry = iota // the node's own entry hash
	slotLeft         // the left subtree hash
	slotRight        // the right subtree hash
)

// opSlot classifies which child slot an inner op frames, or -1 for framings
// no tree built by this package produces.
func opSlot(op *ics23.InnerOp) int {
	if op == nil || op.Hash != ics23.HashOp_SHA256 ||
		len(op.Prefix) == 0 || op.Prefix[0] != innerPrefix[0] {
		return -1
	}
	switch {
	case len(op.Prefix) == 1 && len(op.Suffix) == 2*HashSize:
		return slotEntry
	case len(op.Prefix) == 1+HashSize && len(op.Suffix) == HashSize:
		return slotLeft
	case len(op.Prefix) == 1+2*HashSize && len(op.Suffix) == 0:
		return slotRight
	}
	return -1
}

// entryOpSideEmpty reports whether an entry-slot op shows the empty-child
// hash on the given side. The suffix carries the left then the right
// subtree hash.
func entryOpSideEmpty(op *ics23.InnerOp, rightSide bool) bool {
	region := op.Suffix[:HashSize]
	if rightSide {
		region = op.Suffix[HashSize:]
	}
	return bytes.Equal(region, emptyChildHash)
}

// isTreeMin reports whether the proven node is the minimum of the whole
// tree: its own left child is empty and every ancestor step descends into a
// left subtree.
func isTreeMin(path []*ics23.InnerOp) bool {
	i := 0
	if len(path) > 0 && opSlot(path[0]) == slotEntry {
		if !entryOpSideEmpty(path[0], false) {
			return false
		}
		i = 1
	}
	for ; i < len(path); i++ {
		if opSlot(path[i]) != slotLeft {
			return false
		}
	}
	return true
}

// isTreeMax is the mirror of isTreeMin.
func isTreeMax(path []*ics23.InnerOp) bool {
	i := 0
	if len(path) > 0 && opSlot(path[0]) == slotEntry {
		if !entryOpSideEmpty(path[0], true) {
			return false
		}
		i = 1
	}
	for ; i < len(path); i++ {
		if opSlot(path[i]) != slotRight {
			return false
		}
	}
	return true
}

// areAdjacent reports whether the two proven keys are in-order neighbors.
//
// Adjacent keys in a binary search tree always stand in an
// ancestor/descendant relation: either the right key is the minimum of the
// left key's right subtree, or the left key is the maximum of the right
// key's left subtree. After trimming the shared ancestor steps off the top
// of both paths, exactly one remainder must be the ancestor's own entry
// step and the other the matching edge descent into its subtree. Because
// both proofs already verified against the same root, equal hashes pin the
// remainders to the same divergence node.
func areAdjacent(leftPath, rightPath []*ics23.InnerOp) bool {
	li, ri := len(leftPath)-1, len(rightPath)-1
	for li >= 0 && ri >= 0 && innerOpEqual(leftPath[li], rightPath[ri]) {
		li--
		ri--
	}
	switch {
	case li == 0 && opSlot(leftPath[0]) == slotEntry:
		// The right key must be the minimum of the left key's right
		// subtree.
		return isSubtreeMin(rightPath[:ri+1])
	case ri == 0 && opSlot(rightPath[0]) == slotEntry:
		// The left key must be the maximum of the right key's left
		// subtree.
		return isSubtreeMax(leftPath[:li+1])
	}
	return false
}

// isSubtreeMin checks the remainder path of a node that must be the minimum
// of the divergence node's right subtree: entered through the ancestor's
// right slot, descending only left below it, with an empty left child of
// its own.
func isSubtreeMin(path []*ics23.InnerOp) bool {
	if len(path) == 0 || opSlot(path[len(path)-1]) != slotRight {
		return false
	}
	i := 0
	if opSlot(path[0]) == slotEntry {
		if !entryOpSideEmpty(path[0], false) {
			return false
		}
		i = 1
	}
	for ; i < len(path)-1; i++ {
		if opSlot(path[i]) != slotLeft {
			return false
		}
	}
	return true
}

// isSubtreeMax is the mirror of isSubtreeMin.
func isSubtreeMax(path []*ics23.InnerOp) bool {
	if len(path) == 0 || opSlot(path[len(path)-1]) != slotLeft {
		return false
	}
	i := 0
	if opSlot(path[0]) == slotEntry {
		if !entryOpSideEmpty(path[0], true) {
			return false
		}
		i = 1
	}
	for ; i < len(path)-1; i++ {
		if opSlot(path[i]) != slotRight {
			return false
		}
	}
	return true
}

func innerOpEqual(a, b *ics23.InnerOp) bool {
	return a.Hash == b.Hash &&
		bytes.Equal(a.Prefix, b.Prefix) &&
		bytes.Equal(a.Suffix, b.Suffix)
}

// predecessor returns the node with the largest key strictly below key.
func (t *Tree) predecessor(key []byte) *node {
	var best *node
	for n := t.root; n != nil; {
		if bytes.Compare(n.key, key) < 0 {
			best = n
			n = n.right
		} else {
			n = n.left
		}
	}
	return best
}

// successor returns the node with the smallest key strictly above key.
func (t *Tree) successor(key []byte) *node {
	var best *node
	for n := t.root; n != nil; {
		if bytes.Compare(n.key, key) > 0 {
			best = n
			n = n.left
		} else {
			n = n.right
		}
	}
	return best
}
