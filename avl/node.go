package avl

import (
	"bytes"
	"crypto/sha256"
)

// HashSize is the size of node hashes in bytes.
const HashSize = sha256.Size

// Domain-separation prefixes for node hashing. A leaf entry hashes as
// SHA256(leafPrefix || key || SHA256(value)); an internal node hashes as
// SHA256(innerPrefix || entryHash || leftHash || rightHash) with absent
// children contributing emptyChildHash. The prefixes keep the two preimage
// shapes disjoint.
var (
	leafPrefix     = []byte{0x00}
	innerPrefix    = []byte{0x01}
	emptyChildHash = make([]byte, HashSize)
)

// node is a single tree node. Every node carries a key/value entry; nodes
// with children additionally merkleize their subtrees.
//
// Nodes are immutable after construction. Mutating operations copy the
// nodes along the touched path, so trees share structure and a committed
// snapshot can never be changed through a later working copy.
type node struct {
	key   []byte
	value []byte
	left  *node
	right *node

	// height is 0 for leaves, 1+max(children) otherwise.
	height uint32

	// entryHash covers only this node's key/value pair.
	entryHash []byte

	// hash covers the whole subtree rooted here.
	hash []byte
}

// newNode builds an immutable node over the given children, computing the
// cached height and hashes. key and value must not be aliased afterwards.
func newNode(key, value []byte, left, right *node) *node {
	n := &node{
		key:   key,
		value: value,
		left:  left,
		right: right,
	}
	if left != nil || right != nil {
		n.height = uint32(1 + max(left.subtreeHeight(), right.subtreeHeight()))
	}
	n.entryHash = hashEntry(key, value)
	n.hash = hashSubtree(n.entryHash, left, right)
	return n
}

// withValue returns a copy of n with a new value. Children are shared.
func (n *node) withValue(value []byte) *node {
	return newNode(n.key, value, n.left, n.right)
}

// withChildren returns a copy of n over new children. The entry is shared.
func (n *node) withChildren(left, right *node) *node {
	return newNode(n.key, n.value, left, right)
}

// subtreeHeight returns the height of the subtree, treating nil as -1 so
// that leaves come out at height 0.
func (n *node) subtreeHeight() int {
	if n == nil {
		return -1
	}
	return int(n.height)
}

// subtreeHash returns the merkle hash of the subtree, or the empty-child
// placeholder for an absent subtree.
func (n *node) subtreeHash() []byte {
	if n == nil {
		return emptyChildHash
	}
	return n.hash
}

// balanceFactor is height(left) - height(right).
func (n *node) balanceFactor() int {
	return n.left.subtreeHeight() - n.right.subtreeHeight()
}

func (n *node) isLeaf() bool {
	return n.left == nil && n.right == nil
}

func hashEntry(key, value []byte) []byte {
	vh := sha256.Sum256(value)
	h := sha256.New()
	h.Write(leafPrefix)
	h.Write(key)
	h.Write(vh[:])
	return h.Sum(nil)
}

func hashSubtree(entryHash []byte, left, right *node) []byte {
	if left == nil && right == nil {
		return entryHash
	}
	h := sha256.New()
	h.Write(innerPrefix)
	h.Write(entryHash)
	h.Write(left.subtreeHash())
	h.Write(right.subtreeHash())
	return h.Sum(nil)
}

// innerPreimageParts returns the prefix and suffix bytes framing the given
// child slot in this node's hash preimage. slot 0 is the node's own entry,
// slot 1 the left subtree, slot 2 the right subtree.
func (n *node) innerPreimageParts(slot int) (prefix, suffix []byte) {
	switch slot {
	case 0:
		prefix = bytes.Clone(innerPrefix)
		suffix = append(bytes.Clone(n.left.subtreeHash()), n.right.subtreeHash()...)
	case 1:
		prefix = append(bytes.Clone(innerPrefix), n.entryHash...)
		suffix = bytes.Clone(n.right.subtreeHash())
	case 2:
		prefix = append(bytes.Clone(innerPrefix), n.entryHash...)
		prefix = append(prefix, n.left.subtreeHash()...)
		suffix = nil
	default:
		panic("avl: invalid child slot")
	}
	return prefix, suffix
}
