// Package avl implements a persistent, height-balanced merkle search tree.
//
// Every node carries a key/value entry plus a cached subtree hash, so the
// root hash commits to the full contents and any entry can be proven present
// or absent with an ICS23 commitment proof. Mutations copy the nodes along
// the touched path (O(log n) per operation) and never modify shared
// structure, which makes copying a whole tree a root-pointer copy and lets
// committed snapshots be read concurrently with a writer building the next
// working state.
package avl

import (
	"bytes"
	"crypto/sha256"
)

// Tree is a persistent AVL merkle search tree over byte keys.
//
// The zero value is an empty tree, ready for use. Tree values are cheap to
// copy; the copy shares all structure with the original and diverges as
// either side is mutated.
type Tree struct {
	root *node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// Copy returns a tree sharing all structure with t. Mutations of either
// tree never affect the other.
func (t *Tree) Copy() *Tree {
	return &Tree{root: t.root}
}

// Set inserts or overwrites the value for key. It returns the previous
// value and whether the key was already present.
func (t *Tree) Set(key, value []byte) (prev []byte, updated bool) {
	key = bytes.Clone(key)
	value = bytes.Clone(value)
	t.root, prev, updated = insert(t.root, key, value)
	return bytes.Clone(prev), updated
}

// Get returns the value stored for key, or (nil, false) if absent. The
// returned slice is the caller's to keep; node values stay private so
// structurally shared snapshots cannot be mutated through reads.
func (t *Tree) Get(key []byte) ([]byte, bool) {
	n := t.root
	for n != nil {
		switch cmp := bytes.Compare(key, n.key); {
		case cmp < 0:
			n = n.left
		case cmp > 0:
			n = n.right
		default:
			return bytes.Clone(n.value), true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (t *Tree) Has(key []byte) bool {
	_, ok := t.Get(key)
	return ok
}

// Remove deletes key from the tree. It returns the removed value and
// whether the key was present. Removing an absent key is not an error.
func (t *Tree) Remove(key []byte) (removed []byte, ok bool) {
	t.root, removed, ok = remove(t.root, key)
	return bytes.Clone(removed), ok
}

// RootHash returns the merkle root hash. The empty tree hashes to
// SHA256 of 32 zero bytes.
func (t *Tree) RootHash() []byte {
	if t.root == nil {
		sum := sha256.Sum256(emptyChildHash)
		return sum[:]
	}
	return bytes.Clone(t.root.hash)
}

// Size returns the number of entries.
func (t *Tree) Size() int {
	return size(t.root)
}

// GetKeys returns every key whose serialized form starts with prefix, in
// ascending key order. A nil or empty prefix returns all keys.
func (t *Tree) GetKeys(prefix []byte) [][]byte {
	var keys [][]byte
	t.Iterate(func(key, _ []byte) bool {
		if bytes.HasPrefix(key, prefix) {
			keys = append(keys, bytes.Clone(key))
		}
		return true
	})
	return keys
}

// Iterate walks the entries in ascending key order, calling fn for each.
// Iteration stops early if fn returns false.
func (t *Tree) Iterate(fn func(key, value []byte) bool) {
	iterate(t.root, fn)
}

func iterate(n *node, fn func(key, value []byte) bool) bool {
	if n == nil {
		return true
	}
	if !iterate(n.left, fn) {
		return false
	}
	if !fn(n.key, n.value) {
		return false
	}
	return iterate(n.right, fn)
}

func size(n *node) int {
	if n == nil {
		return 0
	}
	return 1 + size(n.left) + size(n.right)
}

func insert(n *node, key, value []byte) (_ *node, prev []byte, updated bool) {
	if n == nil {
		return newNode(key, value, nil, nil), nil, false
	}
	switch cmp := bytes.Compare(key, n.key); {
	case cmp < 0:
		left, prev, updated := insert(n.left, key, value)
		return rebalance(n.withChildren(left, n.right)), prev, updated
	case cmp > 0:
		right, prev, updated := insert(n.right, key, value)
		return rebalance(n.withChildren(n.left, right)), prev, updated
	default:
		// Overwrite in place; the shape is unchanged so no rebalance.
		return n.withValue(value), n.value, true
	}
}

func remove(n *node, key []byte) (_ *node, removed []byte, ok bool) {
	if n == nil {
		return nil, nil, false
	}
	switch cmp := bytes.Compare(key, n.key); {
	case cmp < 0:
		left, removed, ok := remove(n.left, key)
		if !ok {
			return n, nil, false
		}
		return rebalance(n.withChildren(left, n.right)), removed, true
	case cmp > 0:
		right, removed, ok := remove(n.right, key)
		if !ok {
			return n, nil, false
		}
		return rebalance(n.withChildren(n.left, right)), removed, true
	}

	removed = n.value
	switch {
	case n.left == nil:
		return n.right, removed, true
	case n.right == nil:
		return n.left, removed, true
	default:
		// Two children: replace this entry with its in-order successor,
		// the minimum of the right subtree.
		succ := n.right
		for succ.left != nil {
			succ = succ.left
		}
		right, _, _ := remove(n.right, succ.key)
		return rebalance(newNode(succ.key, succ.value, n.left, right)), removed, true
	}
}

// rebalance restores the AVL invariant |bf| <= 1 at n, choosing among the
// four rotation cases by the sign of the child's balance factor.
func rebalance(n *node) *node {
	switch bf := n.balanceFactor(); {
	case bf > 1:
		if n.left.balanceFactor() < 0 {
			// left-right
			n = n.withChildren(rotateLeft(n.left), n.right)
		}
		return rotateRight(n)
	case bf < -1:
		if n.right.balanceFactor() > 0 {
			// right-left
			n = n.withChildren(n.left, rotateRight(n.right))
		}
		return rotateLeft(n)
	default:
		return n
	}
}

func rotateRight(n *node) *node {
	l := n.left
	return l.withChildren(l.left, n.withChildren(l.right, n.right))
}

func rotateLeft(n *node) *node {
	r := n.right
	return r.withChildren(n.withChildren(n.left, r.left), r.right)
}
