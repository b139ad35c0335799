package avl

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// checkInvariants verifies the BST ordering, AVL balance, cached heights
// and cached hashes of every node in the tree.
func checkInvariants(t *testing.T, tr *Tree) {
	t.Helper()
	checkNode(t, tr.root, nil, nil)
}

func checkNode(t *testing.T, n *node, lower, upper []byte) {
	t.Helper()
	if n == nil {
		return
	}

	if lower != nil {
		require.Negative(t, bytes.Compare(lower, n.key), "BST order violated: %q !< %q", lower, n.key)
	}
	if upper != nil {
		require.Negative(t, bytes.Compare(n.key, upper), "BST order violated: %q !< %q", n.key, upper)
	}

	bf := n.balanceFactor()
	require.LessOrEqual(t, bf, 1, "unbalanced at %q", n.key)
	require.GreaterOrEqual(t, bf, -1, "unbalanced at %q", n.key)

	wantHeight := 0
	if !n.isLeaf() {
		wantHeight = 1 + max(n.left.subtreeHeight(), n.right.subtreeHeight())
	}
	require.Equal(t, wantHeight, int(n.height), "stale height at %q", n.key)

	require.Equal(t, hashEntry(n.key, n.value), n.entryHash, "stale entry hash at %q", n.key)
	require.Equal(t, hashSubtree(n.entryHash, n.left, n.right), n.hash, "stale subtree hash at %q", n.key)

	checkNode(t, n.left, lower, n.key)
	checkNode(t, n.right, n.key, upper)
}

func TestEmptyTree(t *testing.T) {
	tr := NewTree()

	require.Equal(t, EmptyRootHash(), tr.RootHash())
	require.Equal(t, 0, tr.Size())

	_, ok := tr.Get([]byte("missing"))
	require.False(t, ok)

	_, ok = tr.Remove([]byte("missing"))
	require.False(t, ok)
}

func TestSetAndGet(t *testing.T) {
	tr := NewTree()

	prev, updated := tr.Set([]byte("key"), []byte("v1"))
	require.Nil(t, prev)
	require.False(t, updated)

	got, ok := tr.Get([]byte("key"))
	require.True(t, ok)
	require.Equal(t, []byte("v1"), got)

	prev, updated = tr.Set([]byte("key"), []byte("v2"))
	require.True(t, updated)
	require.Equal(t, []byte("v1"), prev)

	got, ok = tr.Get([]byte("key"))
	require.True(t, ok)
	require.Equal(t, []byte("v2"), got)
}

func TestOverwriteChangesRootHash(t *testing.T) {
	tr := NewTree()

	tr.Set([]byte("key"), []byte("v1"))
	h1 := tr.RootHash()

	tr.Set([]byte("key"), []byte("v2"))
	h2 := tr.RootHash()
	require.NotEqual(t, h1, h2)

	tr.Set([]byte("key"), []byte("v1"))
	require.Equal(t, h1, tr.RootHash())
}

func TestRotations(t *testing.T) {
	cases := []struct {
		name string
		keys []string
	}{
		{"left-left", []string{"c", "b", "a"}},
		{"right-right", []string{"a", "b", "c"}},
		{"left-right", []string{"c", "a", "b"}},
		{"right-left", []string{"a", "c", "b"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTree()
			for _, k := range tc.keys {
				tr.Set([]byte(k), []byte("v"))
				checkInvariants(t, tr)
			}
			// All four cases converge to the same balanced shape.
			require.Equal(t, []byte("b"), tr.root.key)
			require.Equal(t, 1, int(tr.root.height))
		})
	}
}

func TestRemove(t *testing.T) {
	t.Run("leaf", func(t *testing.T) {
		tr := NewTree()
		tr.Set([]byte("b"), []byte("1"))
		tr.Set([]byte("a"), []byte("2"))
		tr.Set([]byte("c"), []byte("3"))

		removed, ok := tr.Remove([]byte("a"))
		require.True(t, ok)
		require.Equal(t, []byte("2"), removed)
		require.False(t, tr.Has([]byte("a")))
		checkInvariants(t, tr)
	})

	t.Run("single child", func(t *testing.T) {
		tr := NewTree()
		tr.Set([]byte("b"), []byte("1"))
		tr.Set([]byte("a"), []byte("2"))
		tr.Set([]byte("c"), []byte("3"))
		tr.Set([]byte("d"), []byte("4"))

		_, ok := tr.Remove([]byte("c"))
		require.True(t, ok)
		require.True(t, tr.Has([]byte("d")))
		checkInvariants(t, tr)
	})

	t.Run("two children", func(t *testing.T) {
		tr := NewTree()
		for _, k := range []string{"d", "b", "f", "a", "c", "e", "g"} {
			tr.Set([]byte(k), []byte(k))
		}

		removed, ok := tr.Remove([]byte("d"))
		require.True(t, ok)
		require.Equal(t, []byte("d"), removed)
		checkInvariants(t, tr)

		for _, k := range []string{"a", "b", "c", "e", "f", "g"} {
			require.True(t, tr.Has([]byte(k)), "lost key %q", k)
		}
		require.Equal(t, 6, tr.Size())
	})

	t.Run("root of single node tree", func(t *testing.T) {
		tr := NewTree()
		tr.Set([]byte("only"), []byte("v"))

		_, ok := tr.Remove([]byte("only"))
		require.True(t, ok)
		require.Equal(t, EmptyRootHash(), tr.RootHash())
	})
}

// TestAgainstReferenceMap drives the tree and a plain map through the same
// randomized operation sequence and requires identical contents throughout.
func TestAgainstReferenceMap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tr := NewTree()
	ref := make(map[string][]byte)

	for i := 0; i < 5000; i++ {
		key := fmt.Appendf(nil, "key/%03d", rng.Intn(300))
		switch rng.Intn(3) {
		case 0, 1:
			value := fmt.Appendf(nil, "value-%d", i)
			prev, updated := tr.Set(key, value)
			old, existed := ref[string(key)]
			require.Equal(t, existed, updated)
			if existed {
				require.Equal(t, old, prev)
			}
			ref[string(key)] = value
		case 2:
			removed, ok := tr.Remove(key)
			old, existed := ref[string(key)]
			require.Equal(t, existed, ok)
			if existed {
				require.Equal(t, old, removed)
			}
			delete(ref, string(key))
		}

		if i%500 == 0 {
			checkInvariants(t, tr)
		}
	}

	checkInvariants(t, tr)
	require.Equal(t, len(ref), tr.Size())
	for k, v := range ref {
		got, ok := tr.Get([]byte(k))
		require.True(t, ok, "missing key %q", k)
		require.Equal(t, v, got)
	}
}

func TestOrderIndependentContents(t *testing.T) {
	keys := []string{"m", "c", "x", "a", "t", "e", "q", "b", "z", "k"}

	forward := NewTree()
	for _, k := range keys {
		forward.Set([]byte(k), []byte(k))
	}
	backward := NewTree()
	for i := len(keys) - 1; i >= 0; i-- {
		backward.Set([]byte(keys[i]), []byte(keys[i]))
	}

	checkInvariants(t, forward)
	checkInvariants(t, backward)
	require.Equal(t, forward.Size(), backward.Size())
	forward.Iterate(func(key, value []byte) bool {
		got, ok := backward.Get(key)
		require.True(t, ok)
		require.Equal(t, value, got)
		return true
	})
}

func TestCopySharesButDiverges(t *testing.T) {
	tr := NewTree()
	tr.Set([]byte("a"), []byte("1"))
	tr.Set([]byte("b"), []byte("2"))
	snapshot := tr.Copy()
	snapHash := snapshot.RootHash()

	tr.Set([]byte("c"), []byte("3"))
	tr.Set([]byte("a"), []byte("overwritten"))
	tr.Remove([]byte("b"))

	// The snapshot is untouched by later mutations.
	require.Equal(t, snapHash, snapshot.RootHash())
	got, ok := snapshot.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, []byte("1"), got)
	require.True(t, snapshot.Has([]byte("b")))
	require.False(t, snapshot.Has([]byte("c")))
}

func TestReturnedValuesAreCopies(t *testing.T) {
	tr := NewTree()
	tr.Set([]byte("a"), []byte("original"))
	tr.Set([]byte("b"), []byte("other"))
	snapshot := tr.Copy()
	snapHash := snapshot.RootHash()

	// Scribbling over slices handed out by reads and removals must not
	// reach the structurally shared nodes.
	got, ok := tr.Get([]byte("a"))
	require.True(t, ok)
	for i := range got {
		got[i] = 'X'
	}

	prev, updated := tr.Set([]byte("b"), []byte("replaced"))
	require.True(t, updated)
	for i := range prev {
		prev[i] = 'X'
	}

	removed, ok := tr.Remove([]byte("a"))
	require.True(t, ok)
	for i := range removed {
		removed[i] = 'X'
	}

	require.Equal(t, snapHash, snapshot.RootHash())
	got, ok = snapshot.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, []byte("original"), got)
	got, ok = snapshot.Get([]byte("b"))
	require.True(t, ok)
	require.Equal(t, []byte("other"), got)
}

func TestGetKeys(t *testing.T) {
	tr := NewTree()
	for _, k := range []string{"bank/balance/alice", "bank/balance/bob", "bank/supply", "auth/account/alice"} {
		tr.Set([]byte(k), []byte("v"))
	}

	t.Run("prefix match", func(t *testing.T) {
		keys := tr.GetKeys([]byte("bank/balance/"))
		require.Len(t, keys, 2)
		require.Equal(t, []byte("bank/balance/alice"), keys[0])
		require.Equal(t, []byte("bank/balance/bob"), keys[1])
	})

	t.Run("all keys", func(t *testing.T) {
		require.Len(t, tr.GetKeys(nil), 4)
	})

	t.Run("no match", func(t *testing.T) {
		require.Empty(t, tr.GetKeys([]byte("gov/")))
	})
}

func TestIterateAscending(t *testing.T) {
	tr := NewTree()
	for _, k := range []string{"d", "a", "c", "b"} {
		tr.Set([]byte(k), []byte(k))
	}

	var seen []string
	tr.Iterate(func(key, _ []byte) bool {
		seen = append(seen, string(key))
		return true
	})
	require.Equal(t, []string{"a", "b", "c", "d"}, seen)
}

func TestRootHashDeterminism(t *testing.T) {
	build := func() []byte {
		tr := NewTree()
		for i := 0; i < 100; i++ {
			tr.Set(fmt.Appendf(nil, "key/%02d", i), fmt.Appendf(nil, "value-%d", i))
		}
		for i := 0; i < 100; i += 3 {
			tr.Remove(fmt.Appendf(nil, "key/%02d", i))
		}
		return tr.RootHash()
	}
	require.Equal(t, build(), build())
}
