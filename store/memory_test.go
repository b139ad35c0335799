package store

import (
	"fmt"
	"testing"

	ics23 "github.com/cosmos/ics23/go"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/stateberry/types"
)

func TestInMemoryStoreBasics(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	path := types.MustPath("accounts/alice")

	t.Run("set returns previous value", func(t *testing.T) {
		prev, err := s.Set(path, []byte("100"))
		require.NoError(t, err)
		require.Nil(t, prev)

		prev, err = s.Set(path, []byte("200"))
		require.NoError(t, err)
		require.Equal(t, []byte("100"), prev)
	})

	t.Run("pending read sees uncommitted write", func(t *testing.T) {
		value, err := s.Get(types.Pending(), path)
		require.NoError(t, err)
		require.Equal(t, []byte("200"), value)
	})

	t.Run("latest read is absent before any commit", func(t *testing.T) {
		value, err := s.Get(types.Latest(), path)
		require.NoError(t, err)
		require.Nil(t, value)
	})

	t.Run("empty value is rejected", func(t *testing.T) {
		_, err := s.Set(path, nil)
		require.Error(t, err)
		_, err = s.Set(path, []byte{})
		require.Error(t, err)
	})

	t.Run("empty path is rejected", func(t *testing.T) {
		_, err := s.Set(types.Path{}, []byte("x"))
		require.ErrorIs(t, err, types.ErrEmptyPath)
		err = s.Delete(types.Path{})
		require.ErrorIs(t, err, types.ErrEmptyPath)
	})

	t.Run("delete removes from pending", func(t *testing.T) {
		require.NoError(t, s.Delete(path))
		value, err := s.Get(types.Pending(), path)
		require.NoError(t, err)
		require.Nil(t, value)
	})

	t.Run("deleting absent key is a no-op", func(t *testing.T) {
		require.NoError(t, s.Delete(types.MustPath("no/such/key")))
	})
}

func TestInMemoryStoreCommitAndReset(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	path := types.MustPath("m/k")

	_, err := s.Set(path, []byte("v1"))
	require.NoError(t, err)

	root1, err := s.Commit()
	require.NoError(t, err)
	require.Len(t, root1, 32)
	require.Equal(t, uint64(1), s.CurrentHeight())

	// Mutate pending, then roll back.
	_, err = s.Set(path, []byte("v2"))
	require.NoError(t, err)
	value, err := s.Get(types.Pending(), path)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), value)

	require.NoError(t, s.Reset())

	value, err = s.Get(types.Pending(), path)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), value)

	// Reset restores the exact staged root hash.
	require.Equal(t, root1, s.RootHash())

	// Committing the rolled-back state reproduces the same root.
	root2, err := s.Commit()
	require.NoError(t, err)
	require.Equal(t, root1, root2)
	require.Equal(t, uint64(2), s.CurrentHeight())
}

func TestInMemoryStoreApplyVersusCommit(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	path := types.MustPath("m/k")

	_, err := s.Set(path, []byte("applied"))
	require.NoError(t, err)
	require.NoError(t, s.Apply())
	require.Equal(t, uint64(0), s.CurrentHeight(), "apply must not create a height")

	// Writes after Apply are discarded by Reset, back to the applied state.
	_, err = s.Set(path, []byte("scratch"))
	require.NoError(t, err)
	require.NoError(t, s.Reset())

	value, err := s.Get(types.Pending(), path)
	require.NoError(t, err)
	require.Equal(t, []byte("applied"), value)
}

func TestInMemoryStoreHeightResolution(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	path := types.MustPath("m/k")

	for i := 1; i <= 3; i++ {
		_, err := s.Set(path, []byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
		_, err = s.Commit()
		require.NoError(t, err)
	}

	t.Run("each committed height is readable", func(t *testing.T) {
		for i := uint64(1); i <= 3; i++ {
			value, err := s.Get(types.Stable(i), path)
			require.NoError(t, err)
			require.Equal(t, []byte(fmt.Sprintf("v%d", i)), value)
		}
	})

	t.Run("stable zero means latest", func(t *testing.T) {
		value, err := s.Get(types.Stable(0), path)
		require.NoError(t, err)
		require.Equal(t, []byte("v3"), value)
	})

	t.Run("future height reads as absent", func(t *testing.T) {
		value, err := s.Get(types.Stable(99), path)
		require.NoError(t, err)
		require.Nil(t, value)
	})

	t.Run("committed heights are immutable snapshots", func(t *testing.T) {
		_, err := s.Set(path, []byte("pending-only"))
		require.NoError(t, err)
		value, err := s.Get(types.Stable(2), path)
		require.NoError(t, err)
		require.Equal(t, []byte("v2"), value)
	})
}

func TestInMemoryStorePrune(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	path := types.MustPath("m/k")
	for i := 1; i <= 5; i++ {
		_, err := s.Set(path, []byte(fmt.Sprintf("v%d", i)))
		require.NoError(t, err)
		_, err = s.Commit()
		require.NoError(t, err)
	}

	prunedTo, err := s.Prune(3)
	require.NoError(t, err)
	require.Equal(t, uint64(3), prunedTo)
	require.Equal(t, uint64(5), s.CurrentHeight(), "prune must not change the current height")

	t.Run("heights below the floor read as absent", func(t *testing.T) {
		for _, h := range []uint64{1, 2} {
			value, err := s.Get(types.Stable(h), path)
			require.NoError(t, err)
			require.Nil(t, value)
		}
	})

	t.Run("floor and newer heights survive", func(t *testing.T) {
		for _, h := range []uint64{3, 4, 5} {
			value, err := s.Get(types.Stable(h), path)
			require.NoError(t, err)
			require.Equal(t, []byte(fmt.Sprintf("v%d", h)), value)
		}
	})

	t.Run("pruning past the end keeps the newest snapshot", func(t *testing.T) {
		prunedTo, err := s.Prune(100)
		require.NoError(t, err)
		require.Equal(t, uint64(5), prunedTo)

		value, err := s.Get(types.Stable(5), path)
		require.NoError(t, err)
		require.Equal(t, []byte("v5"), value)
		value, err = s.Get(types.Latest(), path)
		require.NoError(t, err)
		require.Equal(t, []byte("v5"), value)
	})

	t.Run("pruning an empty store is a no-op", func(t *testing.T) {
		empty := NewInMemoryStore()
		prunedTo, err := empty.Prune(10)
		require.NoError(t, err)
		require.Equal(t, uint64(0), prunedTo)
	})
}

func TestInMemoryStoreGetKeys(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	for _, p := range []string{"bank/alice", "bank/bob", "gov/quorum", "bank/carol"} {
		_, err := s.Set(types.MustPath(p), []byte("x"))
		require.NoError(t, err)
	}

	t.Run("prefix match", func(t *testing.T) {
		paths, err := s.GetKeys(types.MustPath("bank"))
		require.NoError(t, err)
		require.Len(t, paths, 3)
		require.Equal(t, "bank/alice", paths[0].String())
		require.Equal(t, "bank/bob", paths[1].String())
		require.Equal(t, "bank/carol", paths[2].String())
	})

	t.Run("zero path matches everything", func(t *testing.T) {
		paths, err := s.GetKeys(types.Path{})
		require.NoError(t, err)
		require.Len(t, paths, 4)
	})

	t.Run("unmatched prefix is empty", func(t *testing.T) {
		paths, err := s.GetKeys(types.MustPath("staking"))
		require.NoError(t, err)
		require.Empty(t, paths)
	})
}

func TestInMemoryStoreProofs(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	present := types.MustPath("accounts/alice")
	absent := types.MustPath("accounts/mallory")

	_, err := s.Set(present, []byte("100"))
	require.NoError(t, err)
	root, err := s.Commit()
	require.NoError(t, err)

	t.Run("membership proof verifies", func(t *testing.T) {
		proof, err := s.GetProof(types.Latest(), present)
		require.NoError(t, err)
		require.True(t, proof.Exists)
		require.Equal(t, []byte("100"), proof.Value)
		require.Equal(t, root, proof.RootHash)
		require.Equal(t, uint64(1), proof.Height)

		ok, err := proof.Verify(root)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("non-membership proof verifies", func(t *testing.T) {
		proof, err := s.GetProof(types.Latest(), absent)
		require.NoError(t, err)
		require.False(t, proof.Exists)
		require.Nil(t, proof.Value)

		ok, err := proof.Verify(root)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("proof against the wrong root fails", func(t *testing.T) {
		proof, err := s.GetProof(types.Latest(), present)
		require.NoError(t, err)

		wrong := make([]byte, 32)
		ok, err := proof.Verify(wrong)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("proving at an unavailable height fails", func(t *testing.T) {
		_, err := s.GetProof(types.Stable(42), present)
		require.ErrorIs(t, err, types.ErrHeightNotFound)
	})

	t.Run("pending proof reflects uncommitted state", func(t *testing.T) {
		_, err := s.Set(absent, []byte("1"))
		require.NoError(t, err)

		proof, err := s.GetProof(types.Pending(), absent)
		require.NoError(t, err)
		require.True(t, proof.Exists)

		ok, err := proof.Verify(s.RootHash())
		require.NoError(t, err)
		require.True(t, ok)
	})
}

// TestForgedNonMembershipProofRejected assembles a non-existence proof for
// a key that is actually committed, citing the key's true neighbors. Both
// neighbors verify under the root and bracket the key, so only the
// adjacency check stands between a verifier and a lie about present state.
func TestForgedNonMembershipProofRejected(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	for _, p := range []string{"accounts/alice", "accounts/bob", "accounts/carol"} {
		_, err := s.Set(types.MustPath(p), []byte("1"))
		require.NoError(t, err)
	}
	root, err := s.Commit()
	require.NoError(t, err)

	existOf := func(p string) *ics23.ExistenceProof {
		proof, err := s.GetProof(types.Latest(), types.MustPath(p))
		require.NoError(t, err)
		var commitment ics23.CommitmentProof
		require.NoError(t, commitment.Unmarshal(proof.ProofBytes))
		require.NotNil(t, commitment.GetExist())
		return commitment.GetExist()
	}

	forged := &ics23.CommitmentProof{
		Proof: &ics23.CommitmentProof_Nonexist{
			Nonexist: &ics23.NonExistenceProof{
				Key:   []byte("accounts/bob"),
				Left:  existOf("accounts/alice"),
				Right: existOf("accounts/carol"),
			},
		},
	}
	raw, err := forged.Marshal()
	require.NoError(t, err)

	proof := &Proof{
		Key:        []byte("accounts/bob"),
		Exists:     false,
		RootHash:   root,
		Height:     1,
		ProofBytes: raw,
	}
	ok, err := proof.Verify(root)
	require.NoError(t, err)
	require.False(t, ok, "forged non-membership of a committed key was accepted")
}

func TestInMemoryStoreCommitDeterminism(t *testing.T) {
	build := func(order []string) []byte {
		s := NewInMemoryStore()
		defer s.Close()
		for _, p := range order {
			_, err := s.Set(types.MustPath(p), []byte(p))
			require.NoError(t, err)
		}
		root, err := s.Commit()
		require.NoError(t, err)
		return root
	}

	a := build([]string{"m/a", "m/b", "m/c", "n/d"})
	b := build([]string{"n/d", "m/c", "m/b", "m/a"})
	require.Equal(t, a, b, "root hash must depend on contents, not write order")
}
