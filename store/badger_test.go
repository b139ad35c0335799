package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	dir := t.TempDir()
	open := func(t *testing.T) Store {
		s, err := NewBadgerStore(dir, 0)
		require.NoError(t, err)
		return s
	}
	testDurableStore(t, open, open)
}
