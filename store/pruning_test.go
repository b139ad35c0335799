package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stateberry/types"
)

// recordingMetrics captures the store-side metric calls for assertions.
type recordingMetrics struct {
	mu           sync.Mutex
	prunes       int
	prunedHeight uint64
	snapshots    int
}

func (m *recordingMetrics) SetAppHeight(uint64)                 {}
func (m *recordingMetrics) IncTxsChecked(string)                {}
func (m *recordingMetrics) IncTxsDelivered(string)              {}
func (m *recordingMetrics) IncCommits()                         {}
func (m *recordingMetrics) ObserveCommitDuration(time.Duration) {}
func (m *recordingMetrics) IncQueries(string)                   {}
func (m *recordingMetrics) IncProofsGenerated()                 {}

func (m *recordingMetrics) IncPrunes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunes++
}

func (m *recordingMetrics) SetPrunedHeight(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunedHeight = height
}

func (m *recordingMetrics) ObserveSnapshotDuration(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots++
}

func TestPruneConfig(t *testing.T) {
	t.Run("defaults validate", func(t *testing.T) {
		require.NoError(t, DefaultPruneConfig().Validate())
		require.NoError(t, ArchivePruneConfig().Validate())
	})

	t.Run("negative interval is rejected", func(t *testing.T) {
		cfg := &PruneConfig{Interval: -time.Second, Enabled: true}
		require.Error(t, cfg.Validate())
	})

	t.Run("prune target", func(t *testing.T) {
		cfg := &PruneConfig{KeepRecent: 10, Enabled: true}
		require.Equal(t, uint64(0), cfg.PruneTarget(5))
		require.Equal(t, uint64(0), cfg.PruneTarget(10))
		require.Equal(t, uint64(1), cfg.PruneTarget(11))
		require.Equal(t, uint64(90), cfg.PruneTarget(100))
	})

	t.Run("disabled config never targets", func(t *testing.T) {
		require.Equal(t, uint64(0), ArchivePruneConfig().PruneTarget(1000))
	})
}

func TestBackgroundPrunerLifecycle(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	pruner := NewBackgroundPruner(s, &PruneConfig{
		KeepRecent: 2,
		Interval:   10 * time.Millisecond,
		Enabled:    true,
	})

	require.False(t, pruner.IsRunning())
	require.NoError(t, pruner.Start())
	require.True(t, pruner.IsRunning())
	require.Error(t, pruner.Start(), "double start must fail")

	require.NoError(t, pruner.Stop())
	require.False(t, pruner.IsRunning())
	require.ErrorIs(t, pruner.Stop(), ErrPrunerNotActive)
}

func TestBackgroundPrunerDisabled(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	pruner := NewBackgroundPruner(s, ArchivePruneConfig())
	require.ErrorIs(t, pruner.Start(), ErrPruningDisabled)
}

func TestBackgroundPrunerPruneNow(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	path := types.MustPath("m/k")
	for i := 0; i < 5; i++ {
		_, err := s.Set(path, []byte{byte(i + 1)})
		require.NoError(t, err)
		_, err = s.Commit()
		require.NoError(t, err)
	}

	pruner := NewBackgroundPruner(s, &PruneConfig{KeepRecent: 2, Enabled: true})

	result, err := pruner.PruneNow()
	require.NoError(t, err)
	require.Equal(t, uint64(5), result.CurrentHeight)
	require.Equal(t, uint64(3), result.PrunedTo)

	value, err := s.Get(types.Stable(2), path)
	require.NoError(t, err)
	require.Nil(t, value, "pruned height must read as absent")

	value, err = s.Get(types.Stable(3), path)
	require.NoError(t, err)
	require.Equal(t, []byte{3}, value)
}

func TestBackgroundPrunerMetrics(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	path := types.MustPath("m/k")
	for i := 0; i < 5; i++ {
		_, err := s.Set(path, []byte{byte(i + 1)})
		require.NoError(t, err)
		_, err = s.Commit()
		require.NoError(t, err)
	}

	pruner := NewBackgroundPruner(s, &PruneConfig{KeepRecent: 2, Enabled: true})
	recorded := &recordingMetrics{}
	pruner.SetMetrics(recorded)

	_, err := pruner.PruneNow()
	require.NoError(t, err)

	recorded.mu.Lock()
	defer recorded.mu.Unlock()
	require.Equal(t, 1, recorded.prunes)
	require.Equal(t, uint64(3), recorded.prunedHeight)
}

func TestBackgroundPrunerCallback(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()

	path := types.MustPath("m/k")
	for i := 0; i < 4; i++ {
		_, err := s.Set(path, []byte{byte(i + 1)})
		require.NoError(t, err)
		_, err = s.Commit()
		require.NoError(t, err)
	}

	pruner := NewBackgroundPruner(s, &PruneConfig{
		KeepRecent: 1,
		Interval:   5 * time.Millisecond,
		Enabled:    true,
	})

	pruned := make(chan *PruneResult, 1)
	pruner.SetOnPrune(func(r *PruneResult) {
		select {
		case pruned <- r:
		default:
		}
	})

	require.NoError(t, pruner.Start())
	defer pruner.Stop()

	select {
	case result := <-pruned:
		require.Equal(t, uint64(3), result.PrunedTo)
	case <-time.After(2 * time.Second):
		t.Fatal("pruner callback never fired")
	}
}
