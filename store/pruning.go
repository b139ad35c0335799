package store

import (
	"errors"
	"sync"
	"time"

	"github.com/blockberries/stateberry/metrics"
)

// Pruning errors.
var (
	ErrPruningDisabled = errors.New("pruning is disabled")
	ErrPrunerNotActive = errors.New("pruner not running")
)

// PruneConfig defines configuration for automatic height pruning.
type PruneConfig struct {
	// KeepRecent is the number of recent heights to always keep.
	KeepRecent uint64 `toml:"keep_recent"`

	// Interval is how often to run automatic pruning.
	// Set to 0 to disable automatic pruning.
	Interval time.Duration `toml:"interval"`

	// Enabled indicates whether pruning is enabled.
	Enabled bool `toml:"enabled"`
}

// DefaultPruneConfig returns sensible defaults for pruning.
func DefaultPruneConfig() *PruneConfig {
	return &PruneConfig{
		KeepRecent: 100,
		Interval:   time.Hour,
		Enabled:    true,
	}
}

// ArchivePruneConfig returns config for archive deployments (no pruning).
func ArchivePruneConfig() *PruneConfig {
	return &PruneConfig{
		Enabled: false,
	}
}

// Validate checks if the prune configuration is valid.
func (c *PruneConfig) Validate() error {
	if c == nil {
		return nil
	}
	if c.Interval < 0 {
		return errors.New("interval cannot be negative")
	}
	return nil
}

// PruneTarget returns the height below which snapshots can be pruned.
// A zero return means nothing can be pruned yet.
func (c *PruneConfig) PruneTarget(currentHeight uint64) uint64 {
	if c == nil || !c.Enabled || currentHeight <= c.KeepRecent {
		return 0
	}
	return currentHeight - c.KeepRecent
}

// PruneResult contains information about one pruning run.
type PruneResult struct {
	// PrunedTo is the height floor after pruning.
	PrunedTo uint64

	// CurrentHeight is the newest height (unchanged by pruning).
	CurrentHeight uint64

	// Duration is how long the pruning took.
	Duration time.Duration
}

// BackgroundPruner runs automatic pruning of a store in the background.
type BackgroundPruner struct {
	store   Store
	cfg     *PruneConfig
	metrics metrics.Metrics
	stopCh  chan struct{}
	doneCh  chan struct{}

	running bool
	mu      sync.Mutex

	onPrune func(*PruneResult)
	onError func(error)
}

// NewBackgroundPruner creates a new background pruner over store.
func NewBackgroundPruner(store Store, cfg *PruneConfig) *BackgroundPruner {
	return &BackgroundPruner{
		store:   store,
		cfg:     cfg,
		metrics: metrics.NewNopMetrics(),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// SetMetrics replaces the pruner's metrics sink.
func (p *BackgroundPruner) SetMetrics(m metrics.Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = m
}

// SetOnPrune sets a callback invoked after a pruning run removed heights.
func (p *BackgroundPruner) SetOnPrune(fn func(*PruneResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onPrune = fn
}

// SetOnError sets a callback invoked when pruning fails.
func (p *BackgroundPruner) SetOnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

// Start begins the background pruning loop.
func (p *BackgroundPruner) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.New("pruner already running")
	}
	if p.cfg == nil || !p.cfg.Enabled || p.cfg.Interval <= 0 {
		return ErrPruningDisabled
	}

	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.pruneLoop()

	return nil
}

// Stop stops the background pruning loop and waits for it to exit.
func (p *BackgroundPruner) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPrunerNotActive
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	<-p.doneCh
	return nil
}

// IsRunning returns true if the pruner is running.
func (p *BackgroundPruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// PruneNow triggers an immediate prune run.
func (p *BackgroundPruner) PruneNow() (*PruneResult, error) {
	return p.doPrune()
}

func (p *BackgroundPruner) pruneLoop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			result, err := p.doPrune()

			p.mu.Lock()
			onPrune, onError := p.onPrune, p.onError
			p.mu.Unlock()

			if err != nil {
				if onError != nil {
					onError(err)
				}
			} else if result.PrunedTo > 0 && onPrune != nil {
				onPrune(result)
			}
		}
	}
}

func (p *BackgroundPruner) doPrune() (*PruneResult, error) {
	current := p.store.CurrentHeight()
	target := p.cfg.PruneTarget(current)
	if target == 0 {
		return &PruneResult{CurrentHeight: current}, nil
	}

	start := time.Now()
	prunedTo, err := p.store.Prune(target)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	m := p.metrics
	p.mu.Unlock()
	m.IncPrunes()
	m.SetPrunedHeight(prunedTo)

	return &PruneResult{
		PrunedTo:      prunedTo,
		CurrentHeight: current,
		Duration:      time.Since(start),
	}, nil
}
