// Package app hosts the application orchestrator: it owns the main store,
// dispatches transactions and queries across registered modules, and runs
// the two-level commit that folds every module root into one application
// hash.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blockberries/stateberry/logging"
	"github.com/blockberries/stateberry/metrics"
	"github.com/blockberries/stateberry/module"
	"github.com/blockberries/stateberry/store"
	"github.com/blockberries/stateberry/types"
)

// App is the application state machine. It dispatches transactions and
// queries to the first module that recognizes them and commits all module
// stores plus the main store as one deterministic unit.
//
// Block execution (BeginBlock, DeliverTx, Commit) must be driven from a
// single goroutine; CheckTx and Query may be called concurrently at any
// time.
type App struct {
	logger  *logging.Logger
	metrics metrics.Metrics

	main         *store.SharedStore
	moduleStores map[string]*store.SharedStore
	modules      []registeredModule

	mu          sync.RWMutex
	chainID     string
	lastAppHash []byte
}

// InitChain initializes every module from the genesis document. Any module
// failure here is fatal: there is no previous state to roll back to.
func (a *App) InitChain(ctx context.Context, doc *GenesisDoc) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	a.chainID = doc.ChainID
	a.mu.Unlock()

	for _, r := range a.modules {
		if err := r.mod.InitGenesis(ctx, doc.AppState[r.id.String()]); err != nil {
			return fmt.Errorf("initializing module %q: %w", r.id, err)
		}
		// Stage the genesis writes so a later failed transaction cannot
		// roll them away.
		if err := a.moduleStores[r.id.String()].Apply(); err != nil {
			return fmt.Errorf("applying genesis state of module %q: %w", r.id, err)
		}
	}

	a.logger.Info("chain initialized",
		logging.ChainID(doc.ChainID),
		logging.Count(len(a.modules)))
	return nil
}

// CheckTx validates a transaction against the first module that recognizes
// it without executing it.
func (a *App) CheckTx(ctx context.Context, tx []byte) error {
	for _, r := range a.modules {
		err := r.mod.CheckTx(ctx, tx)
		if errors.Is(err, module.ErrNotHandled) {
			continue
		}
		if err != nil {
			a.metrics.IncTxsChecked("rejected")
			return fmt.Errorf("module %q rejected transaction: %w", r.id, err)
		}
		a.metrics.IncTxsChecked("ok")
		return nil
	}
	a.metrics.IncTxsChecked("unhandled")
	return fmt.Errorf("checking transaction: %w", module.ErrNotHandled)
}

// BeginBlock notifies every module that a new block started and collects
// their events.
func (a *App) BeginBlock(ctx context.Context, header *module.BlockHeader) ([]module.Event, error) {
	var events []module.Event
	for _, r := range a.modules {
		moduleEvents, err := r.mod.BeginBlock(ctx, header)
		if err != nil {
			return nil, fmt.Errorf("begin block in module %q: %w", r.id, err)
		}
		events = append(events, moduleEvents...)
	}
	a.logger.Debug("block started", logging.Height(header.Height))
	return events, nil
}

// DeliverTx executes a transaction against the first module that
// recognizes it. On success the handling module's state is applied; on
// failure it is rolled back to the last applied state, so one bad
// transaction cannot poison the block.
func (a *App) DeliverTx(ctx context.Context, tx []byte) ([]module.Event, error) {
	for _, r := range a.modules {
		events, err := r.mod.DeliverTx(ctx, tx)
		if errors.Is(err, module.ErrNotHandled) {
			continue
		}

		moduleStore := a.moduleStores[r.id.String()]
		if err != nil {
			if resetErr := moduleStore.Reset(); resetErr != nil {
				return nil, fmt.Errorf("rolling back module %q after failed transaction: %w", r.id, resetErr)
			}
			a.metrics.IncTxsDelivered("failed")
			a.logger.Debug("transaction failed",
				logging.Module(r.id.String()),
				logging.Error(err))
			return nil, fmt.Errorf("module %q: %w", r.id, err)
		}

		if err := moduleStore.Apply(); err != nil {
			return nil, fmt.Errorf("applying module %q state: %w", r.id, err)
		}
		a.metrics.IncTxsDelivered("ok")
		return events, nil
	}
	a.metrics.IncTxsDelivered("unhandled")
	return nil, fmt.Errorf("delivering transaction: %w", module.ErrNotHandled)
}

// QueryResponse is the application-level query result. When proofs were
// requested it carries the two-level chain: the module-store proof for the
// queried key and the main-store proof binding that module's root to the
// application hash.
type QueryResponse struct {
	// Module is the module that answered the query.
	Module types.Identifier

	// Data is the query result; nil if the key is absent.
	Data []byte

	// Height is the committed height the query was answered at.
	Height uint64

	// ModuleProof proves the key against the module store root.
	ModuleProof *store.Proof

	// StoreProof proves the module store root against the application
	// hash.
	StoreProof *store.Proof
}

// Verify checks the two-level proof chain against an application hash: the
// main-store proof must bind the module's root hash to appHash, and the
// module proof must verify against that root.
func (r *QueryResponse) Verify(appHash []byte) error {
	if r.ModuleProof == nil || r.StoreProof == nil {
		return fmt.Errorf("%w: missing proof chain", types.ErrInvalidProof)
	}
	if !r.StoreProof.Exists {
		return fmt.Errorf("%w: module root is not in the main store", types.ErrInvalidProof)
	}
	if !bytes.Equal(r.StoreProof.Key, []byte(r.Module.String())) {
		return fmt.Errorf("%w: store proof is for the wrong module", types.ErrInvalidProof)
	}

	ok, err := r.StoreProof.Verify(appHash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: store proof does not match app hash", types.ErrInvalidProof)
	}

	moduleRoot := r.StoreProof.Value
	ok, err = r.ModuleProof.Verify(moduleRoot)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: module proof does not match module root", types.ErrInvalidProof)
	}
	return nil
}

// Query dispatches a query to the first module that recognizes it, in
// registration order, mirroring the transaction dispatch: ErrNotHandled
// moves the scan along, any other failure aborts, and a request every
// module declines fails with ErrNotHandled. With Prove set, the response
// carries the full proof chain; proofs are only available at committed
// heights.
func (a *App) Query(ctx context.Context, req *module.QueryRequest) (*QueryResponse, error) {
	if req == nil || req.Path.IsZero() {
		return nil, types.ErrEmptyPath
	}
	if req.Prove && req.Height.IsPending() {
		return nil, fmt.Errorf("querying %q: proofs require a committed height", req.Path)
	}

	for _, r := range a.modules {
		result, err := r.mod.Query(ctx, req)
		if errors.Is(err, module.ErrNotHandled) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", r.id, err)
		}
		a.metrics.IncQueries(r.id.String())

		resp := &QueryResponse{
			Module: r.id,
			Data:   result.Data,
		}
		if result.Proof != nil {
			resp.Height = result.Proof.Height
		}
		if !req.Prove {
			return resp, nil
		}

		resp.ModuleProof = result.Proof
		if resp.ModuleProof == nil {
			return nil, fmt.Errorf("module %q returned no proof for a proven query", r.id)
		}
		a.metrics.IncProofsGenerated()

		storeProof, err := a.main.GetProof(req.Height, types.PathFromIdentifier(r.id))
		if err != nil {
			return nil, fmt.Errorf("proving module %q root: %w", r.id, err)
		}
		resp.StoreProof = storeProof
		return resp, nil
	}
	return nil, fmt.Errorf("querying %q: %w", req.Path, module.ErrNotHandled)
}

// CommitResult reports the outcome of a two-level commit.
type CommitResult struct {
	// AppHash is the new application state hash: the main store root
	// covering every module's root hash.
	AppHash []byte

	// Height is the new committed height.
	Height uint64
}

// Commit runs the two-level commit: every module store commits and its new
// root hash is recorded in the main store under the module's identifier,
// then the main store commits. The resulting main store root is the
// application hash. Module iteration follows registration order, so the
// result is deterministic for identical inputs.
func (a *App) Commit(ctx context.Context) (*CommitResult, error) {
	start := time.Now()

	for _, r := range a.modules {
		root, err := a.moduleStores[r.id.String()].Commit()
		if err != nil {
			return nil, fmt.Errorf("committing module %q: %w", r.id, err)
		}
		if root == nil {
			continue
		}
		if _, err := a.main.Set(types.PathFromIdentifier(r.id), root); err != nil {
			return nil, fmt.Errorf("recording module %q root: %w", r.id, err)
		}
	}

	appHash, err := a.main.Commit()
	if err != nil {
		return nil, fmt.Errorf("committing main store: %w", err)
	}
	height := a.main.CurrentHeight()

	a.mu.Lock()
	a.lastAppHash = appHash
	a.mu.Unlock()

	a.metrics.IncCommits()
	a.metrics.SetAppHeight(height)
	a.metrics.ObserveCommitDuration(time.Since(start))
	a.logger.Info("committed",
		logging.Height(height),
		logging.AppHash(appHash),
		logging.Duration(time.Since(start)))

	return &CommitResult{AppHash: appHash, Height: height}, nil
}

// ChainID returns the chain identifier set at genesis.
func (a *App) ChainID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.chainID
}

// AppHash returns the application hash of the last commit.
func (a *App) AppHash() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastAppHash
}

// Height returns the current committed height.
func (a *App) Height() uint64 {
	return a.main.CurrentHeight()
}

// Close closes the main store and every module store.
func (a *App) Close() error {
	var firstErr error
	for _, r := range a.modules {
		if err := a.moduleStores[r.id.String()].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.main.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
