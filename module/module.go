// Package module defines the contract application modules implement to
// participate in transaction dispatch, state queries and the commit cycle.
package module

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/blockberries/stateberry/store"
)

// ErrNotHandled signals that a module does not recognize a transaction or
// query. It is control flow, not failure: the dispatcher moves on to the
// next registered module and only reports an error when every module
// declines.
var ErrNotHandled = errors.New("not handled by this module")

// Module is the interface application modules must implement.
//
// A module owns a subtree of application state through the store handle it
// was built with and reacts to the messages it recognizes. Methods are
// invoked by the application in a fixed order during block execution:
//
//  1. BeginBlock - once at the start of a block
//  2. DeliverTx  - for each transaction, in order, until a module handles it
//  3. (the application applies or rolls back the module stores)
//
// CheckTx and Query may be called at any time and must not mutate
// committed state.
type Module interface {
	// InitGenesis initializes the module's state from its genesis
	// document. A failure here is fatal to the application; there is no
	// state to roll back to.
	InitGenesis(ctx context.Context, appState json.RawMessage) error

	// CheckTx validates a transaction for acceptance without executing
	// it. Returns ErrNotHandled if the transaction is not addressed to
	// this module.
	CheckTx(ctx context.Context, tx []byte) error

	// DeliverTx executes a transaction against the module's pending
	// state, returning the events it emitted. Returns ErrNotHandled if
	// the transaction is not addressed to this module; any other error
	// aborts the transaction and the application rolls the pending state
	// back.
	DeliverTx(ctx context.Context, tx []byte) ([]Event, error)

	// BeginBlock is called once at the start of each block with the new
	// block's header. Modules with no per-block logic return no events.
	BeginBlock(ctx context.Context, header *BlockHeader) ([]Event, error)

	// Query reads module state. Returns ErrNotHandled if the query path
	// is not recognized by this module.
	Query(ctx context.Context, req *QueryRequest) (*QueryResult, error)

	// Store returns the module's state store handle.
	Store() store.ProvableStore
}
