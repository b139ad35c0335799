package module

import (
	"github.com/blockberries/stateberry/store"
	"github.com/blockberries/stateberry/types"
)

// QueryRequest represents a request to read module state.
type QueryRequest struct {
	// Path routes the query; its first identifier names the module.
	Path types.Path

	// Data contains query-specific data (e.g., a serialized key).
	Data []byte

	// Height specifies which state to read.
	Height types.Height

	// Prove requests a merkle proof be included in the response.
	Prove bool
}

// QueryResult is the response to a state query.
type QueryResult struct {
	// Data contains the query result data; nil if the key is absent.
	Data []byte

	// Proof is the module-store proof, present when the request asked
	// for one.
	Proof *store.Proof
}

// Exists returns true if the queried key was present.
func (r *QueryResult) Exists() bool {
	return r != nil && r.Data != nil
}
