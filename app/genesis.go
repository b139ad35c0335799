package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/blockberries/stateberry/types"
)

// GenesisDoc is the genesis document the application is initialized from.
// AppState is keyed by module identifier; each module receives only its own
// section.
type GenesisDoc struct {
	// ChainID identifies the chain.
	ChainID string `json:"chain_id"`

	// AppState holds the per-module genesis state.
	AppState map[string]json.RawMessage `json:"app_state"`
}

// Validate checks the genesis document for structural problems.
func (d *GenesisDoc) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: missing document", types.ErrInvalidGenesis)
	}
	if d.ChainID == "" {
		return fmt.Errorf("%w: chain_id is required", types.ErrInvalidGenesis)
	}
	for id := range d.AppState {
		if _, err := types.NewIdentifier(id); err != nil {
			return fmt.Errorf("%w: app_state key %q: %v", types.ErrInvalidGenesis, id, err)
		}
	}
	return nil
}

// LoadGenesisDoc reads and validates a genesis document from a JSON file.
func LoadGenesisDoc(path string) (*GenesisDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}
	var doc GenesisDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidGenesis, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}
