package module

import "time"

// BlockHeader carries the block metadata modules see in BeginBlock.
type BlockHeader struct {
	// ChainID identifies the chain this block belongs to.
	ChainID string

	// Height is the block height being executed.
	Height uint64

	// Time is the block timestamp.
	Time time.Time

	// AppHash is the application state hash after the previous block.
	AppHash []byte
}
