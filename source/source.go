// Package source produces the stream of blocks an archive is built from.
package source

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/henridf/era1/wire"
)

// Undo reports that the chain was reorganized and every block above
// LastValidNumber must be forgotten.
type Undo struct {
	LastValidNumber uint64        `json:"lastValidNumber"`
	LastValidHash   hexutil.Bytes `json:"lastValidHash"`
}

// Response is one event of a block stream: either a new block or an undo.
type Response struct {
	Block *wire.Block `json:"block,omitempty"`
	Undo  *Undo       `json:"undo,omitempty"`
}
