package canonical

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// Header is a block header of the proof-of-work era. Only the fifteen legacy
// fields take part in the encoding.
type Header struct {
	ParentHash  common.Hash
	OmmersHash  common.Hash
	Beneficiary common.Address
	StateRoot   common.Hash
	TxRoot      common.Hash
	ReceiptRoot common.Hash
	Bloom       types.Bloom
	Difficulty  []byte // big-endian, encoded as supplied
	Number      uint64
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixHash     common.Hash
	Nonce       types.BlockNonce

	// Carried along but never encoded.
	WithdrawalsRoot *common.Hash
	BaseFee         *big.Int
}

func (h *Header) encode(w *rlp.EncoderBuffer) {
	l := w.List()
	w.WriteBytes(h.ParentHash[:])
	w.WriteBytes(h.OmmersHash[:])
	w.WriteBytes(h.Beneficiary[:])
	w.WriteBytes(h.StateRoot[:])
	w.WriteBytes(h.TxRoot[:])
	w.WriteBytes(h.ReceiptRoot[:])
	w.WriteBytes(h.Bloom[:])
	w.WriteBytes(h.Difficulty)
	w.WriteUint64(h.Number)
	w.WriteUint64(h.GasLimit)
	w.WriteUint64(h.GasUsed)
	w.WriteUint64(h.Time)
	w.WriteBytes(h.Extra)
	w.WriteBytes(h.MixHash[:])
	w.WriteBytes(h.Nonce[:])
	w.ListEnd(l)
}

// EncodeRLP implements rlp.Encoder.
func (h *Header) EncodeRLP(_w io.Writer) error {
	w := rlp.NewEncoderBuffer(_w)
	h.encode(&w)
	return w.Flush()
}
