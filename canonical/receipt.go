package canonical

import (
	"bytes"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	receiptStatusFailed     = []byte{}
	receiptStatusSuccessful = []byte{0x01}
)

// Log is an event emitted during transaction execution.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

func (l *Log) encode(w *rlp.EncoderBuffer) {
	list := w.List()
	w.WriteBytes(l.Address[:])
	topics := w.List()
	for _, topic := range l.Topics {
		w.WriteBytes(topic[:])
	}
	w.ListEnd(topics)
	w.WriteBytes(l.Data)
	w.ListEnd(list)
}

// Receipt is a receipt of the post-Byzantium shape, carrying a status flag
// instead of an intermediate state root.
type Receipt struct {
	Type              TxType
	Success           bool
	CumulativeGasUsed uint64
	Bloom             types.Bloom
	Logs              []*Log
}

func (r *Receipt) encodePayload(w *rlp.EncoderBuffer) {
	l := w.List()
	if r.Success {
		w.WriteBytes(receiptStatusSuccessful)
	} else {
		w.WriteBytes(receiptStatusFailed)
	}
	w.WriteUint64(r.CumulativeGasUsed)
	w.WriteBytes(r.Bloom[:])
	logs := w.List()
	for _, log := range r.Logs {
		log.encode(w)
	}
	w.ListEnd(logs)
	w.ListEnd(l)
}

func (r *Receipt) encode(w *rlp.EncoderBuffer, tmp *bytes.Buffer) error {
	if r.Type == LegacyTxType {
		r.encodePayload(w)
		return nil
	}
	tmp.Reset()
	tmp.Write(EncodeUint(uint64(r.Type)))
	inner := rlp.NewEncoderBuffer(tmp)
	r.encodePayload(&inner)
	if err := inner.Flush(); err != nil {
		return err
	}
	w.WriteBytes(tmp.Bytes())
	return nil
}

// LegacyLog is a log of a pre-Byzantium receipt, kept exactly as received.
type LegacyLog struct {
	Address []byte
	Topics  [][]byte
	Data    []byte
}

// LegacyReceipt is a pre-Byzantium receipt. Its fields are encoded as
// received, without length checks.
type LegacyReceipt struct {
	StateRoot         []byte
	CumulativeGasUsed uint64
	Bloom             []byte
	Logs              []*LegacyLog
}

func (r *LegacyReceipt) encode(w *rlp.EncoderBuffer) {
	l := w.List()
	w.WriteBytes(r.StateRoot)
	w.WriteUint64(r.CumulativeGasUsed)
	w.WriteBytes(r.Bloom)
	logs := w.List()
	for _, log := range r.Logs {
		list := w.List()
		w.WriteBytes(log.Address)
		topics := w.List()
		for _, topic := range log.Topics {
			w.WriteBytes(topic)
		}
		w.ListEnd(topics)
		w.WriteBytes(log.Data)
		w.ListEnd(list)
	}
	w.ListEnd(logs)
	w.ListEnd(l)
}

// ReceiptList is the receipts of one block, in either the pre-Byzantium or
// the post-Byzantium shape.
type ReceiptList interface {
	Len() int
	encode(w *rlp.EncoderBuffer) error
}

// LegacyReceipts is the receipt list of a pre-Byzantium block.
type LegacyReceipts []*LegacyReceipt

func (rs LegacyReceipts) Len() int { return len(rs) }

func (rs LegacyReceipts) encode(w *rlp.EncoderBuffer) error {
	l := w.List()
	for _, r := range rs {
		r.encode(w)
	}
	w.ListEnd(l)
	return nil
}

// Receipts is the receipt list of a post-Byzantium block.
type Receipts []*Receipt

func (rs Receipts) Len() int { return len(rs) }

func (rs Receipts) encode(w *rlp.EncoderBuffer) error {
	var tmp bytes.Buffer
	l := w.List()
	for _, r := range rs {
		if err := r.encode(w, &tmp); err != nil {
			return err
		}
	}
	w.ListEnd(l)
	return nil
}

// EncodeReceipts writes the canonical encoding of a block's receipt list.
func EncodeReceipts(dst io.Writer, rs ReceiptList) error {
	w := rlp.NewEncoderBuffer(dst)
	if rs == nil {
		w.ListEnd(w.List())
		return w.Flush()
	}
	if err := rs.encode(&w); err != nil {
		return err
	}
	return w.Flush()
}
