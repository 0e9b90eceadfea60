package canonical

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Body holds a block's transactions and uncle headers.
type Body struct {
	Transactions []*Transaction
	Uncles       []*Header
}

// EncodeRLP implements rlp.Encoder.
func (b *Body) EncodeRLP(_w io.Writer) error {
	w := rlp.NewEncoderBuffer(_w)
	l := w.List()
	txs := w.List()
	for i, tx := range b.Transactions {
		if err := tx.encode(&w); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	w.ListEnd(txs)
	uncles := w.List()
	for _, u := range b.Uncles {
		u.encode(&w)
	}
	w.ListEnd(uncles)
	w.ListEnd(l)
	return w.Flush()
}

// Block is everything an archive stores about one block.
type Block struct {
	Header          *Header
	Body            *Body
	Receipts        ReceiptList
	TotalDifficulty *uint256.Int
}

// Encoded holds the uncompressed record payloads of a block.
type Encoded struct {
	Header          []byte
	Body            []byte
	Receipts        []byte
	TotalDifficulty []byte
}

// Encode produces the uncompressed payload of each of the block's records.
func (b *Block) Encode() (*Encoded, error) {
	var (
		enc Encoded
		err error
		buf bytes.Buffer
	)
	if enc.Header, err = rlp.EncodeToBytes(b.Header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if enc.Body, err = rlp.EncodeToBytes(b.Body); err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	if err = EncodeReceipts(&buf, b.Receipts); err != nil {
		return nil, fmt.Errorf("receipts: %w", err)
	}
	enc.Receipts = buf.Bytes()
	td := EncodeTotalDifficulty(b.TotalDifficulty)
	enc.TotalDifficulty = td[:]
	return &enc, nil
}

// EncodeTotalDifficulty returns the 32-byte little-endian form of the total
// difficulty. A nil value encodes as zero.
func EncodeTotalDifficulty(td *uint256.Int) [32]byte {
	var out [32]byte
	if td == nil {
		return out
	}
	be := td.Bytes32()
	for i := range be {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// DecodeTotalDifficulty reverses EncodeTotalDifficulty.
func DecodeTotalDifficulty(b []byte) (*uint256.Int, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("total difficulty has %d bytes, want 32", len(b))
	}
	var be [32]byte
	for i := range be {
		be[i] = b[len(b)-1-i]
	}
	return new(uint256.Int).SetBytes32(be[:]), nil
}
