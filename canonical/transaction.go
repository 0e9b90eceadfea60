package canonical

import (
	"bytes"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType is the EIP-2718 transaction type.
type TxType uint8

const (
	LegacyTxType     TxType = 0x00
	AccessListTxType TxType = 0x01
	DynamicFeeTxType TxType = 0x02
)

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

type AccessList []AccessTuple

// TxData is the type-specific payload of a transaction. It is implemented by
// LegacyTx, AccessListTx and DynamicFeeTx only.
type TxData interface {
	txType() TxType
	encodePayload(w *rlp.EncoderBuffer, sig *Signature)
}

// Signature holds the signature values common to every transaction type.
type Signature struct {
	OddParity bool
	R, S      *big.Int
}

func (s *Signature) parity() uint64 {
	if s.OddParity {
		return 1
	}
	return 0
}

// LegacyTx is a pre-EIP-2718 transaction. A zero ChainID marks a signature
// without EIP-155 replay protection.
type LegacyTx struct {
	ChainID  uint64
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *common.Address // nil means contract creation
	Value    *big.Int
	Data     []byte
}

// V returns the signature value as it appears in the encoding.
func (tx *LegacyTx) V(sig *Signature) *big.Int {
	if tx.ChainID == 0 {
		return new(big.Int).SetUint64(27 + sig.parity())
	}
	v := new(big.Int).SetUint64(tx.ChainID)
	v.Lsh(v, 1)
	return v.Add(v, new(big.Int).SetUint64(35+sig.parity()))
}

func (tx *LegacyTx) txType() TxType { return LegacyTxType }

func (tx *LegacyTx) encodePayload(w *rlp.EncoderBuffer, sig *Signature) {
	l := w.List()
	w.WriteUint64(tx.Nonce)
	writeBig(w, tx.GasPrice)
	w.WriteUint64(tx.Gas)
	writeTo(w, tx.To)
	writeBig(w, tx.Value)
	w.WriteBytes(tx.Data)
	w.WriteBigInt(tx.V(sig))
	writeBig(w, sig.R)
	writeBig(w, sig.S)
	w.ListEnd(l)
}

// AccessListTx is an EIP-2930 transaction.
type AccessListTx struct {
	ChainID    uint64
	Nonce      uint64
	GasPrice   *big.Int
	Gas        uint64
	To         *common.Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
}

func (tx *AccessListTx) txType() TxType { return AccessListTxType }

func (tx *AccessListTx) encodePayload(w *rlp.EncoderBuffer, sig *Signature) {
	l := w.List()
	w.WriteUint64(tx.ChainID)
	w.WriteUint64(tx.Nonce)
	writeBig(w, tx.GasPrice)
	w.WriteUint64(tx.Gas)
	writeTo(w, tx.To)
	writeBig(w, tx.Value)
	w.WriteBytes(tx.Data)
	writeAccessList(w, tx.AccessList)
	w.WriteUint64(sig.parity())
	writeBig(w, sig.R)
	writeBig(w, sig.S)
	w.ListEnd(l)
}

// DynamicFeeTx is an EIP-1559 transaction.
type DynamicFeeTx struct {
	ChainID    uint64
	Nonce      uint64
	GasTipCap  *big.Int // max priority fee per gas
	GasFeeCap  *big.Int // max fee per gas
	Gas        uint64
	To         *common.Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
}

func (tx *DynamicFeeTx) txType() TxType { return DynamicFeeTxType }

func (tx *DynamicFeeTx) encodePayload(w *rlp.EncoderBuffer, sig *Signature) {
	l := w.List()
	w.WriteUint64(tx.ChainID)
	w.WriteUint64(tx.Nonce)
	writeBig(w, tx.GasTipCap)
	writeBig(w, tx.GasFeeCap)
	w.WriteUint64(tx.Gas)
	writeTo(w, tx.To)
	writeBig(w, tx.Value)
	w.WriteBytes(tx.Data)
	writeAccessList(w, tx.AccessList)
	w.WriteUint64(sig.parity())
	writeBig(w, sig.R)
	writeBig(w, sig.S)
	w.ListEnd(l)
}

func writeTo(w *rlp.EncoderBuffer, to *common.Address) {
	if to == nil {
		w.WriteBytes(nil)
		return
	}
	w.WriteBytes(to[:])
}

func writeAccessList(w *rlp.EncoderBuffer, al AccessList) {
	l := w.List()
	for _, tuple := range al {
		t := w.List()
		w.WriteBytes(tuple.Address[:])
		keys := w.List()
		for _, key := range tuple.StorageKeys {
			w.WriteBytes(key[:])
		}
		w.ListEnd(keys)
		w.ListEnd(t)
	}
	w.ListEnd(l)
}

// Transaction is a signed transaction of one of the supported types.
type Transaction struct {
	Inner     TxData
	Signature Signature
	Hash      common.Hash
}

// Type returns the EIP-2718 type of the transaction.
func (tx *Transaction) Type() TxType {
	return tx.Inner.txType()
}

// MarshalBinary returns the consensus encoding of the transaction: the plain
// list for legacy transactions, or the type byte followed by the payload
// list for typed ones.
func (tx *Transaction) MarshalBinary() ([]byte, error) {
	if tx.Inner == nil {
		return nil, fmt.Errorf("transaction %x has no payload", tx.Hash)
	}
	var buf bytes.Buffer
	if typ := tx.Type(); typ != LegacyTxType {
		buf.Write(EncodeUint(uint64(typ)))
	}
	w := rlp.NewEncoderBuffer(&buf)
	tx.Inner.encodePayload(&w, &tx.Signature)
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeRLP implements rlp.Encoder. Typed transactions are wrapped in an RLP
// string, the form they take inside a block body.
func (tx *Transaction) EncodeRLP(_w io.Writer) error {
	w := rlp.NewEncoderBuffer(_w)
	if err := tx.encode(&w); err != nil {
		return err
	}
	return w.Flush()
}

func (tx *Transaction) encode(w *rlp.EncoderBuffer) error {
	if tx.Inner == nil {
		return fmt.Errorf("transaction %x has no payload", tx.Hash)
	}
	if tx.Type() == LegacyTxType {
		tx.Inner.encodePayload(w, &tx.Signature)
		return nil
	}
	b, err := tx.MarshalBinary()
	if err != nil {
		return err
	}
	w.WriteBytes(b)
	return nil
}
