// Package mapper turns the loosely typed blocks of a source stream into the
// canonical objects stored in an archive, validating every fixed-size field
// along the way.
package mapper

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/henridf/era1/canonical"
	"github.com/henridf/era1/wire"
)

// Mapper converts wire blocks into canonical blocks.
type Mapper struct {
	cfg Config
}

// New creates a mapper with the mainnet configuration, as modified by the
// given options.
func New(options ...func(*Config)) *Mapper {
	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}
	return &Mapper{cfg: cfg}
}

// Config returns the configuration in use.
func (m *Mapper) Config() Config {
	return m.cfg
}

// Block maps a whole block. The genesis block never carries transactions,
// whatever the source says.
func (m *Mapper) Block(b *wire.Block) (*canonical.Block, error) {
	if b.Header == nil {
		return nil, ErrMissingHeader
	}
	header, err := m.Header(b.Header)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	td, err := m.TotalDifficulty(b.Header.TotalDifficulty)
	if err != nil {
		return nil, err
	}

	txs := b.Transactions
	if b.Number == 0 {
		txs = nil
	}
	body := &canonical.Body{
		Transactions: make([]*canonical.Transaction, 0, len(txs)),
		Uncles:       make([]*canonical.Header, 0, len(b.Uncles)),
	}
	for i, tx := range txs {
		if tx == nil {
			return nil, fmt.Errorf("%w: transaction %d", ErrMissingField, i)
		}
		mapped, err := m.Transaction(tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		body.Transactions = append(body.Transactions, mapped)
	}
	for i, u := range b.Uncles {
		if u == nil {
			return nil, fmt.Errorf("%w: uncle %d", ErrMissingField, i)
		}
		uncle, err := m.Header(u)
		if err != nil {
			return nil, fmt.Errorf("uncle %d: %w", i, err)
		}
		body.Uncles = append(body.Uncles, uncle)
	}
	receipts, err := m.Receipts(b.Number, txs)
	if err != nil {
		return nil, err
	}

	block := canonical.Block{
		Header:          header,
		Body:            body,
		Receipts:        receipts,
		TotalDifficulty: td,
	}
	return &block, nil
}

// Header maps a block or uncle header.
func (m *Mapper) Header(h *wire.BlockHeader) (*canonical.Header, error) {
	if h.Difficulty == nil {
		return nil, ErrMissingDifficulty
	}
	if h.Timestamp == nil {
		return nil, ErrMissingTimestamp
	}

	var f fields
	header := canonical.Header{
		ParentHash:  f.hash("parent hash", h.ParentHash),
		OmmersHash:  f.hash("uncle hash", h.UncleHash),
		Beneficiary: f.address("coinbase", h.Coinbase),
		StateRoot:   f.hash("state root", h.StateRoot),
		TxRoot:      f.hash("transactions root", h.TransactionsRoot),
		ReceiptRoot: f.hash("receipt root", h.ReceiptRoot),
		Bloom:       f.bloom("logs bloom", h.LogsBloom),
		Difficulty:  common.CopyBytes(h.Difficulty.Bytes),
		Number:      h.Number,
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Time:        *h.Timestamp,
		Extra:       common.CopyBytes(h.ExtraData),
		MixHash:     f.hash("mix hash", h.MixHash),
		Nonce:       types.EncodeNonce(h.Nonce),
	}
	if len(h.WithdrawalsRoot) > 0 {
		root := f.hash("withdrawals root", h.WithdrawalsRoot)
		header.WithdrawalsRoot = &root
	}
	if h.BaseFeePerGas != nil && len(h.BaseFeePerGas.Bytes) > 0 {
		header.BaseFee = f.scalar("base fee", h.BaseFeePerGas.Bytes)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &header, nil
}

// TotalDifficulty maps the cumulative difficulty up to and including a
// block. It must fit in 256 bits.
func (m *Mapper) TotalDifficulty(td *wire.BigInt) (*uint256.Int, error) {
	if td == nil {
		return nil, ErrMissingTotalDifficulty
	}
	b := common.TrimLeftZeroes(td.Bytes)
	if len(b) > 32 {
		return nil, fmt.Errorf("%w: total difficulty has %d bytes, want at most 32", ErrMalformedField, len(b))
	}
	return new(uint256.Int).SetBytes(b), nil
}

// Transaction maps a signed transaction into the variant matching its type.
func (m *Mapper) Transaction(tx *wire.Transaction) (*canonical.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: transaction", ErrMissingField)
	}
	odd, protected, err := m.Parity(tx.V)
	if err != nil {
		return nil, err
	}

	var f fields
	out := canonical.Transaction{
		Signature: canonical.Signature{
			OddParity: odd,
			R:         f.scalar("r", tx.R),
			S:         f.scalar("s", tx.S),
		},
	}
	if len(tx.Hash) > 0 {
		out.Hash = f.hash("hash", tx.Hash)
	}

	switch tx.Type {
	case wire.TxTypeLegacy:
		legacy := canonical.LegacyTx{
			Nonce:    tx.Nonce,
			GasPrice: f.amount("gas price", tx.GasPrice),
			Gas:      tx.GasLimit,
			To:       f.to(tx.To),
			Value:    f.amount("value", tx.Value),
			Data:     common.CopyBytes(tx.Input),
		}
		if protected {
			legacy.ChainID = m.cfg.ChainID
		}
		out.Inner = &legacy
	case wire.TxTypeAccessList:
		out.Inner = &canonical.AccessListTx{
			ChainID:    m.cfg.ChainID,
			Nonce:      tx.Nonce,
			GasPrice:   f.amount("gas price", tx.GasPrice),
			Gas:        tx.GasLimit,
			To:         f.to(tx.To),
			Value:      f.amount("value", tx.Value),
			Data:       common.CopyBytes(tx.Input),
			AccessList: f.accessList(tx.AccessList),
		}
	case wire.TxTypeDynamicFee:
		out.Inner = &canonical.DynamicFeeTx{
			ChainID:    m.cfg.ChainID,
			Nonce:      tx.Nonce,
			GasTipCap:  f.amount("max priority fee", tx.MaxPriorityFeePerGas),
			GasFeeCap:  f.amount("max fee", tx.MaxFeePerGas),
			Gas:        tx.GasLimit,
			To:         f.to(tx.To),
			Value:      f.amount("value", tx.Value),
			Data:       common.CopyBytes(tx.Input),
			AccessList: f.accessList(tx.AccessList),
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTxType, tx.Type)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &out, nil
}

func (f *fields) accessList(tuples []*wire.AccessTuple) canonical.AccessList {
	al := make(canonical.AccessList, 0, len(tuples))
	for i, t := range tuples {
		if t == nil {
			f.fail(fmt.Errorf("%w: access tuple %d", ErrMissingField, i))
			return al
		}
		tuple := canonical.AccessTuple{
			Address:     f.address("access list address", t.Address),
			StorageKeys: make([]common.Hash, 0, len(t.StorageKeys)),
		}
		for _, key := range t.StorageKeys {
			tuple.StorageKeys = append(tuple.StorageKeys, f.hash("storage key", key))
		}
		al = append(al, tuple)
	}
	return al
}

// Parity recovers the signature y-parity from a raw v value. Accepted
// values are 0 and 1 (typed transactions), 27 and 28 (unprotected legacy)
// and 35+2*chainID plus parity (EIP-155). Protected reports whether the
// signature commits to a chain id.
func (m *Mapper) Parity(v []byte) (odd bool, protected bool, err error) {
	b := common.TrimLeftZeroes(v)
	if len(b) > 8 {
		return false, false, fmt.Errorf("%w: v has %d bytes", ErrInvalidParity, len(b))
	}
	n, err := canonical.DecodeUint(b)
	if err != nil {
		return false, false, fmt.Errorf("%w: %v", ErrInvalidParity, err)
	}

	base := 35 + 2*m.cfg.ChainID
	switch {
	case n == 0 || n == 1:
		return n == 1, true, nil
	case n == 27 || n == 28:
		return n == 28, false, nil
	case n == base || n == base+1:
		return n == base+1, true, nil
	default:
		return false, false, fmt.Errorf("%w: v=%d", ErrInvalidParity, n)
	}
}

// Receipts maps the receipts of a block's transactions. Blocks before the
// fork block keep their receipts exactly as received.
func (m *Mapper) Receipts(number uint64, txs []*wire.Transaction) (canonical.ReceiptList, error) {
	if number < m.cfg.ForkBlock {
		receipts := make(canonical.LegacyReceipts, 0, len(txs))
		for i, tx := range txs {
			if tx == nil || tx.Receipt == nil {
				return nil, fmt.Errorf("receipt %d: %w", i, ErrMissingReceipt)
			}
			r, err := legacyReceipt(tx.Receipt)
			if err != nil {
				return nil, fmt.Errorf("receipt %d: %w", i, err)
			}
			receipts = append(receipts, r)
		}
		return receipts, nil
	}

	receipts := make(canonical.Receipts, 0, len(txs))
	for i, tx := range txs {
		r, err := m.Receipt(tx)
		if err != nil {
			return nil, fmt.Errorf("receipt %d: %w", i, err)
		}
		receipts = append(receipts, r)
	}
	return receipts, nil
}

// Receipt maps the post-Byzantium receipt of a transaction.
func (m *Mapper) Receipt(tx *wire.Transaction) (*canonical.Receipt, error) {
	if tx == nil || tx.Receipt == nil {
		return nil, ErrMissingReceipt
	}
	var typ canonical.TxType
	switch tx.Type {
	case wire.TxTypeLegacy:
		typ = canonical.LegacyTxType
	case wire.TxTypeAccessList:
		typ = canonical.AccessListTxType
	case wire.TxTypeDynamicFee:
		typ = canonical.DynamicFeeTxType
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTxType, tx.Type)
	}
	if len(tx.Receipt.LogsBloom) != types.BloomByteLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidBloom, len(tx.Receipt.LogsBloom))
	}

	var f fields
	r := canonical.Receipt{
		Type:              typ,
		Success:           tx.Status == wire.StatusSucceeded,
		CumulativeGasUsed: tx.Receipt.CumulativeGasUsed,
		Bloom:             types.BytesToBloom(tx.Receipt.LogsBloom),
		Logs:              make([]*canonical.Log, 0, len(tx.Receipt.Logs)),
	}
	for i, l := range tx.Receipt.Logs {
		if l == nil {
			return nil, fmt.Errorf("%w: log %d", ErrMissingField, i)
		}
		log := canonical.Log{
			Address: f.address("log address", l.Address),
			Topics:  make([]common.Hash, 0, len(l.Topics)),
			Data:    common.CopyBytes(l.Data),
		}
		for _, topic := range l.Topics {
			log.Topics = append(log.Topics, f.hash("log topic", topic))
		}
		r.Logs = append(r.Logs, &log)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &r, nil
}

func legacyReceipt(r *wire.Receipt) (*canonical.LegacyReceipt, error) {
	out := canonical.LegacyReceipt{
		StateRoot:         r.StateRoot,
		CumulativeGasUsed: r.CumulativeGasUsed,
		Bloom:             r.LogsBloom,
		Logs:              make([]*canonical.LegacyLog, 0, len(r.Logs)),
	}
	for i, l := range r.Logs {
		if l == nil {
			return nil, fmt.Errorf("%w: log %d", ErrMissingField, i)
		}
		topics := make([][]byte, 0, len(l.Topics))
		for _, topic := range l.Topics {
			topics = append(topics, topic)
		}
		out.Logs = append(out.Logs, &canonical.LegacyLog{Address: l.Address, Topics: topics, Data: l.Data})
	}
	return &out, nil
}
