package mocks

import (
	"bytes"
	"errors"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"github.com/henridf/era1/wire"
)

// Global values that can be used for testing. They are valid inputs for the
// mapper unless stated otherwise.
var (
	NoopLogger = zerolog.New(io.Discard)

	GenericError = errors.New("dummy error")

	GenericAccumulator = bytes.Repeat([]byte{0xac}, 32)

	GenericAddress = hexutil.Bytes(bytes.Repeat([]byte{0x0a}, 20))
	GenericTopic   = hexutil.Bytes(bytes.Repeat([]byte{0x70}, 32))
	GenericBloom   = hexutil.Bytes(bytes.Repeat([]byte{0x00}, 256))
	GenericR       = hexutil.Bytes(bytes.Repeat([]byte{0x11}, 32))
	GenericS       = hexutil.Bytes(bytes.Repeat([]byte{0x22}, 32))
)

// GenericHash returns a 32-byte hash filled with b.
func GenericHash(b byte) hexutil.Bytes {
	return bytes.Repeat([]byte{b}, 32)
}

// GenericHeader returns a well-formed header for the given block number.
func GenericHeader(number uint64) *wire.BlockHeader {
	ts := uint64(1438269988 + number*15)
	return &wire.BlockHeader{
		ParentHash:       GenericHash(byte(number - 1)),
		UncleHash:        GenericHash(0x1d),
		Coinbase:         GenericAddress,
		StateRoot:        GenericHash(0x5e),
		TransactionsRoot: GenericHash(0x7e),
		ReceiptRoot:      GenericHash(0x8e),
		LogsBloom:        GenericBloom,
		Difficulty:       wire.NewBigInt([]byte{0x04, 0x00, 0x00, 0x00, 0x00}),
		TotalDifficulty:  wire.NewBigInt([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00}),
		Number:           number,
		GasLimit:         5000,
		GasUsed:          21000,
		Timestamp:        &ts,
		ExtraData:        []byte("extra"),
		MixHash:          GenericHash(0x3e),
		Nonce:            0x42,
		Hash:             GenericHash(byte(number)),
	}
}

// GenericBlock returns a well-formed block with the given transactions.
func GenericBlock(number uint64, txs ...*wire.Transaction) *wire.Block {
	return &wire.Block{
		Number:       number,
		Hash:         GenericHash(byte(number)),
		Header:       GenericHeader(number),
		Transactions: txs,
	}
}

// GenericReceipt returns a well-formed receipt with a single log.
func GenericReceipt(cumulativeGas uint64) *wire.Receipt {
	return &wire.Receipt{
		StateRoot:         GenericHash(0x5e),
		CumulativeGasUsed: cumulativeGas,
		LogsBloom:         GenericBloom,
		Logs: []*wire.Log{{
			Address: GenericAddress,
			Topics:  []hexutil.Bytes{GenericTopic},
			Data:    []byte{0x01},
		}},
	}
}

// GenericLegacyTx returns a successful legacy transaction signed with the
// given v value.
func GenericLegacyTx(v byte) *wire.Transaction {
	return &wire.Transaction{
		Type:     wire.TxTypeLegacy,
		Hash:     GenericHash(0xaa),
		Nonce:    1,
		GasPrice: wire.NewBigInt([]byte{0x04, 0xa8, 0x17, 0xc8, 0x00}),
		GasLimit: 21000,
		To:       GenericAddress,
		Value:    wire.NewBigInt([]byte{0x01}),
		V:        []byte{v},
		R:        GenericR,
		S:        GenericS,
		Status:   wire.StatusSucceeded,
		Receipt:  GenericReceipt(21000),
	}
}

// GenericDynamicFeeTx returns a successful EIP-1559 transaction.
func GenericDynamicFeeTx() *wire.Transaction {
	return &wire.Transaction{
		Type:                 wire.TxTypeDynamicFee,
		Hash:                 GenericHash(0xbb),
		Nonce:                2,
		GasLimit:             50000,
		To:                   GenericAddress,
		Input:                []byte{0xca, 0xfe},
		V:                    []byte{0x01},
		R:                    GenericR,
		S:                    GenericS,
		MaxFeePerGas:         wire.NewBigInt([]byte{0x64}),
		MaxPriorityFeePerGas: wire.NewBigInt([]byte{0x02}),
		AccessList: []*wire.AccessTuple{{
			Address:     GenericAddress,
			StorageKeys: []hexutil.Bytes{GenericTopic},
		}},
		Status:  wire.StatusSucceeded,
		Receipt: GenericReceipt(71000),
	}
}
