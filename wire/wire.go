// Package wire holds the generic representation of a decoded block as it is
// streamed by a block source. Fields are kept as loose as the upstream data:
// byte slices of unchecked length, optional numbers as pointers. Turning them
// into precisely typed objects is the job of the mapper package.
package wire

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Transaction types as carried on the wire.
const (
	TxTypeLegacy     = 0
	TxTypeAccessList = 1
	TxTypeDynamicFee = 2
)

// Transaction execution status. Only StatusSucceeded marks a successful
// transaction; every other value is a failure.
const (
	StatusUnknown   = 0
	StatusSucceeded = 1
	StatusFailed    = 2
	StatusReverted  = 3
)

// BigInt is an arbitrary precision unsigned integer in big-endian bytes.
type BigInt struct {
	Bytes hexutil.Bytes `json:"bytes"`
}

// NewBigInt wraps the given big-endian bytes.
func NewBigInt(b []byte) *BigInt {
	return &BigInt{Bytes: b}
}

// Block is a single decoded block along with the receipts of its
// transactions.
type Block struct {
	Number       uint64         `json:"number"`
	Hash         hexutil.Bytes  `json:"hash"`
	Header       *BlockHeader   `json:"header"`
	Transactions []*Transaction `json:"transactions"`
	Uncles       []*BlockHeader `json:"uncles"`
}

type BlockHeader struct {
	ParentHash       hexutil.Bytes `json:"parentHash"`
	UncleHash        hexutil.Bytes `json:"sha3Uncles"`
	Coinbase         hexutil.Bytes `json:"miner"`
	StateRoot        hexutil.Bytes `json:"stateRoot"`
	TransactionsRoot hexutil.Bytes `json:"transactionsRoot"`
	ReceiptRoot      hexutil.Bytes `json:"receiptsRoot"`
	LogsBloom        hexutil.Bytes `json:"logsBloom"`
	Difficulty       *BigInt       `json:"difficulty"`
	TotalDifficulty  *BigInt       `json:"totalDifficulty"`
	Number           uint64        `json:"number"`
	GasLimit         uint64        `json:"gasLimit"`
	GasUsed          uint64        `json:"gasUsed"`
	Timestamp        *uint64       `json:"timestamp"`
	ExtraData        hexutil.Bytes `json:"extraData"`
	MixHash          hexutil.Bytes `json:"mixHash"`
	Nonce            uint64        `json:"nonce"`
	Hash             hexutil.Bytes `json:"hash"`
	WithdrawalsRoot  hexutil.Bytes `json:"withdrawalsRoot"`
	BaseFeePerGas    *BigInt       `json:"baseFeePerGas"`
}

type Transaction struct {
	Type                 int32          `json:"type"`
	Hash                 hexutil.Bytes  `json:"hash"`
	Nonce                uint64         `json:"nonce"`
	GasPrice             *BigInt        `json:"gasPrice"`
	GasLimit             uint64         `json:"gas"`
	To                   hexutil.Bytes  `json:"to"`
	Value                *BigInt        `json:"value"`
	Input                hexutil.Bytes  `json:"input"`
	V                    hexutil.Bytes  `json:"v"`
	R                    hexutil.Bytes  `json:"r"`
	S                    hexutil.Bytes  `json:"s"`
	MaxFeePerGas         *BigInt        `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *BigInt        `json:"maxPriorityFeePerGas"`
	AccessList           []*AccessTuple `json:"accessList"`
	Status               int32          `json:"status"`
	Receipt              *Receipt       `json:"receipt"`
}

type AccessTuple struct {
	Address     hexutil.Bytes   `json:"address"`
	StorageKeys []hexutil.Bytes `json:"storageKeys"`
}

type Receipt struct {
	StateRoot         hexutil.Bytes `json:"root"`
	CumulativeGasUsed uint64        `json:"cumulativeGasUsed"`
	LogsBloom         hexutil.Bytes `json:"logsBloom"`
	Logs              []*Log        `json:"logs"`
}

type Log struct {
	Address hexutil.Bytes   `json:"address"`
	Topics  []hexutil.Bytes `json:"topics"`
	Data    hexutil.Bytes   `json:"data"`
}
