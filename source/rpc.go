package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"github.com/henridf/era1/wire"
)

var ErrBlockNotFound = errors.New("block not found")

// Caller issues JSON-RPC requests. It is implemented by *rpc.Client.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// RPCConfig contains optional parameters for the RPC source.
type RPCConfig struct {
	Retries  uint64
	Interval time.Duration
	Headers  map[string]string
}

// DefaultRPCConfig is used when no options are given.
var DefaultRPCConfig = RPCConfig{
	Retries:  5,
	Interval: time.Second,
}

// WithRetries sets how many times a failed request is retried.
func WithRetries(n uint64) func(*RPCConfig) {
	return func(cfg *RPCConfig) {
		cfg.Retries = n
	}
}

// WithRetryInterval sets the initial delay between retries.
func WithRetryInterval(d time.Duration) func(*RPCConfig) {
	return func(cfg *RPCConfig) {
		cfg.Interval = d
	}
}

// WithHeader adds an HTTP header to every request.
func WithHeader(key, value string) func(*RPCConfig) {
	return func(cfg *RPCConfig) {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[key] = value
	}
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) func(*RPCConfig) {
	return WithHeader("Authorization", "Bearer "+token)
}

// RPC fetches blocks and receipts from an Ethereum JSON-RPC endpoint.
type RPC struct {
	log    zerolog.Logger
	caller Caller
	cfg    RPCConfig

	// Running total difficulty, for nodes that no longer serve it.
	td     *big.Int
	tdNext uint64
	// Hash of the last block sent, to detect reorganizations.
	last     []byte
	lastNext uint64
}

// DialRPC connects to the endpoint at url.
func DialRPC(ctx context.Context, log zerolog.Logger, url string, options ...func(*RPCConfig)) (*RPC, error) {
	cfg := DefaultRPCConfig
	for _, option := range options {
		option(&cfg)
	}
	var opts []rpc.ClientOption
	for key, value := range cfg.Headers {
		opts = append(opts, rpc.WithHeader(key, value))
	}
	client, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", url, err)
	}
	return NewRPC(log, client, options...), nil
}

// NewRPC creates a source issuing requests through caller.
func NewRPC(log zerolog.Logger, caller Caller, options ...func(*RPCConfig)) *RPC {
	cfg := DefaultRPCConfig
	for _, option := range options {
		option(&cfg)
	}
	return &RPC{
		log:    log.With().Str("component", "rpc_source").Logger(),
		caller: caller,
		cfg:    cfg,
	}
}

// Stream fetches the blocks in [start, stop) in order and sends them to out.
// A block whose parent is not the block sent before it produces an undo. It
// closes out when it returns.
func (s *RPC) Stream(ctx context.Context, start, stop uint64, out chan<- Response) error {
	defer close(out)

	for number := start; number < stop; number++ {
		block, err := s.Block(ctx, number)
		if err != nil {
			return err
		}

		resp := Response{Block: block}
		if s.last != nil && s.lastNext == number && !bytes.Equal(s.last, block.Header.ParentHash) {
			s.log.Warn().Uint64("block", number).Msg("parent hash mismatch, chain reorganized")
			var valid uint64
			if number >= 2 {
				valid = number - 2
			}
			resp = Response{Undo: &Undo{LastValidNumber: valid}}
		}
		s.last = block.Hash
		s.lastNext = number + 1

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- resp:
		}
		if resp.Undo != nil {
			return nil
		}
	}
	return nil
}

// Block fetches a block with its receipts and uncles.
func (s *RPC) Block(ctx context.Context, number uint64) (*wire.Block, error) {
	var raw *rpcBlock
	err := s.call(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true)
	if err != nil {
		return nil, fmt.Errorf("could not get block %d: %w", number, err)
	}

	var receipts []*rpcReceipt
	if len(raw.Transactions) > 0 {
		err = s.call(ctx, &receipts, "eth_getBlockReceipts", hexutil.EncodeUint64(number))
		if err != nil {
			return nil, fmt.Errorf("could not get receipts of block %d: %w", number, err)
		}
		if len(receipts) != len(raw.Transactions) {
			return nil, fmt.Errorf("block %d has %d transactions but %d receipts", number, len(raw.Transactions), len(receipts))
		}
	}

	uncles := make([]*wire.BlockHeader, 0, len(raw.Uncles))
	for i := range raw.Uncles {
		var uncle *rpcHeader
		err = s.call(ctx, &uncle, "eth_getUncleByBlockNumberAndIndex", hexutil.EncodeUint64(number), hexutil.EncodeUint64(uint64(i)))
		if err != nil {
			return nil, fmt.Errorf("could not get uncle %d of block %d: %w", i, number, err)
		}
		uncles = append(uncles, uncle.wire())
	}

	block := raw.wire(receipts)
	block.Uncles = uncles
	s.totalDifficulty(block)
	return block, nil
}

// totalDifficulty fills in the total difficulty when the node did not
// return it, as long as blocks are fetched in order from genesis or from a
// block that carried it.
func (s *RPC) totalDifficulty(block *wire.Block) {
	h := block.Header
	if h.TotalDifficulty != nil {
		s.td = new(big.Int).SetBytes(h.TotalDifficulty.Bytes)
		s.tdNext = block.Number + 1
		return
	}
	var difficulty *big.Int
	if h.Difficulty != nil {
		difficulty = new(big.Int).SetBytes(h.Difficulty.Bytes)
	}
	switch {
	case difficulty == nil:
		return
	case block.Number == 0:
		s.td = difficulty
	case s.td != nil && s.tdNext == block.Number:
		s.td = new(big.Int).Add(s.td, difficulty)
	default:
		return
	}
	s.tdNext = block.Number + 1
	h.TotalDifficulty = wire.NewBigInt(s.td.Bytes())
}

func (s *RPC) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	attempt := 0
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.Interval
	_, err := backoff.RetryWithData(func() (struct{}, error) {
		attempt++
		err := s.caller.CallContext(ctx, result, method, args...)
		if err != nil {
			s.log.Debug().Err(err).Str("method", method).Int("attempt", attempt).Msg("request failed")
			return struct{}{}, err
		}
		if isNull(result) {
			return struct{}{}, backoff.Permanent(ErrBlockNotFound)
		}
		return struct{}{}, nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, s.cfg.Retries), ctx))
	return err
}

func isNull(result interface{}) bool {
	switch r := result.(type) {
	case **rpcBlock:
		return *r == nil
	case **rpcHeader:
		return *r == nil
	case *[]*rpcReceipt:
		return *r == nil
	}
	return false
}

type rpcHeader struct {
	Hash             hexutil.Bytes   `json:"hash"`
	ParentHash       hexutil.Bytes   `json:"parentHash"`
	UncleHash        hexutil.Bytes   `json:"sha3Uncles"`
	Miner            hexutil.Bytes   `json:"miner"`
	StateRoot        hexutil.Bytes   `json:"stateRoot"`
	TransactionsRoot hexutil.Bytes   `json:"transactionsRoot"`
	ReceiptsRoot     hexutil.Bytes   `json:"receiptsRoot"`
	LogsBloom        hexutil.Bytes   `json:"logsBloom"`
	Difficulty       *hexutil.Big    `json:"difficulty"`
	TotalDifficulty  *hexutil.Big    `json:"totalDifficulty"`
	Number           hexutil.Uint64  `json:"number"`
	GasLimit         hexutil.Uint64  `json:"gasLimit"`
	GasUsed          hexutil.Uint64  `json:"gasUsed"`
	Timestamp        *hexutil.Uint64 `json:"timestamp"`
	ExtraData        hexutil.Bytes   `json:"extraData"`
	MixHash          hexutil.Bytes   `json:"mixHash"`
	Nonce            hexutil.Bytes   `json:"nonce"`
	WithdrawalsRoot  hexutil.Bytes   `json:"withdrawalsRoot"`
	BaseFeePerGas    *hexutil.Big    `json:"baseFeePerGas"`
}

type rpcBlock struct {
	rpcHeader
	Transactions []*rpcTransaction `json:"transactions"`
	Uncles       []common.Hash     `json:"uncles"`
}

type rpcAccessTuple struct {
	Address     hexutil.Bytes   `json:"address"`
	StorageKeys []hexutil.Bytes `json:"storageKeys"`
}

type rpcTransaction struct {
	Type                 hexutil.Uint64   `json:"type"`
	Hash                 hexutil.Bytes    `json:"hash"`
	Nonce                hexutil.Uint64   `json:"nonce"`
	GasPrice             *hexutil.Big     `json:"gasPrice"`
	Gas                  hexutil.Uint64   `json:"gas"`
	To                   hexutil.Bytes    `json:"to"`
	Value                *hexutil.Big     `json:"value"`
	Input                hexutil.Bytes    `json:"input"`
	V                    *hexutil.Big     `json:"v"`
	R                    *hexutil.Big     `json:"r"`
	S                    *hexutil.Big     `json:"s"`
	MaxFeePerGas         *hexutil.Big     `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big     `json:"maxPriorityFeePerGas"`
	AccessList           []rpcAccessTuple `json:"accessList"`
}

type rpcLog struct {
	Address hexutil.Bytes   `json:"address"`
	Topics  []hexutil.Bytes `json:"topics"`
	Data    hexutil.Bytes   `json:"data"`
}

type rpcReceipt struct {
	TransactionHash   hexutil.Bytes   `json:"transactionHash"`
	Root              hexutil.Bytes   `json:"root"`
	Status            *hexutil.Uint64 `json:"status"`
	CumulativeGasUsed hexutil.Uint64  `json:"cumulativeGasUsed"`
	LogsBloom         hexutil.Bytes   `json:"logsBloom"`
	Logs              []*rpcLog       `json:"logs"`
}

func bigInt(b *hexutil.Big) *wire.BigInt {
	if b == nil {
		return nil
	}
	return wire.NewBigInt(b.ToInt().Bytes())
}

func bigBytes(b *hexutil.Big) []byte {
	if b == nil {
		return nil
	}
	return b.ToInt().Bytes()
}

func (h *rpcHeader) wire() *wire.BlockHeader {
	out := wire.BlockHeader{
		ParentHash:       h.ParentHash,
		UncleHash:        h.UncleHash,
		Coinbase:         h.Miner,
		StateRoot:        h.StateRoot,
		TransactionsRoot: h.TransactionsRoot,
		ReceiptRoot:      h.ReceiptsRoot,
		LogsBloom:        h.LogsBloom,
		Difficulty:       bigInt(h.Difficulty),
		TotalDifficulty:  bigInt(h.TotalDifficulty),
		Number:           uint64(h.Number),
		GasLimit:         uint64(h.GasLimit),
		GasUsed:          uint64(h.GasUsed),
		ExtraData:        h.ExtraData,
		MixHash:          h.MixHash,
		Nonce:            new(big.Int).SetBytes(h.Nonce).Uint64(),
		Hash:             h.Hash,
		WithdrawalsRoot:  h.WithdrawalsRoot,
		BaseFeePerGas:    bigInt(h.BaseFeePerGas),
	}
	if h.Timestamp != nil {
		ts := uint64(*h.Timestamp)
		out.Timestamp = &ts
	}
	return &out
}

func (b *rpcBlock) wire(receipts []*rpcReceipt) *wire.Block {
	block := wire.Block{
		Number:       uint64(b.Number),
		Hash:         b.Hash,
		Header:       b.rpcHeader.wire(),
		Transactions: make([]*wire.Transaction, 0, len(b.Transactions)),
	}
	for i, tx := range b.Transactions {
		// Null entries are passed on for the mapper to reject.
		if tx == nil {
			block.Transactions = append(block.Transactions, nil)
			continue
		}
		out := wire.Transaction{
			Type:                 int32(tx.Type),
			Hash:                 tx.Hash,
			Nonce:                uint64(tx.Nonce),
			GasPrice:             bigInt(tx.GasPrice),
			GasLimit:             uint64(tx.Gas),
			To:                   tx.To,
			Value:                bigInt(tx.Value),
			Input:                tx.Input,
			V:                    bigBytes(tx.V),
			R:                    bigBytes(tx.R),
			S:                    bigBytes(tx.S),
			MaxFeePerGas:         bigInt(tx.MaxFeePerGas),
			MaxPriorityFeePerGas: bigInt(tx.MaxPriorityFeePerGas),
			AccessList:           make([]*wire.AccessTuple, 0, len(tx.AccessList)),
		}
		for _, tuple := range tx.AccessList {
			out.AccessList = append(out.AccessList, &wire.AccessTuple{Address: tuple.Address, StorageKeys: tuple.StorageKeys})
		}
		if i < len(receipts) && receipts[i] != nil {
			r := receipts[i]
			out.Status = wire.StatusUnknown
			if r.Status != nil {
				out.Status = wire.StatusFailed
				if *r.Status == 1 {
					out.Status = wire.StatusSucceeded
				}
			}
			out.Receipt = &wire.Receipt{
				StateRoot:         r.Root,
				CumulativeGasUsed: uint64(r.CumulativeGasUsed),
				LogsBloom:         r.LogsBloom,
				Logs:              make([]*wire.Log, 0, len(r.Logs)),
			}
			for _, l := range r.Logs {
				if l == nil {
					out.Receipt.Logs = append(out.Receipt.Logs, nil)
					continue
				}
				out.Receipt.Logs = append(out.Receipt.Logs, &wire.Log{Address: l.Address, Topics: l.Topics, Data: l.Data})
			}
		}
		block.Transactions = append(block.Transactions, &out)
	}
	return &block
}
