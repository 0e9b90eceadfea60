package canonical

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addr  = common.HexToAddress("0x095e7baea6a6c7c4c2dfeb977efac326af552d87")
	key   = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")
	sigR  = mustBig("0x98ff921201554726367d2be8c804a7ff89ccf285ebc57dff8ae4c44b9c19ac4a")
	sigS  = mustBig("0x08fa6c4a7dc9f7b2a8a1dd1c88c3ca1ef3e84b0e2e6bbcb6f64ec36a9c96dc5b")
	bloom = types.BytesToBloom(bytes.Repeat([]byte{0x01}, types.BloomByteLength))
)

func mustBig(s string) *big.Int {
	b, ok := new(big.Int).SetString(s[2:], 16)
	if !ok {
		panic(s)
	}
	return b
}

func TestUint(t *testing.T) {
	tests := []struct {
		n   uint64
		enc []byte
	}{
		{0, []byte{}},
		{1, []byte{0x01}},
		{0x7f, []byte{0x7f}},
		{0x0100, []byte{0x01, 0x00}},
		{0xffffffffffffffff, bytes.Repeat([]byte{0xff}, 8)},
	}
	for _, tt := range tests {
		enc := EncodeUint(tt.n)
		assert.Equal(t, tt.enc, enc)
		n, err := DecodeUint(enc)
		require.NoError(t, err)
		assert.Equal(t, tt.n, n)
	}

	_, err := DecodeUint([]byte{0x00, 0x01})
	assert.ErrorIs(t, err, ErrNonCanonicalInt)
	_, err = DecodeUint(make([]byte, 9))
	assert.ErrorIs(t, err, ErrIntTooLarge)
}

func testHeader(number uint64) (*Header, *types.Header) {
	difficulty := big.NewInt(17179869184)
	h := &Header{
		ParentHash:  common.HexToHash("0x01"),
		OmmersHash:  types.EmptyUncleHash,
		Beneficiary: addr,
		StateRoot:   common.HexToHash("0x02"),
		TxRoot:      types.EmptyTxsHash,
		ReceiptRoot: types.EmptyReceiptsHash,
		Bloom:       bloom,
		Difficulty:  difficulty.Bytes(),
		Number:      number,
		GasLimit:    5000,
		GasUsed:     21000,
		Time:        1438269988,
		Extra:       []byte("Geth/v1.0.0/linux/go1.4.2"),
		MixHash:     common.HexToHash("0x03"),
		Nonce:       types.EncodeNonce(0xa13a5a8c8f2bb1c4),
	}
	g := &types.Header{
		ParentHash:  h.ParentHash,
		UncleHash:   h.OmmersHash,
		Coinbase:    h.Beneficiary,
		Root:        h.StateRoot,
		TxHash:      h.TxRoot,
		ReceiptHash: h.ReceiptRoot,
		Bloom:       h.Bloom,
		Difficulty:  difficulty,
		Number:      new(big.Int).SetUint64(number),
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Time:        h.Time,
		Extra:       h.Extra,
		MixDigest:   h.MixHash,
		Nonce:       h.Nonce,
	}
	return h, g
}

func TestHeader(t *testing.T) {
	h, g := testHeader(46147)

	got, err := rlp.EncodeToBytes(h)
	require.NoError(t, err)
	want, err := rlp.EncodeToBytes(g)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	var dec types.Header
	require.NoError(t, rlp.DecodeBytes(got, &dec))
	assert.Equal(t, g.Hash(), dec.Hash())
}

func TestHeaderIgnoresLaterFields(t *testing.T) {
	h, _ := testHeader(1)
	before, err := rlp.EncodeToBytes(h)
	require.NoError(t, err)

	root := common.HexToHash("0x04")
	h.WithdrawalsRoot = &root
	h.BaseFee = big.NewInt(7)
	after, err := rlp.EncodeToBytes(h)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLegacyTransaction(t *testing.T) {
	tests := []struct {
		name    string
		chainID uint64
		odd     bool
		v       int64
	}{
		{"unprotected", 0, false, 27},
		{"unprotected odd", 0, true, 28},
		{"eip155", 1, false, 37},
		{"eip155 odd", 1, true, 38},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{
				Inner: &LegacyTx{
					ChainID:  tt.chainID,
					Nonce:    9,
					GasPrice: big.NewInt(20000000000),
					Gas:      21000,
					To:       &addr,
					Value:    big.NewInt(1000000000000000000),
				},
				Signature: Signature{OddParity: tt.odd, R: sigR, S: sigS},
			}
			got, err := tx.MarshalBinary()
			require.NoError(t, err)

			want, err := types.NewTx(&types.LegacyTx{
				Nonce:    9,
				GasPrice: big.NewInt(20000000000),
				Gas:      21000,
				To:       &addr,
				Value:    big.NewInt(1000000000000000000),
				V:        big.NewInt(tt.v),
				R:        sigR,
				S:        sigS,
			}).MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// Legacy transactions are not wrapped inside a list.
			inList, err := rlp.EncodeToBytes(tx)
			require.NoError(t, err)
			assert.Equal(t, got, inList)
		})
	}
}

func TestContractCreation(t *testing.T) {
	tx := &Transaction{
		Inner:     &LegacyTx{Nonce: 1, Gas: 53000, Data: []byte{0x60, 0x60}},
		Signature: Signature{R: sigR, S: sigS},
	}
	got, err := tx.MarshalBinary()
	require.NoError(t, err)

	var dec types.Transaction
	require.NoError(t, dec.UnmarshalBinary(got))
	assert.Nil(t, dec.To())
	assert.Equal(t, uint64(0), dec.Value().Uint64())
	assert.Equal(t, uint64(0), dec.GasPrice().Uint64())
}

func TestTypedTransactions(t *testing.T) {
	al := AccessList{{Address: addr, StorageKeys: []common.Hash{key}}}
	gal := types.AccessList{{Address: addr, StorageKeys: []common.Hash{key}}}

	tests := []struct {
		name string
		tx   *Transaction
		want *types.Transaction
	}{
		{
			name: "access list",
			tx: &Transaction{
				Inner: &AccessListTx{
					ChainID:    1,
					Nonce:      3,
					GasPrice:   big.NewInt(30),
					Gas:        25000,
					To:         &addr,
					Value:      big.NewInt(10),
					Data:       []byte{0xde, 0xad},
					AccessList: al,
				},
				Signature: Signature{OddParity: true, R: sigR, S: sigS},
			},
			want: types.NewTx(&types.AccessListTx{
				ChainID:    big.NewInt(1),
				Nonce:      3,
				GasPrice:   big.NewInt(30),
				Gas:        25000,
				To:         &addr,
				Value:      big.NewInt(10),
				Data:       []byte{0xde, 0xad},
				AccessList: gal,
				V:          big.NewInt(1),
				R:          sigR,
				S:          sigS,
			}),
		},
		{
			name: "dynamic fee",
			tx: &Transaction{
				Inner: &DynamicFeeTx{
					ChainID:    1,
					Nonce:      4,
					GasTipCap:  big.NewInt(2),
					GasFeeCap:  big.NewInt(100),
					Gas:        25000,
					Value:      big.NewInt(0),
					AccessList: al,
				},
				Signature: Signature{R: sigR, S: sigS},
			},
			want: types.NewTx(&types.DynamicFeeTx{
				ChainID:    big.NewInt(1),
				Nonce:      4,
				GasTipCap:  big.NewInt(2),
				GasFeeCap:  big.NewInt(100),
				Gas:        25000,
				Value:      big.NewInt(0),
				AccessList: gal,
				V:          big.NewInt(0),
				R:          sigR,
				S:          sigS,
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tx.MarshalBinary()
			require.NoError(t, err)
			want, err := tt.want.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, byte(tt.tx.Type()), got[0])

			wrapped, err := rlp.EncodeToBytes(tt.tx)
			require.NoError(t, err)
			wantWrapped, err := rlp.EncodeToBytes(tt.want)
			require.NoError(t, err)
			assert.Equal(t, wantWrapped, wrapped)
		})
	}
}

func TestNilPayload(t *testing.T) {
	_, err := (&Transaction{}).MarshalBinary()
	assert.Error(t, err)
	_, err = rlp.EncodeToBytes(&Body{Transactions: []*Transaction{{}}})
	assert.Error(t, err)
}

func TestBody(t *testing.T) {
	uncle, guncle := testHeader(46146)
	tx := &Transaction{
		Inner:     &DynamicFeeTx{ChainID: 1, Nonce: 1, GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(2), Gas: 21000, To: &addr},
		Signature: Signature{R: sigR, S: sigS},
	}
	gtx := types.NewTx(&types.DynamicFeeTx{
		ChainID: big.NewInt(1), Nonce: 1, GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(2), Gas: 21000, To: &addr,
		Value: new(big.Int), V: new(big.Int), R: sigR, S: sigS,
	})

	got, err := rlp.EncodeToBytes(&Body{Transactions: []*Transaction{tx}, Uncles: []*Header{uncle}})
	require.NoError(t, err)
	want, err := rlp.EncodeToBytes(&types.Body{Transactions: []*types.Transaction{gtx}, Uncles: []*types.Header{guncle}})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	empty, err := rlp.EncodeToBytes(&Body{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc2, 0xc0, 0xc0}, empty)
}

func TestReceipts(t *testing.T) {
	log := &Log{Address: addr, Topics: []common.Hash{key}, Data: []byte{0x01}}
	glog := &types.Log{Address: addr, Topics: []common.Hash{key}, Data: []byte{0x01}}

	rs := Receipts{
		{Type: LegacyTxType, Success: true, CumulativeGasUsed: 21000, Bloom: bloom, Logs: []*Log{log}},
		{Type: DynamicFeeTxType, Success: false, CumulativeGasUsed: 42000, Bloom: bloom},
		{Type: AccessListTxType, Success: true, CumulativeGasUsed: 63000},
	}
	grs := types.Receipts{
		{Type: types.LegacyTxType, Status: types.ReceiptStatusSuccessful, CumulativeGasUsed: 21000, Bloom: bloom, Logs: []*types.Log{glog}},
		{Type: types.DynamicFeeTxType, Status: types.ReceiptStatusFailed, CumulativeGasUsed: 42000, Bloom: bloom},
		{Type: types.AccessListTxType, Status: types.ReceiptStatusSuccessful, CumulativeGasUsed: 63000},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeReceipts(&buf, rs))
	want, err := rlp.EncodeToBytes(grs)
	require.NoError(t, err)
	assert.Equal(t, want, buf.Bytes())
}

func TestLegacyReceipts(t *testing.T) {
	root := common.HexToHash("0x05")
	rs := LegacyReceipts{{
		StateRoot:         root[:],
		CumulativeGasUsed: 21000,
		Bloom:             bloom[:],
		Logs:              []*LegacyLog{{Address: addr[:], Topics: [][]byte{key[:]}, Data: []byte{0x02}}},
	}}
	grs := types.Receipts{{
		PostState:         root[:],
		CumulativeGasUsed: 21000,
		Bloom:             bloom,
		Logs:              []*types.Log{{Address: addr, Topics: []common.Hash{key}, Data: []byte{0x02}}},
	}}

	var buf bytes.Buffer
	require.NoError(t, EncodeReceipts(&buf, rs))
	want, err := rlp.EncodeToBytes(grs)
	require.NoError(t, err)
	assert.Equal(t, want, buf.Bytes())
}

func TestEmptyReceipts(t *testing.T) {
	for _, rs := range []ReceiptList{nil, Receipts{}, LegacyReceipts{}} {
		var buf bytes.Buffer
		require.NoError(t, EncodeReceipts(&buf, rs))
		assert.Equal(t, []byte{0xc0}, buf.Bytes())
	}
}

func TestTotalDifficulty(t *testing.T) {
	td := uint256.NewInt(0x0102)
	enc := EncodeTotalDifficulty(td)
	assert.Equal(t, byte(0x02), enc[0])
	assert.Equal(t, byte(0x01), enc[1])
	assert.Equal(t, make([]byte, 30), enc[2:])

	dec, err := DecodeTotalDifficulty(enc[:])
	require.NoError(t, err)
	assert.True(t, td.Eq(dec))

	assert.Equal(t, [32]byte{}, EncodeTotalDifficulty(nil))
	_, err = DecodeTotalDifficulty(enc[:31])
	assert.Error(t, err)
}

func TestBlockEncode(t *testing.T) {
	h, _ := testHeader(0)
	b := &Block{Header: h, Body: &Body{}, TotalDifficulty: uint256.NewInt(17179869184)}
	enc, err := b.Encode()
	require.NoError(t, err)

	want, err := rlp.EncodeToBytes(h)
	require.NoError(t, err)
	assert.Equal(t, want, enc.Header)
	assert.Equal(t, []byte{0xc2, 0xc0, 0xc0}, enc.Body)
	assert.Equal(t, []byte{0xc0}, enc.Receipts)
	assert.Len(t, enc.TotalDifficulty, 32)
}
