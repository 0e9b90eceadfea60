package era_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henridf/era1/e2store"
	"github.com/henridf/era1/era"
	"github.com/henridf/era1/mapper"
	"github.com/henridf/era1/testing/mocks"
)

func TestReader(t *testing.T) {
	data := build(t,
		mocks.GenericBlock(4_370_000),
		mocks.GenericBlock(4_370_001, mocks.GenericLegacyTx(37), mocks.GenericDynamicFeeTx()),
		mocks.GenericBlock(4_370_002),
	)
	path := filepath.Join(t.TempDir(), "test.era1")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	e, err := era.Open(path)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, uint64(4_370_000), e.Start())
	assert.Equal(t, uint64(3), e.Count())

	acc, err := e.Accumulator()
	require.NoError(t, err)
	assert.Equal(t, mocks.GenericAccumulator, acc)

	off, err := e.HeaderOffset(4_370_000)
	require.NoError(t, err)
	assert.Equal(t, int64(e2store.HeaderSize), off)
	_, err = e.HeaderOffset(4_370_003)
	assert.ErrorIs(t, err, era.ErrOutOfRange)

	h, err := e.Header(4_370_001)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_370_001), h.Number.Uint64())

	body, err := e.Body(4_370_001)
	require.NoError(t, err)
	assert.Len(t, body.Transactions, 2)

	raw, err := e.RawReceipts(4_370_001)
	require.NoError(t, err)
	var receipts []rlp.RawValue
	require.NoError(t, rlp.DecodeBytes(raw, &receipts))
	assert.Len(t, receipts, 2)

	td, err := e.TotalDifficulty(4_370_002)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x010000000000), td.Uint64())

	assert.NoError(t, e.Verify())
}

func TestReaderGenesis(t *testing.T) {
	data := build(t, mocks.GenericBlock(0, mocks.GenericLegacyTx(27)))
	e, err := era.From(readerCloser{bytes.NewReader(data)})
	require.NoError(t, err)

	body, err := e.RawBody(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc2, 0xc0, 0xc0}, body)

	receipts, err := e.RawReceipts(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc0}, receipts)
}

func TestReaderCorrupt(t *testing.T) {
	data := build(t, mocks.GenericBlock(10), mocks.GenericBlock(11))

	_, err := era.From(readerCloser{bytes.NewReader(data[:len(data)-1])})
	assert.Error(t, err)

	_, err = era.From(readerCloser{bytes.NewReader(data[:10])})
	assert.Error(t, err)

	// Damage the second header record's payload.
	e, err := era.From(readerCloser{bytes.NewReader(data)})
	require.NoError(t, err)
	off, err := e.HeaderOffset(11)
	require.NoError(t, err)
	damaged := bytes.Clone(data)
	for i := off + e2store.HeaderSize; i < off+e2store.HeaderSize+4; i++ {
		damaged[i] ^= 0xff
	}
	e, err = era.From(readerCloser{bytes.NewReader(damaged)})
	require.NoError(t, err)
	assert.Error(t, e.Verify())
}

func TestReaderClosed(t *testing.T) {
	data := build(t, mocks.GenericBlock(1))
	e, err := era.From(readerCloser{bytes.NewReader(data)})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	_, err = e.RawHeader(1)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestBuilderWithOtherChain(t *testing.T) {
	var buf bytes.Buffer
	b := era.NewBuilder(&buf, mapper.New(mapper.WithChainID(5)))
	tx := mocks.GenericLegacyTx(46)
	require.NoError(t, b.Add(mocks.GenericBlock(9, tx)))
	require.NoError(t, b.Finalize(mocks.GenericAccumulator))

	e, err := era.From(readerCloser{bytes.NewReader(buf.Bytes())})
	require.NoError(t, err)
	body, err := e.Body(9)
	require.NoError(t, err)
	require.Len(t, body.Transactions, 1)
	assert.Equal(t, int64(5), body.Transactions[0].ChainId().Int64())
}
