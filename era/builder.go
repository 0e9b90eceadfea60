// Package era writes and reads era1 archives: e2store files holding the
// compressed headers, bodies and receipts of consecutive blocks followed by
// an accumulator and a block index.
//
// The layout of an archive is
//
//	Version | block-tuple* | Accumulator | BlockIndex
//	block-tuple := CompressedHeader | CompressedBody | CompressedReceipts | TotalDifficulty
//	BlockIndex  := start u64 | offset[i] i64 * count | count u64
//
// Offsets are relative to the position of the index slot that holds them.
package era

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/henridf/era1/canonical"
	"github.com/henridf/era1/compress"
	"github.com/henridf/era1/e2store"
	"github.com/henridf/era1/wire"
)

// EpochSize is the number of blocks in a complete archive.
const EpochSize = 8192

// indexSlotBase is the distance between the start of the block index record
// and its first offset slot: the record header and the starting number.
const indexSlotBase = e2store.HeaderSize + 8

var (
	ErrEmpty     = errors.New("no blocks added to archive")
	ErrFinalized = errors.New("archive already finalized")
)

// Epoch returns the epoch a block number belongs to.
func Epoch(number uint64) uint64 {
	return number / EpochSize
}

// Mapper turns a wire block into its canonical form.
type Mapper interface {
	Block(*wire.Block) (*canonical.Block, error)
}

// WriteError reports a failure of the underlying sink. The archive being
// built is unusable once one is returned.
type WriteError struct {
	Block  uint64
	Record e2store.Type
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("could not write %s record of block %d: %v", e.Record, e.Block, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

type state uint8

const (
	stateEmpty state = iota
	stateAccumulating
	stateFinalized
)

// Builder accumulates blocks into an era1 archive written to a sink.
type Builder struct {
	w          *e2store.Writer
	mapper     Mapper
	compressor *compress.Compressor

	state   state
	start   uint64
	offsets []uint64
	written uint64
}

// NewBuilder returns a builder writing to w.
func NewBuilder(w io.Writer, mapper Mapper) *Builder {
	return &Builder{
		w:          e2store.NewWriter(w),
		mapper:     mapper,
		compressor: compress.NewCompressor(),
		offsets:    make([]uint64, 0, EpochSize),
	}
}

type record struct {
	typ   e2store.Type
	value []byte
}

// Add maps, encodes and appends a block. When mapping or encoding fails,
// nothing is written and the builder is left as it was.
func (b *Builder) Add(block *wire.Block) error {
	if b.state == stateFinalized {
		return ErrFinalized
	}

	records, err := b.prepare(block)
	if err != nil {
		return fmt.Errorf("block %d: %w", block.Number, err)
	}

	if b.state == stateEmpty {
		if err := b.write(block.Number, e2store.TypeVersion, nil); err != nil {
			return err
		}
		b.start = block.Number
		b.state = stateAccumulating
	}

	b.offsets = append(b.offsets, b.written)
	for _, r := range records {
		if err := b.write(block.Number, r.typ, r.value); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) prepare(block *wire.Block) ([4]record, error) {
	var records [4]record

	cb, err := b.mapper.Block(block)
	if err != nil {
		return records, err
	}
	enc, err := cb.Encode()
	if err != nil {
		return records, err
	}

	plain := [3]record{
		{e2store.TypeCompressedHeader, enc.Header},
		{e2store.TypeCompressedBody, enc.Body},
		{e2store.TypeCompressedReceipts, enc.Receipts},
	}
	for i, r := range plain {
		out, err := b.compressor.Compress(r.value)
		if err != nil {
			return records, fmt.Errorf("could not compress %s: %w", r.typ, err)
		}
		records[i] = record{typ: r.typ, value: append([]byte(nil), out...)}
	}
	records[3] = record{typ: e2store.TypeTotalDifficulty, value: enc.TotalDifficulty}
	return records, nil
}

func (b *Builder) write(number uint64, typ e2store.Type, value []byte) error {
	n, err := b.w.Write(typ, value)
	b.written += uint64(n)
	if err != nil {
		return &WriteError{Block: number, Record: typ, Err: err}
	}
	return nil
}

// Finalize writes the accumulator and the block index. The builder accepts
// no further blocks until it is reset.
func (b *Builder) Finalize(accumulator []byte) error {
	switch b.state {
	case stateEmpty:
		return ErrEmpty
	case stateFinalized:
		return ErrFinalized
	}

	last := b.start + uint64(len(b.offsets)) - 1
	if err := b.write(last, e2store.TypeAccumulator, accumulator); err != nil {
		return err
	}

	count := len(b.offsets)
	index := make([]byte, 8+8*count+8)
	binary.LittleEndian.PutUint64(index, b.start)
	base := int64(b.written) + indexSlotBase
	for i, offset := range b.offsets {
		slot := base + int64(i)*8
		binary.LittleEndian.PutUint64(index[8+i*8:], uint64(int64(offset)-slot))
	}
	binary.LittleEndian.PutUint64(index[8+count*8:], uint64(count))
	if err := b.write(last, e2store.TypeBlockIndex, index); err != nil {
		return err
	}

	b.state = stateFinalized
	return nil
}

// Reset discards all state and directs the builder at a new sink.
func (b *Builder) Reset(w io.Writer) {
	b.w = e2store.NewWriter(w)
	b.state = stateEmpty
	b.start = 0
	b.offsets = b.offsets[:0]
	b.written = 0
}

// Len returns the number of blocks added since the last reset.
func (b *Builder) Len() int {
	return len(b.offsets)
}

// Start returns the number of the first block added, if any.
func (b *Builder) Start() (uint64, bool) {
	return b.start, b.state != stateEmpty
}

// Written returns the number of bytes written to the sink.
func (b *Builder) Written() uint64 {
	return b.written
}
