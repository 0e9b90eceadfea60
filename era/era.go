package era

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/hashicorp/go-multierror"

	"github.com/henridf/era1/canonical"
	"github.com/henridf/era1/compress"
	"github.com/henridf/era1/e2store"
)

var ErrOutOfRange = errors.New("block number out of range")

// tupleSize is the number of records stored per block.
const tupleSize = 4

type ReadAtSeekCloser interface {
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Era is a read-only view of an archive.
type Era struct {
	f  ReadAtSeekCloser
	s  *e2store.Reader
	mu sync.Mutex

	start    uint64
	count    uint64
	offsets  []int64 // absolute position of each block's header record
	indstart int64   // position of the block index record
}

// Open opens the archive at path.
func Open(path string) (*Era, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	e, err := From(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}

// From reads the block index of an archive held by f.
func From(f ReadAtSeekCloser) (*Era, error) {
	e := &Era{f: f, s: e2store.NewReader(f)}
	if err := e.loadIndex(); err != nil {
		return nil, err
	}
	return e, nil
}

// Close closes the underlying file.
func (e *Era) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}

// Start returns the number of the first block in the archive.
func (e *Era) Start() uint64 {
	return e.start
}

// Count returns the number of blocks in the archive.
func (e *Era) Count() uint64 {
	return e.count
}

func (e *Era) loadIndex() error {
	length, err := e.f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if length < e2store.HeaderSize+16 {
		return fmt.Errorf("%w: file too short for block index", e2store.ErrTruncated)
	}

	var b [8]byte
	if _, err := e.f.ReadAt(b[:], length-8); err != nil {
		return err
	}
	e.count = binary.LittleEndian.Uint64(b[:])
	payload := 16 + 8*e.count
	if e.count > uint64(length) || int64(payload)+e2store.HeaderSize > length {
		return fmt.Errorf("%w: index of %d blocks does not fit in %d bytes", e2store.ErrTruncated, e.count, length)
	}
	e.indstart = length - int64(payload) - e2store.HeaderSize

	typ, n, err := e.s.ReadMetadataAt(e.indstart)
	if err != nil {
		return err
	}
	if typ != e2store.TypeBlockIndex || uint64(n) != payload {
		return fmt.Errorf("no block index at %d: found %s of %d bytes", e.indstart, typ, n)
	}

	raw := make([]byte, payload)
	if _, err := e.f.ReadAt(raw, e.indstart+e2store.HeaderSize); err != nil {
		return err
	}
	e.start = binary.LittleEndian.Uint64(raw[0:8])
	e.offsets = make([]int64, e.count)
	for i := range e.offsets {
		slot := e.indstart + indexSlotBase + int64(i)*8
		rel := int64(binary.LittleEndian.Uint64(raw[8+i*8:]))
		abs := slot + rel
		if abs < 0 || abs >= e.indstart {
			return fmt.Errorf("offset of block %d points outside the archive: %d", e.start+uint64(i), abs)
		}
		e.offsets[i] = abs
	}
	return nil
}

// HeaderOffset returns the absolute position of the header record of the
// given block.
func (e *Era) HeaderOffset(number uint64) (int64, error) {
	if number < e.start || number >= e.start+e.count {
		return 0, fmt.Errorf("%w: %d not in [%d, %d)", ErrOutOfRange, number, e.start, e.start+e.count)
	}
	return e.offsets[number-e.start], nil
}

// record returns the idx-th record of a block's tuple.
func (e *Era) record(number uint64, idx int, want e2store.Type) ([]byte, error) {
	off, err := e.HeaderOffset(number)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil, os.ErrClosed
	}
	for i := 0; i < idx; i++ {
		_, n, err := e.s.ReadMetadataAt(off)
		if err != nil {
			return nil, err
		}
		off += e2store.HeaderSize + int64(n)
	}
	entry, _, err := e.s.ReadAt(off)
	if err != nil {
		return nil, err
	}
	if entry.Type != want {
		return nil, fmt.Errorf("block %d: expected %s record at %d, found %s", number, want, off, entry.Type)
	}
	return entry.Value, nil
}

// RawHeader returns the decompressed header encoding of a block.
func (e *Era) RawHeader(number uint64) ([]byte, error) {
	return e.decompressed(number, 0, e2store.TypeCompressedHeader)
}

// RawBody returns the decompressed body encoding of a block.
func (e *Era) RawBody(number uint64) ([]byte, error) {
	return e.decompressed(number, 1, e2store.TypeCompressedBody)
}

// RawReceipts returns the decompressed receipts encoding of a block.
func (e *Era) RawReceipts(number uint64) ([]byte, error) {
	return e.decompressed(number, 2, e2store.TypeCompressedReceipts)
}

func (e *Era) decompressed(number uint64, idx int, typ e2store.Type) ([]byte, error) {
	v, err := e.record(number, idx, typ)
	if err != nil {
		return nil, err
	}
	return compress.Decompress(v)
}

// Header returns the decoded header of a block.
func (e *Era) Header(number uint64) (*types.Header, error) {
	raw, err := e.RawHeader(number)
	if err != nil {
		return nil, err
	}
	var h types.Header
	if err := rlp.DecodeBytes(raw, &h); err != nil {
		return nil, fmt.Errorf("could not decode header of block %d: %w", number, err)
	}
	return &h, nil
}

// Body returns the decoded body of a block.
func (e *Era) Body(number uint64) (*types.Body, error) {
	raw, err := e.RawBody(number)
	if err != nil {
		return nil, err
	}
	var b types.Body
	if err := rlp.DecodeBytes(raw, &b); err != nil {
		return nil, fmt.Errorf("could not decode body of block %d: %w", number, err)
	}
	return &b, nil
}

// TotalDifficulty returns the total difficulty stored for a block.
func (e *Era) TotalDifficulty(number uint64) (*big.Int, error) {
	v, err := e.record(number, 3, e2store.TypeTotalDifficulty)
	if err != nil {
		return nil, err
	}
	td, err := canonical.DecodeTotalDifficulty(v)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", number, err)
	}
	return td.ToBig(), nil
}

// Accumulator returns the accumulator stored after the last block.
func (e *Era) Accumulator() ([]byte, error) {
	if e.count == 0 {
		return nil, ErrEmpty
	}
	off := e.offsets[e.count-1]
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.f == nil {
		return nil, os.ErrClosed
	}
	for i := 0; i < tupleSize; i++ {
		_, n, err := e.s.ReadMetadataAt(off)
		if err != nil {
			return nil, err
		}
		off += e2store.HeaderSize + int64(n)
	}
	entry, _, err := e.s.ReadAt(off)
	if err != nil {
		return nil, err
	}
	if entry.Type != e2store.TypeAccumulator {
		return nil, fmt.Errorf("expected accumulator at %d, found %s", off, entry.Type)
	}
	return entry.Value, nil
}

// Verify walks the whole archive and reports every inconsistency it finds:
// a missing version record, records out of order, undecodable payloads and
// headers whose number does not match their position.
func (e *Era) Verify() error {
	var result *multierror.Error

	if typ, _, err := e.s.ReadMetadataAt(0); err != nil {
		result = multierror.Append(result, err)
	} else if typ != e2store.TypeVersion {
		result = multierror.Append(result, fmt.Errorf("archive starts with %s, not version", typ))
	}

	for i := uint64(0); i < e.count; i++ {
		number := e.start + i
		h, err := e.Header(number)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if h.Number.Uint64() != number {
			result = multierror.Append(result, fmt.Errorf("header at index %d has number %d, want %d", i, h.Number.Uint64(), number))
		}
		if _, err := e.Body(number); err != nil {
			result = multierror.Append(result, err)
		}
		if _, err := e.RawReceipts(number); err != nil {
			result = multierror.Append(result, err)
		}
		if _, err := e.TotalDifficulty(number); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if _, err := e.Accumulator(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
