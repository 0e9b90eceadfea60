// Package e2store implements the tagged record container that era1 archives
// are made of.
//
// Every record is laid out as
//
//	type (2 bytes LE) | length (4 bytes LE) | reserved (2 bytes, zero) | value
//
// with no padding and no checksum. See
// https://github.com/status-im/nimbus-eth2/blob/stable/docs/e2store.md.
package e2store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
)

// HeaderSize is the size of the fixed record header.
const HeaderSize = 8

// maxPrealloc caps the buffer allocated up front for a record value. Larger
// values grow with the bytes actually read.
const maxPrealloc = 1 << 20

var (
	ErrUnknownType     = errors.New("unknown record type")
	ErrTruncated       = errors.New("truncated record")
	ErrReservedNonZero = errors.New("reserved bytes are non-zero")
	ErrTooLarge        = errors.New("record value too large")
)

// Type is the tag of a record.
type Type uint16

const (
	TypeCompressedHeader   Type = 0x03
	TypeCompressedBody     Type = 0x04
	TypeCompressedReceipts Type = 0x05
	TypeTotalDifficulty    Type = 0x06
	TypeAccumulator        Type = 0x07
	TypeVersion            Type = 0x3265
	TypeBlockIndex         Type = 0x3266
)

// Valid reports whether t is one of the known record types.
func (t Type) Valid() bool {
	switch t {
	case TypeCompressedHeader, TypeCompressedBody, TypeCompressedReceipts,
		TypeTotalDifficulty, TypeAccumulator, TypeVersion, TypeBlockIndex:
		return true
	}
	return false
}

// Compressed reports whether values of type t are snappy framed.
func (t Type) Compressed() bool {
	return t == TypeCompressedHeader || t == TypeCompressedBody || t == TypeCompressedReceipts
}

func (t Type) String() string {
	switch t {
	case TypeCompressedHeader:
		return "header"
	case TypeCompressedBody:
		return "body"
	case TypeCompressedReceipts:
		return "receipts"
	case TypeTotalDifficulty:
		return "total difficulty"
	case TypeAccumulator:
		return "accumulator"
	case TypeVersion:
		return "version"
	case TypeBlockIndex:
		return "block index"
	}
	return fmt.Sprintf("unknown(%#06x)", uint16(t))
}

// Entry is a single record.
type Entry struct {
	Type  Type
	Value []byte
}

// Size returns the number of bytes the entry occupies once encoded.
func (e *Entry) Size() int {
	return HeaderSize + len(e.Value)
}

// MarshalBinary returns the encoded entry.
func (e *Entry) MarshalBinary() ([]byte, error) {
	if len(e.Value) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(e.Value))
	}
	b := make([]byte, HeaderSize+len(e.Value))
	binary.LittleEndian.PutUint16(b[0:2], uint16(e.Type))
	binary.LittleEndian.PutUint32(b[2:6], uint32(len(e.Value)))
	copy(b[HeaderSize:], e.Value)
	return b, nil
}

// Writer writes entries to an underlying stream.
type Writer struct {
	w io.Writer
}

// NewWriter returns a new Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes a single entry and writes it to the underlying stream. It
// returns the number of bytes written, which may be non-zero on error.
func (w *Writer) Write(typ Type, value []byte) (int, error) {
	e := Entry{Type: typ, Value: value}
	b, err := e.MarshalBinary()
	if err != nil {
		return 0, err
	}
	return w.w.Write(b)
}

// Decode reads exactly one entry from r. It returns io.EOF if r is exhausted
// before the first header byte.
func Decode(r io.Reader) (*Entry, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short header", ErrTruncated)
		}
		return nil, err
	}
	typ := Type(binary.LittleEndian.Uint16(hdr[0:2]))
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %#06x", ErrUnknownType, uint16(typ))
	}
	if binary.LittleEndian.Uint16(hdr[6:8]) != 0 {
		return nil, ErrReservedNonZero
	}
	length := binary.LittleEndian.Uint32(hdr[2:6])
	var value bytes.Buffer
	value.Grow(int(min(length, maxPrealloc)))
	n, err := value.ReadFrom(io.LimitReader(r, int64(length)))
	if err != nil {
		return nil, err
	}
	if n < int64(length) {
		return nil, fmt.Errorf("%w: %s wants %d bytes, found %d", ErrTruncated, typ, length, n)
	}
	return &Entry{Type: typ, Value: value.Bytes()}, nil
}

// Reader reads entries from a random access source, either sequentially with
// Read or at arbitrary offsets with ReadAt.
type Reader struct {
	r      io.ReaderAt
	size   int64 // -1 if unknown
	offset int64
}

// NewReader returns a new Reader that reads from r. When r can report its
// size, records claiming more bytes than r holds are rejected before their
// value is read.
func NewReader(r io.ReaderAt) *Reader {
	size := int64(-1)
	switch v := r.(type) {
	case interface{ Size() int64 }:
		size = v.Size()
	case interface{ Stat() (fs.FileInfo, error) }:
		if info, err := v.Stat(); err == nil && info.Mode().IsRegular() {
			size = info.Size()
		}
	}
	return &Reader{r: r, size: size}
}

// Read reads the next entry and advances the reader past it.
func (r *Reader) Read() (*Entry, error) {
	e, n, err := r.ReadAt(r.offset)
	if err != nil {
		return nil, err
	}
	r.offset += int64(n)
	return e, nil
}

// ReadAt reads the entry starting at off and returns it along with its
// encoded size.
func (r *Reader) ReadAt(off int64) (*Entry, int, error) {
	limit := math.MaxInt64 - off
	if r.size >= off+HeaderSize {
		left := r.size - off - HeaderSize
		if _, length, err := r.ReadMetadataAt(off); err == nil && int64(length) > left {
			return nil, 0, fmt.Errorf("%w: %d byte value at %d, %d bytes left", ErrTruncated, length, off, left)
		}
		limit = r.size - off
	}
	e, err := Decode(io.NewSectionReader(r.r, off, limit))
	if err != nil {
		return nil, 0, err
	}
	return e, e.Size(), nil
}

// ReadMetadataAt reads only the header of the entry at off.
func (r *Reader) ReadMetadataAt(off int64) (Type, uint32, error) {
	var hdr [HeaderSize]byte
	n, err := r.r.ReadAt(hdr[:], off)
	if n < HeaderSize {
		if err == nil || errors.Is(err, io.EOF) {
			return 0, 0, fmt.Errorf("%w: short header at %d", ErrTruncated, off)
		}
		return 0, 0, err
	}
	typ := Type(binary.LittleEndian.Uint16(hdr[0:2]))
	if !typ.Valid() {
		return 0, 0, fmt.Errorf("%w: %#06x at %d", ErrUnknownType, uint16(typ), off)
	}
	return typ, binary.LittleEndian.Uint32(hdr[2:6]), nil
}

// Offset returns the position of the next entry Read would return.
func (r *Reader) Offset() int64 {
	return r.offset
}
