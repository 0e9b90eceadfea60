// Package compress wraps values in the snappy framing format used by the
// compressed records of an era1 archive.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
	ksnappy "github.com/klauspost/compress/snappy"
)

var ErrCorruptFrame = errors.New("corrupt snappy frame")

// Compressor frames values with snappy. It reuses its buffers between calls,
// so the slice returned by Compress is only valid until the next call.
type Compressor struct {
	buf *bytes.Buffer
	w   *snappy.Writer
}

// NewCompressor returns a ready to use Compressor.
func NewCompressor() *Compressor {
	buf := bytes.NewBuffer(nil)
	return &Compressor{
		buf: buf,
		w:   snappy.NewBufferedWriter(buf),
	}
}

// Compress returns the framed encoding of in.
func (c *Compressor) Compress(in []byte) ([]byte, error) {
	c.buf.Reset()
	c.w.Reset(c.buf)
	if _, err := c.w.Write(in); err != nil {
		return nil, fmt.Errorf("could not snappy encode: %w", err)
	}
	if err := c.w.Flush(); err != nil {
		return nil, fmt.Errorf("could not flush snappy encoding: %w", err)
	}
	return c.buf.Bytes(), nil
}

// Compress returns the framed encoding of in in a freshly allocated slice.
func Compress(in []byte) ([]byte, error) {
	out, err := NewCompressor().Compress(in)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), out...), nil
}

// Decompress reverses Compress.
func Decompress(in []byte) ([]byte, error) {
	out, err := io.ReadAll(NewReader(bytes.NewReader(in)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
	}
	return out, nil
}

// NewReader returns a streaming decoder for framed data read from r.
func NewReader(r io.Reader) io.Reader {
	return ksnappy.NewReader(r)
}
