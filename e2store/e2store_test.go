package e2store

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	for _, test := range []struct {
		name    string
		entries []Entry
		want    string
	}{
		{
			name:    "version",
			entries: []Entry{{TypeVersion, nil}},
			want:    "6532000000000000",
		},
		{
			name:    "beef",
			entries: []Entry{{TypeAccumulator, common.Hex2Bytes("beef")}},
			want:    "0700020000000000beef",
		},
		{
			name: "twoEntries",
			entries: []Entry{
				{TypeCompressedHeader, common.Hex2Bytes("beef")},
				{TypeCompressedBody, common.Hex2Bytes("abcdabcd")},
			},
			want: "0300020000000000beef0400040000000000abcdabcd",
		},
	} {
		tt := test
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var (
				b = bytes.NewBuffer(nil)
				w = NewWriter(b)
			)
			for _, e := range tt.entries {
				n, err := w.Write(e.Type, e.Value)
				require.NoError(t, err)
				assert.Equal(t, e.Size(), n)
			}
			require.Equal(t, common.FromHex(tt.want), b.Bytes())

			r := NewReader(bytes.NewReader(b.Bytes()))
			for _, want := range tt.entries {
				have, err := r.Read()
				require.NoError(t, err)
				assert.Equal(t, want.Type, have.Type)
				assert.True(t, bytes.Equal(want.Value, have.Value), "value mismatch: want %#x, have %#x", want.Value, have.Value)
			}
			_, err := r.Read()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestDecode(t *testing.T) {
	for _, tt := range []struct {
		name string
		have string
		err  error
	}{
		{name: "valid", have: "6532000000000000"},
		{name: "reserved", have: "6532000000000001", err: ErrReservedNonZero},
		{name: "empty", have: "", err: io.EOF},
		{name: "short type", have: "bad", err: ErrTruncated},
		{name: "short length", have: "badbeef", err: ErrTruncated},
		{name: "short value", have: "0300010000000000", err: ErrTruncated},
		{name: "oversized length", have: "0300ffffffff0000beef", err: ErrTruncated},
		{name: "unknown type", have: "ffff000000000000", err: ErrUnknownType},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(common.FromHex(tt.have)))
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestReadMetadataAt(t *testing.T) {
	var b bytes.Buffer
	w := NewWriter(&b)
	_, err := w.Write(TypeVersion, nil)
	require.NoError(t, err)
	_, err = w.Write(TypeTotalDifficulty, make([]byte, 32))
	require.NoError(t, err)

	r := NewReader(bytes.NewReader(b.Bytes()))
	typ, length, err := r.ReadMetadataAt(HeaderSize)
	require.NoError(t, err)
	assert.Equal(t, TypeTotalDifficulty, typ)
	assert.Equal(t, uint32(32), length)

	_, _, err = r.ReadMetadataAt(int64(b.Len()) - 4)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReadAtOversizedLength(t *testing.T) {
	var b bytes.Buffer
	w := NewWriter(&b)
	_, err := w.Write(TypeVersion, nil)
	require.NoError(t, err)
	// An accumulator header claiming 4 GiB followed by two bytes.
	b.Write(common.FromHex("0700ffffffff0000beef"))

	path := filepath.Join(t.TempDir(), "corrupt.e2s")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	for name, r := range map[string]*Reader{
		"bytes": NewReader(bytes.NewReader(b.Bytes())),
		"file":  NewReader(f),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, int64(b.Len()), r.size)
			_, err := r.Read()
			require.NoError(t, err)
			_, err = r.Read()
			assert.ErrorIs(t, err, ErrTruncated)
		})
	}
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "block index", TypeBlockIndex.String())
	assert.Equal(t, "unknown(0x0042)", Type(0x42).String())
	assert.True(t, TypeCompressedReceipts.Compressed())
	assert.False(t, TypeTotalDifficulty.Compressed())
}

func FuzzCodec(f *testing.F) {
	f.Add(common.FromHex("0300020000000000beef"))
	f.Fuzz(func(t *testing.T, input []byte) {
		r := NewReader(bytes.NewReader(input))
		entry, err := r.Read()
		if err != nil {
			return
		}
		var (
			b = bytes.NewBuffer(nil)
			w = NewWriter(b)
		)
		w.Write(entry.Type, entry.Value)
		output := b.Bytes()
		// Only care about the input that was actually consumed
		input = input[:r.offset]
		if !bytes.Equal(input, output) {
			t.Fatalf("decode-encode mismatch, input %#x output %#x", input, output)
		}
	})
}
