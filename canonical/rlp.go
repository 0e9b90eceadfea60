// Package canonical defines the precisely typed block objects stored in an
// era1 archive and produces their canonical RLP encodings, the exact bytes
// that get compressed into the archive records.
package canonical

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	ErrNonCanonicalInt = errors.New("non-canonical integer encoding")
	ErrIntTooLarge     = errors.New("integer wider than 64 bits")
)

// EncodeUint returns the minimal big-endian encoding of n. Zero encodes as
// the empty slice.
func EncodeUint(n uint64) []byte {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return common.CopyBytes(common.TrimLeftZeroes(b[:]))
}

// DecodeUint reverses EncodeUint. It rejects leading zero bytes and values
// wider than 64 bits.
func DecodeUint(b []byte) (uint64, error) {
	if len(b) > 8 {
		return 0, ErrIntTooLarge
	}
	if len(b) > 0 && b[0] == 0 {
		return 0, ErrNonCanonicalInt
	}
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n, nil
}

// writeBig writes a big integer, treating nil as zero.
func writeBig(w *rlp.EncoderBuffer, i *big.Int) {
	if i == nil {
		w.WriteUint64(0)
		return
	}
	w.WriteBigInt(i)
}
