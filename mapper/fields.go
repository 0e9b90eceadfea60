package mapper

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/henridf/era1/wire"
)

// fields converts loose wire values into fixed-size ones. The first failure
// sticks and turns every later conversion into a no-op.
type fields struct {
	err error
}

func (f *fields) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *fields) length(name string, b []byte, want int) bool {
	if f.err != nil {
		return false
	}
	if len(b) != want {
		f.fail(fmt.Errorf("%w: %s has %d bytes, want %d", ErrMalformedField, name, len(b), want))
		return false
	}
	return true
}

func (f *fields) hash(name string, b []byte) (h common.Hash) {
	if f.length(name, b, common.HashLength) {
		copy(h[:], b)
	}
	return h
}

func (f *fields) address(name string, b []byte) (a common.Address) {
	if f.length(name, b, common.AddressLength) {
		copy(a[:], b)
	}
	return a
}

func (f *fields) bloom(name string, b []byte) (bloom types.Bloom) {
	if f.length(name, b, types.BloomByteLength) {
		copy(bloom[:], b)
	}
	return bloom
}

// to returns nil for an empty recipient, which marks contract creation.
func (f *fields) to(b []byte) *common.Address {
	if len(b) == 0 {
		return nil
	}
	a := f.address("to", b)
	return &a
}

// amount returns the value as a big integer, treating a missing one as zero.
func (f *fields) amount(name string, v *wire.BigInt) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return f.scalar(name, v.Bytes)
}

// scalar parses a big-endian value of at most 32 significant bytes.
func (f *fields) scalar(name string, b []byte) *big.Int {
	b = common.TrimLeftZeroes(b)
	if len(b) > 32 {
		f.fail(fmt.Errorf("%w: %s has %d bytes, want at most 32", ErrMalformedField, name, len(b)))
		return new(big.Int)
	}
	return new(big.Int).SetBytes(b)
}
