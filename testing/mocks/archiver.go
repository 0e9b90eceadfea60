package mocks

import (
	"io"
	"testing"

	"github.com/henridf/era1/wire"
)

type Archiver struct {
	AddFunc      func(block *wire.Block) error
	FinalizeFunc func(accumulator []byte) error
	ResetFunc    func(w io.Writer)
	LenFunc      func() int
}

// BaselineArchiver returns an archiver that counts the blocks it is given.
func BaselineArchiver(t *testing.T) *Archiver {
	t.Helper()

	count := 0
	a := Archiver{
		AddFunc: func(block *wire.Block) error {
			count++
			return nil
		},
		FinalizeFunc: func(accumulator []byte) error {
			return nil
		},
		ResetFunc: func(w io.Writer) {
			count = 0
		},
		LenFunc: func() int {
			return count
		},
	}

	return &a
}

func (a *Archiver) Add(block *wire.Block) error {
	return a.AddFunc(block)
}

func (a *Archiver) Finalize(accumulator []byte) error {
	return a.FinalizeFunc(accumulator)
}

func (a *Archiver) Reset(w io.Writer) {
	a.ResetFunc(w)
}

func (a *Archiver) Len() int {
	return a.LenFunc()
}
