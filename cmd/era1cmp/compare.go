package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/henridf/era1/compress"
	"github.com/henridf/era1/e2store"
)

// Mismatch describes the first record at which two archives differ.
type Mismatch struct {
	Index  int
	TypeA  e2store.Type
	TypeB  e2store.Type
	Reason string
}

func (m *Mismatch) String() string {
	switch {
	case m.TypeA == m.TypeB || m.TypeB == 0:
		return fmt.Sprintf("record %d (%s): %s", m.Index, m.TypeA, m.Reason)
	case m.TypeA == 0:
		return fmt.Sprintf("record %d (%s): %s", m.Index, m.TypeB, m.Reason)
	}
	return fmt.Sprintf("record %d (%s vs %s): %s", m.Index, m.TypeA, m.TypeB, m.Reason)
}

// compare walks both archives in lockstep. Compressed records are compared
// by their decompressed payload so that archives produced by different
// snappy encoders still match.
func compare(a, b io.ReaderAt) (*Mismatch, error) {
	ra, rb := e2store.NewReader(a), e2store.NewReader(b)
	for i := 0; ; i++ {
		ea, errA := ra.Read()
		eb, errB := rb.Read()
		endA, endB := errors.Is(errA, io.EOF), errors.Is(errB, io.EOF)
		switch {
		case errA != nil && !endA:
			return nil, fmt.Errorf("first archive, record %d: %w", i, errA)
		case errB != nil && !endB:
			return nil, fmt.Errorf("second archive, record %d: %w", i, errB)
		case endA && endB:
			return nil, nil
		case endA:
			return &Mismatch{Index: i, TypeB: eb.Type, Reason: "first archive ends early"}, nil
		case endB:
			return &Mismatch{Index: i, TypeA: ea.Type, Reason: "second archive ends early"}, nil
		}

		if ea.Type != eb.Type {
			return &Mismatch{Index: i, TypeA: ea.Type, TypeB: eb.Type, Reason: "record types differ"}, nil
		}
		va, vb := ea.Value, eb.Value
		if ea.Type.Compressed() {
			var err error
			if va, err = compress.Decompress(va); err != nil {
				return nil, fmt.Errorf("first archive, record %d: %w", i, err)
			}
			if vb, err = compress.Decompress(vb); err != nil {
				return nil, fmt.Errorf("second archive, record %d: %w", i, err)
			}
		}
		if !bytes.Equal(va, vb) {
			return &Mismatch{Index: i, TypeA: ea.Type, TypeB: eb.Type, Reason: "payloads differ"}, nil
		}
	}
}
