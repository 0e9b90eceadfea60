package mocks

import (
	"io"
	"testing"
)

type Store struct {
	CreateFunc  func(epoch uint64) (io.Writer, error)
	CommitFunc  func(epoch uint64, accumulator []byte) (string, error)
	DiscardFunc func(epoch uint64) error
}

func BaselineStore(t *testing.T) *Store {
	t.Helper()

	s := Store{
		CreateFunc: func(epoch uint64) (io.Writer, error) {
			return io.Discard, nil
		},
		CommitFunc: func(epoch uint64, accumulator []byte) (string, error) {
			return "archive.era1", nil
		},
		DiscardFunc: func(epoch uint64) error {
			return nil
		},
	}

	return &s
}

func (s *Store) Create(epoch uint64) (io.Writer, error) {
	return s.CreateFunc(epoch)
}

func (s *Store) Commit(epoch uint64, accumulator []byte) (string, error) {
	return s.CommitFunc(epoch, accumulator)
}

func (s *Store) Discard(epoch uint64) error {
	return s.DiscardFunc(epoch)
}
