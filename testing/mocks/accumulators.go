package mocks

import (
	"testing"
)

type Accumulators struct {
	LookupFunc func(number uint64) ([]byte, error)
}

func BaselineAccumulators(t *testing.T) *Accumulators {
	t.Helper()

	a := Accumulators{
		LookupFunc: func(number uint64) ([]byte, error) {
			return GenericAccumulator, nil
		},
	}

	return &a
}

func (a *Accumulators) Lookup(number uint64) ([]byte, error) {
	return a.LookupFunc(number)
}
