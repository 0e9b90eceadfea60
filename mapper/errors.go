package mapper

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedField    = errors.New("malformed field")
	ErrMissingField      = errors.New("missing field")
	ErrInvalidParity     = errors.New("invalid signature parity")
	ErrInvalidBloom      = errors.New("invalid receipt bloom")
	ErrUnsupportedTxType = errors.New("unsupported transaction type")
)

var (
	ErrMissingHeader          = fmt.Errorf("%w: header", ErrMissingField)
	ErrMissingDifficulty      = fmt.Errorf("%w: difficulty", ErrMissingField)
	ErrMissingTimestamp       = fmt.Errorf("%w: timestamp", ErrMissingField)
	ErrMissingTotalDifficulty = fmt.Errorf("%w: total difficulty", ErrMissingField)
	ErrMissingReceipt         = fmt.Errorf("%w: receipt", ErrMissingField)
)
