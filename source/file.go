package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// File streams responses stored as a sequence of JSON documents, usually
// one per line.
type File struct {
	log zerolog.Logger
	r   io.Reader
}

// NewFile creates a source reading from r.
func NewFile(log zerolog.Logger, r io.Reader) *File {
	return &File{
		log: log.With().Str("component", "file_source").Logger(),
		r:   r,
	}
}

// Stream sends every response whose block falls in [start, stop) to out,
// along with every undo. It closes out when it returns.
func (f *File) Stream(ctx context.Context, start, stop uint64, out chan<- Response) error {
	defer close(out)

	dec := json.NewDecoder(f.r)
	for index := 0; ; index++ {
		var resp Response
		err := dec.Decode(&resp)
		if errors.Is(err, io.EOF) {
			f.log.Debug().Int("responses", index).Msg("end of input reached")
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not decode response %d: %w", index, err)
		}
		if resp.Block != nil && (resp.Block.Number < start || resp.Block.Number >= stop) {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- resp:
		}
	}
}
