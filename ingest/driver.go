// Package ingest drives archive creation from a block stream: it opens an
// archive at each epoch boundary, feeds it blocks and finalizes it once the
// epoch is complete, abandoning epochs the stream did not fully deliver.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/henridf/era1/era"
	"github.com/henridf/era1/source"
	"github.com/henridf/era1/wire"
)

var ErrUndoUnsupported = errors.New("chain reorganization not supported")

// Archiver accumulates the blocks of one archive. It is implemented by
// *era.Builder.
type Archiver interface {
	Add(block *wire.Block) error
	Finalize(accumulator []byte) error
	Reset(w io.Writer)
	Len() int
}

// Store provides the sinks archives are written to.
type Store interface {
	Create(epoch uint64) (io.Writer, error)
	Commit(epoch uint64, accumulator []byte) (string, error)
	Discard(epoch uint64) error
}

// Accumulators provides the accumulator root of the epoch containing a block.
type Accumulators interface {
	Lookup(number uint64) ([]byte, error)
}

// Driver turns a stream of blocks into complete archives.
type Driver struct {
	log          zerolog.Logger
	archiver     Archiver
	store        Store
	accumulators Accumulators
	metrics      *metrics

	active  bool
	epoch   uint64
	next    uint64
	skipped []uint64
}

// NewDriver creates a driver writing archives built by archiver to store.
func NewDriver(log zerolog.Logger, archiver Archiver, store Store, accumulators Accumulators, options ...func(*Config)) *Driver {
	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}
	d := Driver{
		log:          log.With().Str("component", "ingest_driver").Logger(),
		archiver:     archiver,
		store:        store,
		accumulators: accumulators,
		metrics:      newMetrics(cfg.Registerer),
	}
	return &d
}

// Run consumes responses until the channel is closed, the context is
// canceled or a fatal error occurs. An epoch still open when Run returns is
// abandoned.
func (d *Driver) Run(ctx context.Context, responses <-chan source.Response) error {
	defer func() {
		if d.active {
			if err := d.abandon("stream stopped before epoch was complete"); err != nil {
				d.log.Error().Err(err).Msg("could not discard archive")
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp, ok := <-responses:
			if !ok {
				d.log.Info().Msg("block stream ended")
				return nil
			}
			if resp.Undo != nil {
				return fmt.Errorf("%w: last valid block %d", ErrUndoUnsupported, resp.Undo.LastValidNumber)
			}
			if resp.Block == nil {
				d.log.Warn().Msg("ignoring empty response")
				continue
			}
			if err := d.Process(resp.Block); err != nil {
				return err
			}
		}
	}
}

// Process handles a single block. It only returns errors that make further
// progress impossible; blocks that cannot be archived are logged and
// skipped.
func (d *Driver) Process(block *wire.Block) error {
	number := block.Number
	log := d.log.With().Uint64("block", number).Uint64("epoch", era.Epoch(number)).Logger()

	if d.active && era.Epoch(number) > d.epoch {
		if err := d.close(); err != nil {
			return err
		}
	}

	if number < d.next {
		log.Warn().Msg("skipping duplicate block")
		d.metrics.block("duplicate")
		return nil
	}

	if !d.active {
		if number%era.EpochSize != 0 {
			log.Warn().Msg("skipping block before epoch boundary")
			d.metrics.block("unaligned")
			return nil
		}
		if err := d.open(era.Epoch(number)); err != nil {
			return err
		}
	}

	if number > d.next {
		log.Error().Uint64("expected", d.next).Msg("blocks missing from stream")
		for n := d.next; n < number; n++ {
			d.skipped = append(d.skipped, n)
		}
	}
	d.next = number + 1

	err := d.archiver.Add(block)
	var werr *era.WriteError
	switch {
	case errors.As(err, &werr):
		return fmt.Errorf("could not archive block %d: %w", number, err)
	case err != nil:
		log.Error().Err(err).Msg("skipping block that could not be archived")
		d.skipped = append(d.skipped, number)
		d.metrics.block("skipped")
	default:
		d.metrics.block("added")
	}

	if number%era.EpochSize == era.EpochSize-1 {
		return d.close()
	}
	return nil
}

func (d *Driver) open(epoch uint64) error {
	w, err := d.store.Create(epoch)
	if err != nil {
		return fmt.Errorf("could not open archive for epoch %d: %w", epoch, err)
	}
	d.archiver.Reset(w)
	d.active = true
	d.epoch = epoch
	d.next = epoch * era.EpochSize
	d.skipped = d.skipped[:0]
	d.log.Info().Uint64("epoch", epoch).Msg("archive opened")
	return nil
}

// close finalizes the open epoch if every one of its blocks was archived and
// abandons it otherwise. An epoch that fails to finalize is abandoned too.
func (d *Driver) close() error {
	if d.archiver.Len() != era.EpochSize || len(d.skipped) > 0 {
		return d.abandon("epoch is incomplete")
	}
	if err := d.finalize(); err != nil {
		if aerr := d.abandon("archive could not be finalized"); aerr != nil {
			d.log.Error().Err(aerr).Msg("could not discard archive")
		}
		return err
	}
	return nil
}

func (d *Driver) finalize() error {
	acc, err := d.accumulators.Lookup(d.epoch * era.EpochSize)
	if err != nil {
		return fmt.Errorf("could not get accumulator for epoch %d: %w", d.epoch, err)
	}
	if err := d.archiver.Finalize(acc); err != nil {
		return fmt.Errorf("could not finalize archive for epoch %d: %w", d.epoch, err)
	}
	path, err := d.store.Commit(d.epoch, acc)
	if err != nil {
		return fmt.Errorf("could not commit archive for epoch %d: %w", d.epoch, err)
	}
	d.active = false
	d.metrics.archive("finalized")
	d.log.Info().Uint64("epoch", d.epoch).Str("path", path).Msg("archive finalized")
	return nil
}

func (d *Driver) abandon(reason string) error {
	d.active = false
	event := d.log.Error().
		Uint64("epoch", d.epoch).
		Int("blocks", d.archiver.Len()).
		Int("skipped", len(d.skipped))
	if len(d.skipped) > 0 {
		event = event.Uint64("first_skipped", d.skipped[0])
	}
	event.Str("reason", reason).Msg("abandoning archive")
	d.metrics.archive("abandoned")
	if err := d.store.Discard(d.epoch); err != nil {
		return fmt.Errorf("could not discard archive for epoch %d: %w", d.epoch, err)
	}
	return nil
}
