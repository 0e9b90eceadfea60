package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/spf13/pflag"

	"github.com/henridf/era1/era"
)

func bail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}

func usage(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
	fmt.Fprintf(os.Stderr, "usage: era1info [flags] <file.era1>...\n\n")
	pflag.PrintDefaults()
	os.Exit(1)
}

func main() {
	var (
		flagExport string
		flagVerify bool
	)

	pflag.StringVarP(&flagExport, "export", "x", "", "write the blocks as a stream of RLP-encoded blocks to the given file")
	pflag.BoolVarP(&flagVerify, "verify", "v", false, "decode every record and check the archive for inconsistencies")
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		usage(fmt.Errorf("must pass at least one archive file"))
	}

	var w io.Writer
	if flagExport != "" {
		fh, err := os.OpenFile(flagExport, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			bail(fmt.Errorf("could not open output file %s: %w", flagExport, err))
		}
		defer fh.Close()
		w = fh
	}

	for _, name := range args {
		e, err := era.Open(name)
		if err != nil {
			bail(fmt.Errorf("opening %s: %w", name, err))
		}
		if err := info(os.Stdout, name, e, flagVerify); err != nil {
			e.Close()
			bail(err)
		}
		if w != nil {
			if err := export(w, e); err != nil {
				e.Close()
				bail(fmt.Errorf("exporting %s: %w", name, err))
			}
		}
		e.Close()
	}
}

// info prints the block range and accumulator of an archive.
func info(w io.Writer, name string, e *era.Era, verify bool) error {
	acc, err := e.Accumulator()
	if err != nil {
		return fmt.Errorf("%s: reading accumulator: %w", name, err)
	}
	fmt.Fprintf(w, "%s\n", name)
	fmt.Fprintf(w, "  first block: %d, last block: %d (%d blocks)\n", e.Start(), e.Start()+e.Count()-1, e.Count())
	fmt.Fprintf(w, "  accumulator: %#x\n", acc)
	if !verify {
		return nil
	}
	if err := e.Verify(); err != nil {
		return fmt.Errorf("%s: invalid archive: %w", name, err)
	}
	fmt.Fprintf(w, "  verified\n")
	return nil
}

// export writes every block of the archive in the format accepted by
// geth import.
func export(w io.Writer, e *era.Era) error {
	for n := e.Start(); n < e.Start()+e.Count(); n++ {
		h, err := e.Header(n)
		if err != nil {
			return err
		}
		b, err := e.Body(n)
		if err != nil {
			return err
		}
		block := types.NewBlockWithHeader(h).WithBody(*b)
		if err := rlp.Encode(w, block); err != nil {
			return fmt.Errorf("writing RLP-encoded block %d: %w", n, err)
		}
	}
	return nil
}
