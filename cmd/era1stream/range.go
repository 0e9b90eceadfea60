package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/henridf/era1/era"
)

// parseRange converts "<start_era>:<stop_era>" into the block range
// [start, stop). The start era defaults to zero and the stop era is
// inclusive; a bare number is taken as the stop era.
func parseRange(arg string) (uint64, uint64, error) {
	first, last := "", arg
	if i := strings.IndexByte(arg, ':'); i >= 0 {
		first, last = arg[:i], arg[i+1:]
	}

	var start uint64
	if first != "" {
		n, err := strconv.ParseUint(first, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid start era %q: %w", first, err)
		}
		start = n
	}
	stop, err := strconv.ParseUint(last, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid stop era %q: %w", last, err)
	}
	if stop < start {
		return 0, 0, fmt.Errorf("stop era %d is before start era %d", stop, start)
	}
	return start * era.EpochSize, (stop + 1) * era.EpochSize, nil
}
