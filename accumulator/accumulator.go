// Package accumulator provides the per-epoch header accumulator roots that
// close every archive. The roots come from a text file holding one
// hex-encoded 32-byte value per line, the line index being the epoch.
package accumulator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/henridf/era1/era"
)

// Size is the length of an accumulator root.
const Size = 32

var ErrNotFound = errors.New("no accumulator for epoch")

// Table maps epochs to their accumulator roots.
type Table struct {
	roots [][]byte
}

// Load reads one root per line from r. Blank lines and lines starting with
// '#' are ignored; the 0x prefix is optional.
func Load(r io.Reader) (*Table, error) {
	var t Table
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
			text = "0x" + text
		}
		root, err := hexutil.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(root) != Size {
			return nil, fmt.Errorf("line %d: root has %d bytes, want %d", line, len(root), Size)
		}
		t.roots = append(t.roots, root)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadFile reads the roots stored at path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Len returns the number of epochs covered.
func (t *Table) Len() int {
	return len(t.roots)
}

// Epoch returns the root of an epoch.
func (t *Table) Epoch(epoch uint64) ([]byte, error) {
	if epoch >= uint64(len(t.roots)) {
		return nil, fmt.Errorf("%w %d (have %d)", ErrNotFound, epoch, len(t.roots))
	}
	return t.roots[epoch], nil
}

// Lookup returns the root of the epoch containing the given block.
func (t *Table) Lookup(number uint64) ([]byte, error) {
	return t.Epoch(era.Epoch(number))
}
