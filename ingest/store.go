package ingest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/henridf/era1/era"
)

// ChecksumFile is the name of the file listing the checksum of every
// archive committed to a directory.
const ChecksumFile = "checksums.txt"

// Dir stores archives in a directory. An archive is written to a temporary
// file and only gets its final name once committed.
type Dir struct {
	dir     string
	network string

	file  *os.File
	buf   *bufio.Writer
	epoch uint64
}

// NewDir creates the directory if needed.
func NewDir(dir, network string) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create output directory: %w", err)
	}
	return &Dir{dir: dir, network: network}, nil
}

func (d *Dir) tmpPath(epoch uint64) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s-%05d.era1.tmp", d.network, epoch))
}

// Create opens the temporary file of an epoch. Only one epoch can be open
// at a time.
func (d *Dir) Create(epoch uint64) (io.Writer, error) {
	if d.file != nil {
		return nil, fmt.Errorf("epoch %d is still open", d.epoch)
	}
	f, err := os.Create(d.tmpPath(epoch))
	if err != nil {
		return nil, fmt.Errorf("could not create archive: %w", err)
	}
	d.file = f
	d.buf = bufio.NewWriterSize(f, 1<<20)
	d.epoch = epoch
	return d.buf, nil
}

func (d *Dir) close(epoch uint64) error {
	if d.file == nil || d.epoch != epoch {
		return fmt.Errorf("epoch %d is not open", epoch)
	}
	err := d.buf.Flush()
	if err == nil {
		err = d.file.Sync()
	}
	if cerr := d.file.Close(); err == nil {
		err = cerr
	}
	d.file, d.buf = nil, nil
	return err
}

// Commit closes the archive of an epoch, moves it to its final name and
// records its checksum. It returns the final path.
func (d *Dir) Commit(epoch uint64, accumulator []byte) (string, error) {
	if err := d.close(epoch); err != nil {
		return "", fmt.Errorf("could not close archive: %w", err)
	}
	path := filepath.Join(d.dir, era.Filename(d.network, epoch, accumulator))
	if err := os.Rename(d.tmpPath(epoch), path); err != nil {
		return "", fmt.Errorf("could not rename archive: %w", err)
	}
	sum, err := checksum(path)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(filepath.Join(d.dir, ChecksumFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("could not open checksum file: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s %s\n", sum, filepath.Base(path)); err != nil {
		return "", fmt.Errorf("could not write checksum: %w", err)
	}
	return path, nil
}

// Discard closes and removes the temporary file of an epoch.
func (d *Dir) Discard(epoch uint64) error {
	err := d.close(epoch)
	if rerr := os.Remove(d.tmpPath(epoch)); rerr != nil && !os.IsNotExist(rerr) {
		return rerr
	}
	return err
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("could not hash %s: %w", path, err)
	}
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}
