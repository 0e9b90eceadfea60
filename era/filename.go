package era

import (
	"encoding/hex"
	"fmt"
)

// Filename returns the conventional name of an archive:
// <network>-<epoch>-<first 4 bytes of the accumulator>.era1.
func Filename(network string, epoch uint64, accumulator []byte) string {
	root := accumulator
	if len(root) > 4 {
		root = root[:4]
	}
	return fmt.Sprintf("%s-%05d-%s.era1", network, epoch, hex.EncodeToString(root))
}
