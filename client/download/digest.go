package download

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"
)

// digest accumulates a hash of the streamed bytes.
type digest struct {
	h    hash.Hash
	want []byte
}

func newDigest(h hash.Hash, expected string) (*digest, error) {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return nil, fmt.Errorf("expected checksum is not hex: %w", err)
	}
	if len(want) != h.Size() {
		return nil, fmt.Errorf("expected checksum has %d bytes, hash produces %d", len(want), h.Size())
	}
	return &digest{h: h, want: want}, nil
}

func (d *digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// check compares the running sum with the expected one. A nil digest
// always passes.
func (d *digest) check(dest string) error {
	if d == nil {
		return nil
	}
	if got := d.h.Sum(nil); !bytes.Equal(got, d.want) {
		return &Error{
			Dest:   dest,
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("expected %x, got %x", d.want, got),
		}
	}
	return nil
}
