package random

import (
	"crypto/rand"
	"encoding/binary"
	"io"
)

// Uint64 returns a cryptographically random uint64 value.
func Uint64() (uint64, error) {
	return randomUint64(rand.Reader)
}

func randomUint64(source io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(source, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
