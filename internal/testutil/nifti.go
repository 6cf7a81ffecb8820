// Package testutil provides fixtures shared by the test files of several
// packages.
package testutil

import (
	"encoding/binary"
	"math"
)

// NIfTI-1 header layout
const (
	niftiHeaderSize = 348
	niftiMagicAt    = 344
)

// NIfTI1 builds a minimal little-endian single-file NIfTI-1 image header
// followed by the 4-byte extension flag, with the given dimensions (at most 7).
// The datatype is float32.
func NIfTI1(dims ...int16) []byte {
	buf := make([]byte, niftiHeaderSize+4)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], niftiHeaderSize)
	le.PutUint16(buf[40:42], uint16(len(dims)))
	for i, d := range dims {
		off := 42 + 2*i
		le.PutUint16(buf[off:off+2], uint16(d))
	}
	le.PutUint16(buf[70:72], 16)
	le.PutUint16(buf[72:74], 32)
	le.PutUint32(buf[108:112], math.Float32bits(float32(len(buf))))
	copy(buf[niftiMagicAt:niftiMagicAt+4], "n+1\x00")
	return buf
}
