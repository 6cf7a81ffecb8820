// Package nifti reads just enough of a NIfTI-1 or NIfTI-2 header to confirm
// that a file is a NIfTI image and to report its dimensions.
package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	sizeofHdr1 = 348
	sizeofHdr2 = 540
)

var (
	magic1Single = []byte("n+1\x00")
	magic1Pair   = []byte("ni1\x00")
	magic2Single = []byte("n+2\x00\r\n\x1a\n")
	magic2Pair   = []byte("ni2\x00\r\n\x1a\n")
)

// Header is the subset of the NIfTI header the wrapper cares about
type Header struct {
	// Version is 1 or 2
	Version int

	// ByteOrder is the byte order the header was written in
	ByteOrder binary.ByteOrder

	// Dims holds the used entries of dim[1..dim[0]]
	Dims []int64

	// Datatype is the NIfTI datatype code
	Datatype int16

	// Bitpix is the number of bits per voxel
	Bitpix int16
}

// Volumes returns the number of volumes along the 4th dimension, 1 for 3D images
func (h *Header) Volumes() int64 {
	if len(h.Dims) < 4 {
		return 1
	}
	return h.Dims[3]
}

// ReadHeader parses the header at the start of r
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, sizeofHdr1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read NIfTI header: %w", err)
	}

	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		switch int32(order.Uint32(buf[0:4])) {
		case sizeofHdr1:
			return parseV1(buf, order)
		case sizeofHdr2:
			rest := make([]byte, sizeofHdr2-sizeofHdr1)
			if _, err := io.ReadFull(r, rest); err != nil {
				return nil, fmt.Errorf("failed to read NIfTI-2 header: %w", err)
			}
			return parseV2(append(buf, rest...), order)
		}
	}
	return nil, fmt.Errorf("not a NIfTI file: unexpected header size")
}

func parseV1(buf []byte, order binary.ByteOrder) (*Header, error) {
	magic := buf[344:348]
	if !bytes.Equal(magic, magic1Single) && !bytes.Equal(magic, magic1Pair) {
		return nil, fmt.Errorf("not a NIfTI-1 file: bad magic %q", magic)
	}

	h := &Header{
		Version:   1,
		ByteOrder: order,
		Datatype:  int16(order.Uint16(buf[70:72])),
		Bitpix:    int16(order.Uint16(buf[72:74])),
	}
	ndim := int(int16(order.Uint16(buf[40:42])))
	if ndim < 1 || ndim > 7 {
		return nil, fmt.Errorf("invalid NIfTI-1 dimension count %d", ndim)
	}
	for i := 1; i <= ndim; i++ {
		off := 40 + 2*i
		h.Dims = append(h.Dims, int64(int16(order.Uint16(buf[off:off+2]))))
	}
	return h, nil
}

func parseV2(buf []byte, order binary.ByteOrder) (*Header, error) {
	magic := buf[4:12]
	if !bytes.Equal(magic, magic2Single) && !bytes.Equal(magic, magic2Pair) {
		return nil, fmt.Errorf("not a NIfTI-2 file: bad magic %q", magic)
	}

	h := &Header{
		Version:   2,
		ByteOrder: order,
		Datatype:  int16(order.Uint16(buf[12:14])),
		Bitpix:    int16(order.Uint16(buf[14:16])),
	}
	ndim := int(int64(order.Uint64(buf[16:24])))
	if ndim < 1 || ndim > 7 {
		return nil, fmt.Errorf("invalid NIfTI-2 dimension count %d", ndim)
	}
	for i := 1; i <= ndim; i++ {
		off := 16 + 8*i
		h.Dims = append(h.Dims, int64(order.Uint64(buf[off:off+8])))
	}
	return h, nil
}
