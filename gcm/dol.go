package gcm

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	dolHeaderSize  = 0x100
	dolNumSections = 18 // 7 text + 11 data
)

// DOL is the main executable image. Its on-disc length is not stored in
// any disc header, so it is derived from the section table: the largest
// section end, never less than the header itself.
type DOL struct {
	data []byte
}

// dolImageSize computes the executable's length from its header.
func dolImageSize(header []byte) uint64 {
	size := uint64(dolHeaderSize)
	for i := 0; i < dolNumSections; i++ {
		offset := binary.BigEndian.Uint32(header[i*4 : i*4+4])
		length := binary.BigEndian.Uint32(header[0x90+i*4 : 0x90+i*4+4])
		if end := uint64(offset) + uint64(length); end > size {
			size = end
		}
	}
	return size
}

// ReadDOL reads the 0x100-byte header from r, sizes the image from its
// section table and consumes the remaining bytes.
func ReadDOL(r io.Reader) (*DOL, error) {
	header := make([]byte, dolHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading DOL header: %w", err)
	}
	size := dolImageSize(header)

	data := make([]byte, size)
	copy(data, header)
	if _, err := io.ReadFull(r, data[dolHeaderSize:]); err != nil {
		return nil, fmt.Errorf("reading DOL image (%d bytes): %w", size, err)
	}
	return &DOL{data: data}, nil
}

// EntryPoint returns the execution entry address at offset 0xE0.
func (d *DOL) EntryPoint() uint32 {
	return binary.BigEndian.Uint32(d.data[0xE0:0xE4])
}

// Size returns the image length in bytes.
func (d *DOL) Size() uint64 { return uint64(len(d.data)) }

// WriteTo writes the full executable image.
func (d *DOL) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.data)
	return int64(n), err
}

// Bytes returns the raw image contents.
func (d *DOL) Bytes() []byte { return d.data }
