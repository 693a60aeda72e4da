package gcm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Apploader is the bootstrap binary at image offset 0x2440: a 0x20-byte
// header (build date, entry point, loader size, trailer size) followed
// by loader and trailer code.
type Apploader struct {
	data []byte
}

// ReadApploader reads the header, derives the total length from the
// loader and trailer size fields, and consumes the remainder.
func ReadApploader(r io.Reader) (*Apploader, error) {
	header := make([]byte, apploaderHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading apploader header: %w", err)
	}
	loaderSize := binary.BigEndian.Uint32(header[0x14:0x18])
	trailerSize := binary.BigEndian.Uint32(header[0x18:0x1C])

	body := make([]byte, loaderSize+trailerSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("reading apploader body (%d bytes): %w", len(body), err)
	}
	return &Apploader{data: append(header, body...)}, nil
}

// BuildDate returns the 10-character date string at offset 0.
func (a *Apploader) BuildDate() string {
	field := a.data[:10]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// EntryPoint returns the loader entry address at offset 0x10.
func (a *Apploader) EntryPoint() uint32 {
	return binary.BigEndian.Uint32(a.data[0x10:0x14])
}

// LoaderSize returns the loader code length at offset 0x14.
func (a *Apploader) LoaderSize() uint32 {
	return binary.BigEndian.Uint32(a.data[0x14:0x18])
}

// TrailerSize returns the trailer length at offset 0x18.
func (a *Apploader) TrailerSize() uint32 {
	return binary.BigEndian.Uint32(a.data[0x18:0x1C])
}

// Size returns the full on-disc length: header + loader + trailer.
func (a *Apploader) Size() uint64 { return uint64(len(a.data)) }

// WriteTo writes the apploader image.
func (a *Apploader) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.data)
	return int64(n), err
}

// Bytes returns the raw apploader contents.
func (a *Apploader) Bytes() []byte { return a.data }
