package gcm

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Country codes stored in the debug/country header.
const (
	CountryJapan   = 0
	CountryAmerica = 1
	CountryEurope  = 2
	CountryKorea   = 0
)

// DiscInfo is the fixed 0x2000-byte bi2.bin following the boot header.
// Like BootHeader it is raw bytes plus fixed-offset accessors.
type DiscInfo struct {
	data [DiscInfoSize]byte
}

// ReadDiscInfo consumes exactly DiscInfoSize bytes from r.
func ReadDiscInfo(r io.Reader) (*DiscInfo, error) {
	d := &DiscInfo{}
	if _, err := io.ReadFull(r, d.data[:]); err != nil {
		return nil, fmt.Errorf("reading disc info header: %w", err)
	}
	return d, nil
}

func (d *DiscInfo) u32(offset int) uint32 {
	return binary.BigEndian.Uint32(d.data[offset : offset+4])
}

func (d *DiscInfo) putU32(offset int, v uint32) {
	binary.BigEndian.PutUint32(d.data[offset:offset+4], v)
}

// DebugMonitorSize returns the field at offset 0.
func (d *DiscInfo) DebugMonitorSize() uint32 { return d.u32(0x00) }

// SimulatedMemSize returns the field at offset 4.
func (d *DiscInfo) SimulatedMemSize() uint32 { return d.u32(0x04) }

// ArgumentOffset returns the field at offset 12.
func (d *DiscInfo) ArgumentOffset() uint32 { return d.u32(0x0C) }

// DebugFlag returns the field at offset 8.
func (d *DiscInfo) DebugFlag() uint32 { return d.u32(0x08) }

// TrackLocation returns the field at offset 16.
func (d *DiscInfo) TrackLocation() uint32 { return d.u32(0x10) }

// TrackSize returns the field at offset 20.
func (d *DiscInfo) TrackSize() uint32 { return d.u32(0x14) }

// CountryCode returns the region field at offset 24.
func (d *DiscInfo) CountryCode() uint32 { return d.u32(0x18) }

// SetCountryCode writes the region field.
func (d *DiscInfo) SetCountryCode(code uint32) { d.putU32(0x18, code) }

// WriteTo writes the full 0x2000-byte header.
func (d *DiscInfo) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.data[:])
	return int64(n), err
}

// Bytes returns the raw header contents.
func (d *DiscInfo) Bytes() []byte { return d.data[:] }
