package gcm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// BootHeader is the fixed 0x440-byte boot.bin at the start of every
// image. It is kept as raw bytes with fixed-offset accessors; fields the
// tool does not touch pass through unchanged.
type BootHeader struct {
	data [BootHeaderSize]byte
}

// ReadBootHeader consumes exactly BootHeaderSize bytes from r.
func ReadBootHeader(r io.Reader) (*BootHeader, error) {
	h := &BootHeader{}
	if _, err := io.ReadFull(r, h.data[:]); err != nil {
		return nil, fmt.Errorf("reading boot header: %w", err)
	}
	return h, nil
}

func (h *BootHeader) u32(offset int) uint32 {
	return binary.BigEndian.Uint32(h.data[offset : offset+4])
}

func (h *BootHeader) putU32(offset int, v uint32) {
	binary.BigEndian.PutUint32(h.data[offset:offset+4], v)
}

// fixedString reads a field as a NUL-terminated string capped at max.
func (h *BootHeader) fixedString(offset, max int) string {
	field := h.data[offset : offset+max]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// putFixedString writes s into a fixed field, truncating and
// NUL-padding.
func (h *BootHeader) putFixedString(offset, max int, s string) {
	field := h.data[offset : offset+max]
	for i := range field {
		field[i] = 0
	}
	copy(field, s)
}

// GameCode returns the 4-character game code at offset 0.
func (h *BootHeader) GameCode() string { return h.fixedString(0x00, 4) }

// SetGameCode writes the 4-character game code.
func (h *BootHeader) SetGameCode(code string) { h.putFixedString(0x00, 4, code) }

// MakerCode returns the 2-character maker code at offset 4.
func (h *BootHeader) MakerCode() string { return h.fixedString(0x04, 2) }

// SetMakerCode writes the 2-character maker code.
func (h *BootHeader) SetMakerCode(code string) { h.putFixedString(0x04, 2, code) }

// GameID returns the concatenated 6-character game+maker code, the form
// the sidecar config stores.
func (h *BootHeader) GameID() string { return h.GameCode() + h.MakerCode() }

// SetGameID splits a 6-character id into game and maker codes.
func (h *BootHeader) SetGameID(id string) {
	if len(id) >= 4 {
		h.SetGameCode(id[:4])
		h.SetMakerCode(id[4:])
	} else {
		h.SetGameCode(id)
	}
}

// DiskID returns the disc number byte at offset 6.
func (h *BootHeader) DiskID() uint8 { return h.data[0x06] }

// SetDiskID writes the disc number byte.
func (h *BootHeader) SetDiskID(id uint8) { h.data[0x06] = id }

// Version returns the title version byte at offset 7.
func (h *BootHeader) Version() uint8 { return h.data[0x07] }

// SetVersion writes the title version byte.
func (h *BootHeader) SetVersion(v uint8) { h.data[0x07] = v }

// IsWii reports the Wii magic word at offset 0x18.
func (h *BootHeader) IsWii() bool { return h.u32(0x18) == wiiMagic }

// IsGameCube reports the GameCube magic word at offset 0x1C.
func (h *BootHeader) IsGameCube() bool { return h.u32(0x1C) == gcMagic }

// MaxImageSize returns the platform's fixed disc size, defaulting to the
// GameCube size when neither magic is present.
func (h *BootHeader) MaxImageSize() uint64 {
	if h.IsWii() {
		return WiiMaxSize
	}
	return GameCubeMaxSize
}

// GameName returns the title string at offset 0x20.
func (h *BootHeader) GameName() string { return h.fixedString(0x20, 0x3E0) }

// SetGameName writes the title string.
func (h *BootHeader) SetGameName(name string) { h.putFixedString(0x20, 0x3E0, name) }

// DolOffset returns the code image offset at 0x420.
func (h *BootHeader) DolOffset() uint32 { return h.u32(0x420) }

// SetDolOffset writes the code image offset.
func (h *BootHeader) SetDolOffset(off uint32) { h.putU32(0x420, off) }

// FSTOffset returns the FST offset at 0x424.
func (h *BootHeader) FSTOffset() uint32 { return h.u32(0x424) }

// SetFSTOffset writes the FST offset.
func (h *BootHeader) SetFSTOffset(off uint32) { h.putU32(0x424, off) }

// FSTSize returns the FST length at 0x428.
func (h *BootHeader) FSTSize() uint32 { return h.u32(0x428) }

// SetFSTSize writes the FST length.
func (h *BootHeader) SetFSTSize(size uint32) { h.putU32(0x428, size) }

// FSTMaxSize returns the FST capacity field at 0x42C.
func (h *BootHeader) FSTMaxSize() uint32 { return h.u32(0x42C) }

// SetFSTMaxSize writes the FST capacity field.
func (h *BootHeader) SetFSTMaxSize(size uint32) { h.putU32(0x42C, size) }

// FirstFileOffset returns the smallest file data offset, at 0x434.
// Consumers use it to know where the system area truly ends.
func (h *BootHeader) FirstFileOffset() uint32 { return h.u32(0x434) }

// SetFirstFileOffset writes the smallest file data offset.
func (h *BootHeader) SetFirstFileOffset(off uint32) { h.putU32(0x434, off) }

// WriteTo writes the full 0x440-byte header.
func (h *BootHeader) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(h.data[:])
	return int64(n), err
}

// Bytes returns the raw header contents.
func (h *BootHeader) Bytes() []byte { return h.data[:] }
