package gcm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootHeaderAccessors(t *testing.T) {
	raw := make([]byte, BootHeaderSize)
	copy(raw[0x00:], "GTST")
	copy(raw[0x04:], "01")
	raw[0x06] = 1
	raw[0x07] = 2
	binary.BigEndian.PutUint32(raw[0x1C:], gcMagic)
	copy(raw[0x20:], "Test Game")
	binary.BigEndian.PutUint32(raw[0x420:], 0x4000)
	binary.BigEndian.PutUint32(raw[0x424:], 0x4800)

	h, err := ReadBootHeader(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "GTST", h.GameCode())
	assert.Equal(t, "01", h.MakerCode())
	assert.Equal(t, "GTST01", h.GameID())
	assert.Equal(t, uint8(1), h.DiskID())
	assert.Equal(t, uint8(2), h.Version())
	assert.Equal(t, "Test Game", h.GameName())
	assert.Equal(t, uint32(0x4000), h.DolOffset())
	assert.Equal(t, uint32(0x4800), h.FSTOffset())

	h.SetGameID("GNEW02")
	assert.Equal(t, "GNEW", h.GameCode())
	assert.Equal(t, "02", h.MakerCode())

	// Setters NUL-pad, so a shorter name leaves no residue.
	h.SetGameName("Shorter")
	assert.Equal(t, "Shorter", h.GameName())

	var out bytes.Buffer
	_, err = h.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, h.Bytes(), out.Bytes())
	assert.Len(t, out.Bytes(), BootHeaderSize)
}

func TestBootHeaderPlatform(t *testing.T) {
	raw := make([]byte, BootHeaderSize)
	h, err := ReadBootHeader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.False(t, h.IsGameCube())
	assert.False(t, h.IsWii())
	assert.Equal(t, uint64(GameCubeMaxSize), h.MaxImageSize(), "no magic defaults to the GameCube size")

	binary.BigEndian.PutUint32(raw[0x18:], wiiMagic)
	h, err = ReadBootHeader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.True(t, h.IsWii())
	assert.Equal(t, uint64(WiiMaxSize), h.MaxImageSize())
}

func TestReadBootHeaderShort(t *testing.T) {
	_, err := ReadBootHeader(bytes.NewReader(make([]byte, 0x100)))
	assert.Error(t, err)
}

func TestReadApploader(t *testing.T) {
	raw := make([]byte, apploaderHeaderSize+0x30)
	copy(raw, "2026/08/25")
	binary.BigEndian.PutUint32(raw[0x10:], 0x81200000)
	binary.BigEndian.PutUint32(raw[0x14:], 0x20)
	binary.BigEndian.PutUint32(raw[0x18:], 0x10)

	a, err := ReadApploader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "2026/08/25", a.BuildDate())
	assert.Equal(t, uint32(0x81200000), a.EntryPoint())
	assert.Equal(t, uint32(0x20), a.LoaderSize())
	assert.Equal(t, uint32(0x10), a.TrailerSize())
	assert.Equal(t, uint64(apploaderHeaderSize+0x30), a.Size())
}

func TestReadDOLSizesFromSections(t *testing.T) {
	header := make([]byte, dolHeaderSize)
	// One text section at 0x100 with 0x40 bytes; one data section ending
	// further out at 0x200+0x80.
	binary.BigEndian.PutUint32(header[0*4:], 0x100)
	binary.BigEndian.PutUint32(header[0x90+0*4:], 0x40)
	binary.BigEndian.PutUint32(header[7*4:], 0x200)
	binary.BigEndian.PutUint32(header[0x90+7*4:], 0x80)

	raw := make([]byte, 0x280)
	copy(raw, header)
	d, err := ReadDOL(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x280), d.Size())
}

func TestReadDOLHeaderOnly(t *testing.T) {
	d, err := ReadDOL(bytes.NewReader(make([]byte, dolHeaderSize)))
	require.NoError(t, err)
	assert.Equal(t, uint64(dolHeaderSize), d.Size(), "an empty section table still spans the header")
}
