package gcm

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestRoot lays out a minimal Dolphin-style root: a GameCube boot
// header, empty disc info, an apploader with a 0x40-byte loader and
// 0x20-byte trailer, a header-only code image and two payload files.
func writeTestRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "root")
	sys := filepath.Join(root, "sys")
	files := filepath.Join(root, "files")
	require.NoError(t, os.MkdirAll(sys, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(files, "dir"), 0o755))

	boot := make([]byte, BootHeaderSize)
	copy(boot[0x00:], "GTST")
	copy(boot[0x04:], "01")
	binary.BigEndian.PutUint32(boot[0x1C:], gcMagic)
	copy(boot[0x20:], "Test Game")
	require.NoError(t, os.WriteFile(filepath.Join(sys, "boot.bin"), boot, 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(sys, "bi2.bin"), make([]byte, DiscInfoSize), 0o644))

	app := make([]byte, apploaderHeaderSize+0x40+0x20)
	copy(app[0x00:], "2026/08/25")
	binary.BigEndian.PutUint32(app[0x14:], 0x40)
	binary.BigEndian.PutUint32(app[0x18:], 0x20)
	require.NoError(t, os.WriteFile(filepath.Join(sys, "apploader.img"), app, 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(sys, "main.dol"), make([]byte, dolHeaderSize), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(files, "a.dat"), bytes.Repeat([]byte{0xAA}, 100), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(files, "dir", "c.dat"), bytes.Repeat([]byte{0xCC}, 50), 0o644))
	return root
}

func buildTestImage(t *testing.T, root string, opts *BuildOptions) string {
	t.Helper()
	dest := filepath.Join(filepath.Dir(root), "game.iso")
	require.NoError(t, BuildImage(root, dest, opts))
	return dest
}

func unpadded() *BuildOptions {
	return &BuildOptions{PadToMaxSize: false}
}

func TestBuildImageGeometry(t *testing.T) {
	root := writeTestRoot(t)
	dest := buildTestImage(t, root, unpadded())

	img, err := os.Open(dest)
	require.NoError(t, err)
	defer img.Close()

	boot, err := ReadBootHeader(img)
	require.NoError(t, err)

	assert.Equal(t, "GTST01", boot.GameID())
	assert.Equal(t, "Test Game", boot.GameName())
	assert.True(t, boot.IsGameCube())

	// The code image lands on the 0x2000 boundary past the apploader
	// trailer (0x2440 + 0x20 rounds to 0x4000), the FST on the sector
	// boundary past the 0x100-byte code image.
	assert.Equal(t, uint32(0x4000), boot.DolOffset())
	assert.Equal(t, uint32(0x4800), boot.FSTOffset())

	// Four entries plus three NUL-terminated names: 48 + 16 bytes.
	assert.Equal(t, uint32(64), boot.FSTSize())
	assert.Equal(t, boot.FSTSize(), boot.FSTMaxSize())

	// a.dat packs directly after the FST; c.dat follows at the default
	// alignment.
	assert.Equal(t, uint32(0x4840), boot.FirstFileOffset())

	payload := make([]byte, 100)
	_, err = img.ReadAt(payload, 0x4840)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 100), payload)

	payload = make([]byte, 50)
	_, err = img.ReadAt(payload, 0x48A4)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xCC}, 50), payload)

	info, err := img.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(0x48A4+50), info.Size())
}

func TestBuildImagePadsToMaxSize(t *testing.T) {
	root := writeTestRoot(t)
	dest := buildTestImage(t, root, nil)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(GameCubeMaxSize), info.Size())
}

func TestBuildRespectsSidecarPolicy(t *testing.T) {
	root := writeTestRoot(t)
	cfg := &Config{
		GameName:  "Renamed Game",
		GameID:    "GNEW01",
		Version:   2,
		Alignment: map[string]uint32{"dir/*": 0x100},
		Exclude:   []string{"a.dat"},
	}
	require.NoError(t, cfg.Save(filepath.Join(root, "sys", configFileName)))

	opts := unpadded()
	opts.NewInfo = true
	dest := buildTestImage(t, root, opts)

	img, err := os.Open(dest)
	require.NoError(t, err)
	defer img.Close()

	boot, err := ReadBootHeader(img)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Game", boot.GameName())
	assert.Equal(t, "GNEW01", boot.GameID())
	assert.Equal(t, uint8(2), boot.Version())

	fstData := make([]byte, boot.FSTSize())
	_, err = img.ReadAt(fstData, int64(boot.FSTOffset()))
	require.NoError(t, err)
	tree, err := UnmarshalFST(fstData)
	require.NoError(t, err)

	assert.Nil(t, tree.Find("a.dat"), "excluded file never reaches the table")
	c := tree.Find("dir/c.dat")
	require.NotNil(t, c)
	off, ok := c.Offset()
	require.True(t, ok)
	assert.Zero(t, off%0x100)
	assert.Equal(t, uint64(boot.FirstFileOffset()), off)
}

func TestExtractImage(t *testing.T) {
	srcRoot := writeTestRoot(t)
	dest := buildTestImage(t, srcRoot, unpadded())

	outDir := t.TempDir()
	require.NoError(t, ExtractImage(dest, outDir, nil))
	layout := layoutFor(filepath.Join(outDir, "root"), RootDolphin)

	got, err := os.ReadFile(filepath.Join(layout.dataDir, "a.dat"))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 100), got)

	got, err = os.ReadFile(filepath.Join(layout.dataDir, "dir", "c.dat"))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xCC}, 50), got)

	// The extracted boot header is the image's, offsets included.
	img, err := os.ReadFile(dest)
	require.NoError(t, err)
	got, err = os.ReadFile(filepath.Join(layout.systemDir, "boot.bin"))
	require.NoError(t, err)
	assert.Equal(t, img[:BootHeaderSize], got)

	cfg, err := LoadConfig(layout.configPath())
	require.NoError(t, err)
	assert.Equal(t, "Test Game", cfg.GameName)
	assert.Equal(t, "GTST01", cfg.GameID)
	assert.Empty(t, cfg.Location, "positions are recorded only on request")
}

func TestBuildExtractBuildIsByteIdentical(t *testing.T) {
	srcRoot := writeTestRoot(t)
	first := buildTestImage(t, srcRoot, unpadded())

	outDir := t.TempDir()
	require.NoError(t, ExtractImage(first, outDir, &ExtractOptions{RecordPositions: true}))
	extractedRoot := filepath.Join(outDir, "root")

	cfg, err := LoadConfig(filepath.Join(extractedRoot, "sys", configFileName))
	require.NoError(t, err)
	assert.Len(t, cfg.Location, 2, "every file's offset is pinned")

	second := filepath.Join(outDir, "rebuilt.iso")
	require.NoError(t, BuildImage(extractedRoot, second, unpadded()))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildSizeGuard(t *testing.T) {
	root := writeTestRoot(t)
	dest := filepath.Join(filepath.Dir(root), "game.iso")

	b := NewImageBuilder(root, dest, unpadded())
	require.NoError(t, b.Load())
	b.maxSize = 0x5000

	err := b.Build()
	var tooLarge *FileSystemTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, uint64(0x5000), tooLarge.Max)
	assert.Greater(t, tooLarge.Computed, tooLarge.Max)

	// The guard fires before the destination is created.
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuildRejectsInvalidRoot(t *testing.T) {
	err := BuildImage(t.TempDir(), "out.iso", unpadded())
	assert.ErrorIs(t, err, ErrInvalidRoot)
}

func TestDetectRootKind(t *testing.T) {
	dolphin := writeTestRoot(t)
	assert.Equal(t, RootDolphin, DetectRootKind(dolphin))

	gcr := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(gcr, gcrSystemDir), 0o755))
	assert.Equal(t, RootGCR, DetectRootKind(gcr))

	assert.Equal(t, RootInvalid, DetectRootKind(t.TempDir()))
	assert.Equal(t, RootInvalid, DetectRootKind(filepath.Join(dolphin, "missing")))
}
