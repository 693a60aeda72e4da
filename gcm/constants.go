package gcm

const (
	// SectorSize is the disc I/O granularity. The FST region and the
	// per-file budget used by the size guard are rounded to it.
	SectorSize = 0x800

	// BootHeaderSize is the fixed length of boot.bin at image offset 0.
	BootHeaderSize = 0x440
	// DiscInfoSize is the fixed length of bi2.bin at image offset 0x440.
	DiscInfoSize = 0x2000
	// ApploaderOffset is where the apploader image begins on disc.
	ApploaderOffset = BootHeaderSize + DiscInfoSize // 0x2440

	// apploaderHeaderSize covers the build date, entry point, loader size
	// and trailer size fields that precede the loader code.
	apploaderHeaderSize = 0x20

	// fstEntrySize is the fixed width of one FST record.
	fstEntrySize = 12

	// DefaultAlignment applies to any file without a configured alignment.
	DefaultAlignment = 4
	// MaxAlignment bounds the alignment inference heuristic.
	MaxAlignment = 0x8000

	// GameCubeMaxSize is the full size of a GameCube disc image (GCM).
	GameCubeMaxSize = 1459978240
	// WiiMaxSize is the full size of a single-layer Wii disc image.
	WiiMaxSize = 4699979776

	// gcMagic sits at boot header offset 0x1C, wiiMagic at 0x18.
	gcMagic  = 0xC2339F3D
	wiiMagic = 0x5D1C9EA3
)

// alignUp rounds v up to the next multiple of align. align must be a
// power of two.
func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// nextPow2 rounds n up to the next power of two. Zero stays zero.
func nextPow2(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
