package gcm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BuildOptions configures an image build.
type BuildOptions struct {
	// NewInfo overwrites the boot header's identity fields (game name,
	// game id, disc id, version) from the sidecar config before
	// building. The placement tables are always taken from the sidecar.
	NewInfo bool
	// PadToMaxSize zero-pads the image to the platform's fixed disc
	// size. Disabling it yields a truncated image ending after the last
	// payload byte.
	PadToMaxSize bool
	// Observer receives progress callbacks. May be nil.
	Observer Observer
}

// DefaultBuildOptions returns the standard configuration: full-size
// padded output, no identity rewrite.
func DefaultBuildOptions() *BuildOptions {
	return &BuildOptions{PadToMaxSize: true}
}

// ImageBuilder turns an extracted root directory back into a disc
// image: system area first, then the FST, then file payloads at their
// allocated offsets.
type ImageBuilder struct {
	rootDir string
	dest    string
	opts    *BuildOptions

	layout    rootLayout
	boot      *BootHeader
	discInfo  *DiscInfo
	apploader *Apploader
	dol       *DOL
	config    *Config
	policy    *PlacementPolicy
	tree      *Node
	maxSize   uint64
	loaded    bool
}

// NewImageBuilder returns a builder for the root at rootDir writing to
// dest. If opts is nil, DefaultBuildOptions() is used.
func NewImageBuilder(rootDir, dest string, opts *BuildOptions) *ImageBuilder {
	if opts == nil {
		opts = DefaultBuildOptions()
	}
	return &ImageBuilder{rootDir: rootDir, dest: dest, opts: opts}
}

// Tree exposes the scanned node tree after Load.
func (b *ImageBuilder) Tree() *Node { return b.tree }

// Boot exposes the boot header after Load.
func (b *ImageBuilder) Boot() *BootHeader { return b.boot }

// Load reads the root's system files and sidecar config and scans the
// payload directory into a node tree. Build calls it implicitly.
func (b *ImageBuilder) Load() error {
	kind := DetectRootKind(b.rootDir)
	if kind == RootInvalid {
		return fmt.Errorf("%q: %w", b.rootDir, ErrInvalidRoot)
	}
	b.layout = layoutFor(b.rootDir, kind)

	if err := b.readSystemFiles(); err != nil {
		return err
	}

	b.config = &Config{}
	b.policy = NewPlacementPolicy()
	configPath := b.layout.configPath()
	if _, err := os.Stat(configPath); err == nil {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		b.config = cfg
		b.policy = cfg.Policy()
		if b.opts.NewInfo {
			b.boot.SetGameName(cfg.GameName)
			b.boot.SetGameID(cfg.GameID)
			b.boot.SetDiskID(cfg.DiskID)
			b.boot.SetVersion(cfg.Version)
		}
	}

	tree, err := NewTreeFromDirectory(b.layout.dataDir, b.policy)
	if err != nil {
		return err
	}
	b.tree = tree
	b.maxSize = b.boot.MaxImageSize()
	b.loaded = true
	return nil
}

// readSystemFiles loads the boot header, disc info, apploader and code
// image from the root's system directory.
func (b *ImageBuilder) readSystemFiles() error {
	openSystem := func(name string) (*os.File, error) {
		f, err := os.Open(b.layout.systemFile(name))
		if err != nil {
			return nil, fmt.Errorf("opening system file: %w", err)
		}
		return f, nil
	}

	if b.layout.kind == RootGCR {
		// GCR roots merge boot.bin and bi2.bin into ISO.hdr.
		f, err := openSystem(b.layout.headerName)
		if err != nil {
			return err
		}
		defer f.Close()
		if b.boot, err = ReadBootHeader(f); err != nil {
			return err
		}
		if b.discInfo, err = ReadDiscInfo(f); err != nil {
			return err
		}
	} else {
		f, err := openSystem(b.layout.bootName)
		if err != nil {
			return err
		}
		b.boot, err = ReadBootHeader(f)
		f.Close()
		if err != nil {
			return err
		}

		if f, err = openSystem(b.layout.discInfoName); err != nil {
			return err
		}
		b.discInfo, err = ReadDiscInfo(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	f, err := openSystem(b.layout.apploaderName)
	if err != nil {
		return err
	}
	b.apploader, err = ReadApploader(f)
	f.Close()
	if err != nil {
		return err
	}

	if f, err = openSystem(b.layout.dolName); err != nil {
		return err
	}
	b.dol, err = ReadDOL(f)
	f.Close()
	return err
}

// Build assembles the image. The whole-image size guard runs before any
// byte is written; on failure the destination is never created.
func (b *ImageBuilder) Build() (err error) {
	if !b.loaded {
		if err = b.Load(); err != nil {
			return err
		}
	}

	// System-area geometry. The code image lands on a 0x2000 boundary
	// past the apploader trailer; the FST on a sector boundary past the
	// code image.
	dolOffset := alignUp(uint64(ApploaderOffset)+uint64(b.apploader.TrailerSize()), 0x2000)
	fstOffset := alignUp(dolOffset+b.dol.Size(), SectorSize)
	fstSize, err := FSTSize(b.tree)
	if err != nil {
		return err
	}

	minOffset := AssignOffsets(b.tree, fstOffset+uint64(fstSize))

	projected := alignUp(fstOffset+uint64(fstSize), SectorSize) + b.tree.DataSize(true)
	if projected > b.maxSize {
		return &FileSystemTooLargeError{Computed: projected, Max: b.maxSize}
	}

	b.boot.SetDolOffset(uint32(dolOffset))
	b.boot.SetFSTOffset(uint32(fstOffset))
	b.boot.SetFSTSize(fstSize)
	b.boot.SetFSTMaxSize(fstSize)
	b.boot.SetFirstFileOffset(uint32(minOffset))

	fst, err := MarshalFST(b.tree)
	if err != nil {
		return err
	}
	if uint32(len(fst)) != fstSize {
		return fmt.Errorf("FST length %d does not match sized length %d", len(fst), fstSize)
	}

	out, err := os.Create(b.dest)
	if err != nil {
		return fmt.Errorf("creating image %q: %w", b.dest, err)
	}
	defer func() {
		if closeErr := out.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing image: %w", closeErr)
		}
	}()

	p := progress{b.opts.Observer}
	p.jobStart(b.maxSize)

	if err = b.writeSystemArea(out, dolOffset, fstOffset, fst, p); err != nil {
		return err
	}
	if err = b.writePayloads(out, p); err != nil {
		return err
	}
	if err = b.finalize(out, p); err != nil {
		return err
	}

	p.jobEnd()
	return nil
}

// writeSystemArea writes the headers, apploader, code image and FST.
// Alignment gaps are left as holes; they read back as zeros.
func (b *ImageBuilder) writeSystemArea(out *os.File, dolOffset, fstOffset uint64, fst []byte, p progress) error {
	p.task("boot.bin", BootHeaderSize)
	if _, err := b.boot.WriteTo(out); err != nil {
		return fmt.Errorf("writing boot header: %w", err)
	}
	p.done()

	p.task("bi2.bin", DiscInfoSize)
	if _, err := b.discInfo.WriteTo(out); err != nil {
		return fmt.Errorf("writing disc info: %w", err)
	}
	p.done()

	p.task("apploader.img", b.apploader.Size())
	if _, err := b.apploader.WriteTo(out); err != nil {
		return fmt.Errorf("writing apploader: %w", err)
	}
	p.done()

	p.task("main.dol", b.dol.Size())
	if _, err := out.Seek(int64(dolOffset), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to code image offset %#x: %w", dolOffset, err)
	}
	if _, err := b.dol.WriteTo(out); err != nil {
		return fmt.Errorf("writing code image: %w", err)
	}
	p.done()

	p.task("fst.bin", uint64(len(fst)))
	if _, err := out.Seek(int64(fstOffset), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to FST offset %#x: %w", fstOffset, err)
	}
	if _, err := out.Write(fst); err != nil {
		return fmt.Errorf("writing FST: %w", err)
	}
	p.done()
	return nil
}

// writePayloads copies every active file to its allocated offset.
func (b *ImageBuilder) writePayloads(out *os.File, p progress) error {
	return b.tree.Walk(true, func(n *Node) error {
		if n.Kind() != NodeFile {
			return nil
		}
		offset, ok := n.Offset()
		if !ok {
			return fmt.Errorf("file %q has no assigned offset", n.Path())
		}
		p.task(n.Path(), n.Size())

		src, err := os.Open(filepath.Join(b.layout.dataDir, filepath.FromSlash(n.Path())))
		if err != nil {
			return fmt.Errorf("opening payload %q: %w", n.Path(), err)
		}
		defer src.Close()

		if _, err := out.Seek(int64(offset), io.SeekStart); err != nil {
			return fmt.Errorf("seeking to %#x for %q: %w", offset, n.Path(), err)
		}
		written, err := io.Copy(out, src)
		if err != nil {
			return fmt.Errorf("writing payload %q: %w", n.Path(), err)
		}
		if uint64(written) != n.Size() {
			return fmt.Errorf("payload %q changed size: scanned %d, copied %d", n.Path(), n.Size(), written)
		}
		p.done()
		return nil
	})
}

// finalize grows the image to the platform's fixed size. The extension
// is sparse; the bytes read back as zeros either way.
func (b *ImageBuilder) finalize(out *os.File, p progress) error {
	if !b.opts.PadToMaxSize {
		return nil
	}
	size, err := out.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seeking to image end: %w", err)
	}
	if uint64(size) < b.maxSize {
		p.task("padding", b.maxSize-uint64(size))
		if err := out.Truncate(int64(b.maxSize)); err != nil {
			return fmt.Errorf("padding image to %d bytes: %w", b.maxSize, err)
		}
		p.done()
	}
	return nil
}

// BuildImage builds the root at rootDir into an image at dest.
func BuildImage(rootDir, dest string, opts *BuildOptions) error {
	return NewImageBuilder(rootDir, dest, opts).Build()
}

// ExtractOptions configures an image extraction.
type ExtractOptions struct {
	// RecordPositions dumps every file's recorded offset into the
	// sidecar's location table, pinning the exact layout for rebuilds
	// instead of relying on the alignment inference heuristic.
	RecordPositions bool
	// Observer receives progress callbacks. May be nil.
	Observer Observer
}

// ImageExtractor unpacks a disc image into a Dolphin-style root
// directory and persists the placement metadata as a sidecar config.
type ImageExtractor struct {
	imagePath string
	destDir   string
	opts      *ExtractOptions
}

// NewImageExtractor returns an extractor writing the root to
// destDir/root. If opts is nil, zero-value options are used.
func NewImageExtractor(imagePath, destDir string, opts *ExtractOptions) *ImageExtractor {
	if opts == nil {
		opts = &ExtractOptions{}
	}
	return &ImageExtractor{imagePath: imagePath, destDir: destDir, opts: opts}
}

// Extract reads the image, reconstructs the node tree from its FST,
// infers per-file alignment from the recorded offsets, writes system
// files and payloads to the host filesystem and saves the sidecar.
func (e *ImageExtractor) Extract() error {
	img, err := os.Open(e.imagePath)
	if err != nil {
		return fmt.Errorf("opening image %q: %w", e.imagePath, err)
	}
	defer img.Close()

	boot, err := ReadBootHeader(img)
	if err != nil {
		return err
	}
	discInfo, err := ReadDiscInfo(img)
	if err != nil {
		return err
	}
	// The reader now sits at 0x2440, the apploader's fixed offset.
	apploader, err := ReadApploader(img)
	if err != nil {
		return err
	}

	if _, err = img.Seek(int64(boot.DolOffset()), io.SeekStart); err != nil {
		return fmt.Errorf("seeking to code image: %w", err)
	}
	dol, err := ReadDOL(img)
	if err != nil {
		return err
	}

	fstData := make([]byte, boot.FSTSize())
	if _, err = img.ReadAt(fstData, int64(boot.FSTOffset())); err != nil {
		return fmt.Errorf("reading FST at %#x: %w", boot.FSTOffset(), err)
	}
	tree, err := UnmarshalFST(fstData)
	if err != nil {
		return err
	}

	// Re-derive each file's alignment from the offset deltas, visiting
	// files in image order. The FST region itself seeds the previous
	// end. Best effort: see InferAlignment.
	ordered := filesByOffset(tree)
	prevEnd := uint64(boot.FSTOffset()) + uint64(boot.FSTSize())
	for _, n := range ordered {
		offset, _ := n.Offset()
		n.SetAlignment(InferAlignment(offset, prevEnd))
		prevEnd = offset + n.Size()
	}

	layout := layoutFor(filepath.Join(e.destDir, "root"), RootDolphin)
	if err := os.MkdirAll(layout.systemDir, 0o755); err != nil {
		return fmt.Errorf("creating system directory: %w", err)
	}
	if err := os.MkdirAll(layout.dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	p := progress{e.opts.Observer}
	var payloadTotal uint64
	for _, n := range ordered {
		payloadTotal += n.Size()
	}
	sysTotal := uint64(ApploaderOffset) + apploader.Size() + dol.Size() + uint64(len(fstData))
	p.jobStart(sysTotal + payloadTotal)

	if err := e.writeSystemFiles(layout, boot, discInfo, apploader, dol, fstData, p); err != nil {
		return err
	}
	if err := e.writePayloads(img, layout, tree, ordered, p); err != nil {
		return err
	}
	if err := e.writeConfig(layout, boot, tree, ordered); err != nil {
		return err
	}

	p.jobEnd()
	return nil
}

// writeSystemFiles dumps the system area components as loose files.
func (e *ImageExtractor) writeSystemFiles(layout rootLayout, boot *BootHeader, discInfo *DiscInfo, apploader *Apploader, dol *DOL, fst []byte, p progress) error {
	write := func(name string, size uint64, data []byte) error {
		p.task(name, size)
		if err := os.WriteFile(layout.systemFile(name), data, 0o644); err != nil {
			return fmt.Errorf("writing system file %q: %w", name, err)
		}
		p.done()
		return nil
	}

	if err := write(layout.bootName, BootHeaderSize, boot.Bytes()); err != nil {
		return err
	}
	if err := write(layout.discInfoName, DiscInfoSize, discInfo.Bytes()); err != nil {
		return err
	}
	if err := write(layout.apploaderName, apploader.Size(), apploader.Bytes()); err != nil {
		return err
	}
	if err := write(layout.dolName, dol.Size(), dol.Bytes()); err != nil {
		return err
	}
	return write(layout.fstName, uint64(len(fst)), fst)
}

// writePayloads copies file data out of the image in ascending offset
// order, creating the folder hierarchy first.
func (e *ImageExtractor) writePayloads(img *os.File, layout rootLayout, tree *Node, ordered []*Node, p progress) error {
	err := tree.Walk(false, func(n *Node) error {
		if n.Kind() != NodeFolder {
			return nil
		}
		if err := os.MkdirAll(filepath.Join(layout.dataDir, filepath.FromSlash(n.Path())), 0o755); err != nil {
			return fmt.Errorf("creating directory %q: %w", n.Path(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, n := range ordered {
		offset, _ := n.Offset()
		p.task(n.Path(), n.Size())

		dest, err := os.Create(filepath.Join(layout.dataDir, filepath.FromSlash(n.Path())))
		if err != nil {
			return fmt.Errorf("creating payload %q: %w", n.Path(), err)
		}
		_, err = io.Copy(dest, io.NewSectionReader(img, int64(offset), int64(n.Size())))
		if closeErr := dest.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("extracting payload %q: %w", n.Path(), err)
		}
		p.done()
	}
	return nil
}

// writeConfig regenerates the placement policy from the final tree
// state and persists the sidecar.
func (e *ImageExtractor) writeConfig(layout rootLayout, boot *BootHeader, tree *Node, ordered []*Node) error {
	policy := NewPlacementPolicy()
	policy.RegenerateFrom(tree)
	if e.opts.RecordPositions {
		for _, n := range ordered {
			offset, _ := n.Offset()
			policy.SetOffset(n.Path(), offset)
		}
	}

	cfg := &Config{
		GameName: boot.GameName(),
		GameID:   boot.GameID(),
		DiskID:   boot.DiskID(),
		Version:  boot.Version(),
	}
	cfg.SetPolicy(policy)
	return cfg.Save(layout.configPath())
}

// ExtractImage unpacks the image at imagePath into destDir/root.
func ExtractImage(imagePath, destDir string, opts *ExtractOptions) error {
	return NewImageExtractor(imagePath, destDir, opts).Extract()
}
