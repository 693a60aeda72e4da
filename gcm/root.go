package gcm

import (
	"os"
	"path/filepath"
	"strings"
)

// Two extracted-root conventions are supported. Dolphin-style roots keep
// system files under sys/ and payload data under files/; GCR-style roots
// keep system files in a "&&systemdata" directory next to the payload
// data itself.
const (
	dolphinSystemDir = "sys"
	dolphinDataDir   = "files"
	gcrSystemDir     = "&&systemdata"

	configFileName = ".config.json"
)

// RootKind identifies the on-disk layout of an extracted root.
type RootKind int

const (
	// RootInvalid is a directory matching neither layout.
	RootInvalid RootKind = iota
	// RootDolphin has sys/ and files/ subdirectories.
	RootDolphin
	// RootGCR has a &&systemdata subdirectory.
	RootGCR
)

// rootLayout resolves the paths and system file names of a root.
type rootLayout struct {
	kind      RootKind
	systemDir string
	dataDir   string

	// System file names differ between the two conventions. GCR merges
	// boot.bin and bi2.bin into one ISO.hdr.
	bootName      string // empty for GCR (merged header)
	discInfoName  string // ^
	headerName    string // GCR merged header, empty for Dolphin
	apploaderName string
	dolName       string
	fstName       string
}

// DetectRootKind inspects dir's immediate subdirectories.
func DetectRootKind(dir string) RootKind {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return RootInvalid
	}
	var hasSys, hasFiles, hasGCR bool
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		switch strings.ToLower(e.Name()) {
		case dolphinSystemDir:
			hasSys = true
		case dolphinDataDir:
			hasFiles = true
		case gcrSystemDir:
			hasGCR = true
		}
	}
	switch {
	case hasGCR:
		return RootGCR
	case hasSys && hasFiles:
		return RootDolphin
	default:
		return RootInvalid
	}
}

// layoutFor returns the layout of a root of the given kind.
func layoutFor(rootDir string, kind RootKind) rootLayout {
	switch kind {
	case RootGCR:
		return rootLayout{
			kind:          RootGCR,
			systemDir:     filepath.Join(rootDir, gcrSystemDir),
			dataDir:       rootDir,
			headerName:    "ISO.hdr",
			apploaderName: "AppLoader.ldr",
			dolName:       "Start.dol",
			fstName:       "Game.toc",
		}
	default:
		return rootLayout{
			kind:          RootDolphin,
			systemDir:     filepath.Join(rootDir, dolphinSystemDir),
			dataDir:       filepath.Join(rootDir, dolphinDataDir),
			bootName:      "boot.bin",
			discInfoName:  "bi2.bin",
			apploaderName: "apploader.img",
			dolName:       "main.dol",
			fstName:       "fst.bin",
		}
	}
}

// configPath is the sidecar location inside the system directory.
func (l rootLayout) configPath() string {
	return filepath.Join(l.systemDir, configFileName)
}

func (l rootLayout) systemFile(name string) string {
	return filepath.Join(l.systemDir, name)
}
