package gcm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NewTreeFromDirectory builds a node tree from a host directory. File
// sizes come from the filesystem; alignment, explicit offsets and
// exclusions come from policy (nil means defaults). Entries matching an
// exclusion glob are still inserted, just marked inactive.
//
// A top-level "&&systemdata" directory is skipped: GCR-style roots keep
// their system files there, alongside the payload data.
func NewTreeFromDirectory(dir string, policy *PlacementPolicy) (*Node, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving source directory %q: %w", dir, err)
	}
	root := NewRoot()
	if err := scanDirectory(absDir, root, "", policy, true); err != nil {
		return nil, err
	}
	return root, nil
}

// scanDirectory recursively populates parent from diskDir. treePath is
// parent's path relative to the tree root ("" at the top).
func scanDirectory(diskDir string, parent *Node, treePath string, policy *PlacementPolicy, top bool) error {
	entries, err := os.ReadDir(diskDir)
	if err != nil {
		return fmt.Errorf("reading directory %q: %w", diskDir, err)
	}
	// Scan in canonical order so repeated builds see identical trees.
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToUpper(entries[i].Name()) < strings.ToUpper(entries[j].Name())
	})

	for _, entry := range entries {
		if top && strings.EqualFold(entry.Name(), gcrSystemDir) {
			continue
		}
		childPath := entry.Name()
		if treePath != "" {
			childPath = treePath + "/" + entry.Name()
		}

		switch {
		case entry.IsDir():
			child := NewFolder(entry.Name())
			if policy != nil && policy.IsExcluded(childPath) {
				child.SetActive(false)
			}
			parent.AddChild(child)
			if err := scanDirectory(filepath.Join(diskDir, entry.Name()), child, childPath, policy, false); err != nil {
				return err
			}

		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				return fmt.Errorf("getting info for %q: %w", childPath, err)
			}
			child := NewFile(entry.Name(), uint64(info.Size()))
			if policy != nil {
				child.SetAlignment(policy.AlignmentFor(childPath))
				if off, ok := policy.OffsetFor(childPath); ok {
					child.PinOffset(off)
				}
				if policy.IsExcluded(childPath) {
					child.SetActive(false)
				}
			}
			parent.AddChild(child)

		default:
			return fmt.Errorf("scanning %q: %w", childPath, ErrInvalidEntry)
		}
	}
	return nil
}
