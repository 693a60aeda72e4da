package gcm

import "sort"

// AssignOffsets walks the tree in canonical order and assigns every
// active, non-pinned file a byte offset: the cursor starts at startPos
// (the end of the fixed system area), is rounded up to each file's
// alignment, and advances by the file's size. Pinned files keep their
// explicit offsets and do not move the cursor.
//
// The returned value is the smallest offset over all active files,
// assigned or pinned — the boot header's "first file offset" field. When
// the tree holds no active files it falls back to startPos.
//
// The walk is idempotent: re-running it over an unchanged tree and
// policy reproduces the same offsets.
func AssignOffsets(root *Node, startPos uint64) uint64 {
	cursor := startPos
	minOffset := uint64(0)
	haveMin := false

	fold := func(off uint64) {
		if !haveMin || off < minOffset {
			minOffset = off
			haveMin = true
		}
	}

	_ = root.Walk(false, func(n *Node) error {
		if n.Kind() != NodeFile {
			return nil
		}
		if !n.Active() {
			// Excluded files occupy no image space. Drop any stale
			// assignment but keep manual pins for regeneration.
			if !n.Pinned() {
				n.ClearOffset()
			}
			return nil
		}
		if n.Pinned() {
			off, _ := n.Offset()
			fold(off)
			return nil
		}
		cursor = alignUp(cursor, uint64(n.Alignment()))
		n.setRecordedOffset(cursor)
		fold(cursor)
		cursor += n.Size()
		return nil
	})

	if !haveMin {
		return startPos
	}
	return minOffset
}

// InferAlignment guesses the alignment a file was built with from its
// recorded offset and the end of the previous file in ascending-offset
// order. The guess is the largest power of two <= MaxAlignment that
// evenly divides the file's own offset, capped by the largest power of
// two that evenly divides the gap between the previous end and this
// offset — whichever is smaller. A zero gap, or a gap no power of two
// divides, yields the default of 4.
//
// Best effort only: several alignments can explain the same gap, so the
// result may be smaller than the alignment originally configured.
func InferAlignment(offset, prevEnd uint64) uint32 {
	gap := offset - prevEnd
	if gap == 0 {
		return DefaultAlignment
	}

	offsetAlign := uint32(DefaultAlignment)
	for mask := uint64(MaxAlignment - 1); mask >= DefaultAlignment-1; mask >>= 1 {
		if offset&mask == 0 {
			offsetAlign = uint32(mask + 1)
			break
		}
	}

	for mask := uint64(MaxAlignment - 1); mask >= DefaultAlignment-1; mask >>= 1 {
		if gap&mask == 0 {
			if gapAlign := uint32(mask + 1); gapAlign < offsetAlign {
				return gapAlign
			}
			return offsetAlign
		}
	}
	return DefaultAlignment
}

// filesByOffset returns the subtree's files that carry a recorded
// offset, sorted ascending by offset. This is the visitation order for
// alignment inference and payload extraction, which follows the image
// layout rather than the tree.
func filesByOffset(root *Node) []*Node {
	files := root.Files(false)
	placed := files[:0]
	for _, f := range files {
		if _, ok := f.Offset(); ok {
			placed = append(placed, f)
		}
	}
	sort.SliceStable(placed, func(i, j int) bool {
		oi, _ := placed[i].Offset()
		oj, _ := placed[j].Offset()
		return oi < oj
	})
	return placed
}
