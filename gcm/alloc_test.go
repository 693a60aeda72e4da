package gcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignOffsetsScenario(t *testing.T) {
	// Three files: a.dat (100 B), sys/b.dat (excluded), dir/c.dat
	// (50 B, alignment 32).
	root := buildSampleTree(t)
	root.Find("sys").SetActive(false)
	root.Find("sys/b.dat").SetActive(false)

	start := uint64(0x10000)
	minOffset := AssignOffsets(root, start)

	aOff, ok := root.Find("a.dat").Offset()
	require.True(t, ok)
	assert.Equal(t, start, aOff, "first file lands at the system-area end")

	cOff, ok := root.Find("dir/c.dat").Offset()
	require.True(t, ok)
	assert.Equal(t, alignUp(start+100, 32), cOff, "next free address rounded to the file's alignment")
	assert.Zero(t, cOff%32)

	_, ok = root.Find("sys/b.dat").Offset()
	assert.False(t, ok, "excluded files get no offset")

	assert.Equal(t, aOff, minOffset)
}

func TestAssignOffsetsIsIdempotent(t *testing.T) {
	root := buildSampleTree(t)
	min1 := AssignOffsets(root, 0x8000)
	aOff1, _ := root.Find("a.dat").Offset()
	cOff1, _ := root.Find("dir/c.dat").Offset()

	min2 := AssignOffsets(root, 0x8000)
	aOff2, _ := root.Find("a.dat").Offset()
	cOff2, _ := root.Find("dir/c.dat").Offset()

	assert.Equal(t, min1, min2)
	assert.Equal(t, aOff1, aOff2)
	assert.Equal(t, cOff1, cOff2)
}

func TestAssignOffsetsPinnedDoesNotShiftOthers(t *testing.T) {
	root := buildSampleTree(t)
	start := uint64(0x10000)

	before := AssignOffsets(root, start)
	aOff, _ := root.Find("a.dat").Offset()
	cOff, _ := root.Find("dir/c.dat").Offset()
	_ = before

	// Pin b.dat far outside the automatic range.
	root.Find("sys/b.dat").PinOffset(0x40000000)
	minOffset := AssignOffsets(root, start)

	aOff2, _ := root.Find("a.dat").Offset()
	cOff2, _ := root.Find("dir/c.dat").Offset()
	assert.Equal(t, aOff, aOff2)
	assert.Equal(t, cOff, cOff2)

	// The minimum folds assigned and pinned offsets together.
	assert.Equal(t, aOff, minOffset)

	// A pin below the cursor becomes the minimum.
	root.Find("sys/b.dat").PinOffset(0x9000)
	minOffset = AssignOffsets(root, start)
	assert.Equal(t, uint64(0x9000), minOffset)
}

func TestAssignOffsetsAlignmentMonotonicity(t *testing.T) {
	root := NewRoot()
	aligns := []uint32{4, 8, 0x20, 0x100, 0x8000}
	names := []string{"a", "b", "c", "d", "e"}
	for i, n := range names {
		f := NewFile(n+".bin", uint64(i*7+1))
		f.SetAlignment(aligns[i])
		root.AddChild(f)
	}
	AssignOffsets(root, 0x2441) // deliberately misaligned start

	for i, n := range names {
		off, ok := root.Find(n + ".bin").Offset()
		require.True(t, ok)
		assert.Zerof(t, off%uint64(aligns[i]), "file %s offset %#x alignment %#x", n, off, aligns[i])
	}
}

func TestAssignOffsetsEmptyTree(t *testing.T) {
	root := NewRoot()
	assert.Equal(t, uint64(0x4800), AssignOffsets(root, 0x4800))
}

func TestInferAlignment(t *testing.T) {
	tests := []struct {
		name    string
		offset  uint64
		prevEnd uint64
		want    uint32
	}{
		{"zero gap", 0x10000, 0x10000, 4},
		{"gap caps the offset alignment", 0x8000, 0x7000, 0x1000},
		{"offset caps the gap alignment", 0x7020, 0x5020, 0x20},
		{"both allow the maximum", 0x10000, 0x8000, 0x8000},
		{"odd gap falls back to default", 0x10001, 0x10000, 4},
		{"gap of four", 0x10004, 0x10000, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferAlignment(tt.offset, tt.prevEnd))
		})
	}
}

func TestInferAlignmentIsCapped(t *testing.T) {
	// Both offset and gap divide by 0x10000; the heuristic still
	// answers at most MaxAlignment.
	assert.Equal(t, uint32(MaxAlignment), InferAlignment(0x40000, 0x30000))
}

func TestFilesByOffset(t *testing.T) {
	root := buildSampleTree(t)
	// Recorded offsets deliberately out of tree order.
	root.Find("a.dat").PinOffset(0x30000)
	root.Find("dir/c.dat").PinOffset(0x10000)
	root.Find("sys/b.dat").PinOffset(0x20000)

	ordered := filesByOffset(root)
	require.Len(t, ordered, 3)
	assert.Equal(t, "dir/c.dat", ordered[0].Path())
	assert.Equal(t, "sys/b.dat", ordered[1].Path())
	assert.Equal(t, "a.dat", ordered[2].Path())
}
