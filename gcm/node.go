package gcm

import (
	"sort"
	"strings"
)

// NodeKind discriminates the two node variants. The set is closed; code
// switching on it handles both cases exhaustively.
type NodeKind uint8

const (
	// NodeFile is a leaf carrying payload bytes inside the image.
	NodeFile NodeKind = iota
	// NodeFolder is an interior node owning an unordered child set.
	NodeFolder
)

// Node is one entry of the in-memory disc filesystem tree.
//
// A folder owns its children; the parent pointer is a non-owning
// back-reference used only for upward traversal and path reconstruction.
// Sibling names are unique under case-insensitive comparison while the
// original casing is preserved for serialization.
type Node struct {
	name   string
	kind   NodeKind
	parent *Node
	active bool

	// file fields
	size      uint64
	alignment uint32
	offset    uint64
	hasOffset bool
	pinned    bool

	// folder fields
	children []*Node
}

// NewFile returns an active file node with the default alignment and no
// assigned offset.
func NewFile(name string, size uint64) *Node {
	return &Node{
		name:      name,
		kind:      NodeFile,
		size:      size,
		alignment: DefaultAlignment,
		active:    true,
	}
}

// NewFolder returns an active folder node with no children.
func NewFolder(name string) *Node {
	return &Node{
		name:   name,
		kind:   NodeFolder,
		active: true,
	}
}

// NewRoot returns the distinguished root folder. The root itself is never
// serialized as a regular FST entry and its name does not contribute to
// any child's path.
func NewRoot() *Node {
	return NewFolder(".")
}

// Name returns the node's path segment with its original casing.
func (n *Node) Name() string { return n.name }

// Kind returns the node variant tag.
func (n *Node) Kind() NodeKind { return n.kind }

// IsFile reports whether the node is a file.
func (n *Node) IsFile() bool { return n.kind == NodeFile }

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.kind == NodeFolder }

// IsRoot reports whether the node is the distinguished root folder.
func (n *Node) IsRoot() bool { return n.kind == NodeFolder && n.parent == nil }

// Parent returns the owning folder, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Size returns the file's payload size in bytes. Folders report 0.
func (n *Node) Size() uint64 {
	if n.kind != NodeFile {
		return 0
	}
	return n.size
}

// Active reports whether the node participates in allocation and
// serialization. Inactive nodes stay in the tree but are skipped.
func (n *Node) Active() bool { return n.active }

// SetActive marks the node included or excluded.
func (n *Node) SetActive(active bool) { n.active = active }

// Alignment returns the file's placement alignment in bytes.
func (n *Node) Alignment() uint32 {
	if n.kind != NodeFile {
		return 0
	}
	return n.alignment
}

// SetAlignment sets the file's placement alignment, rounding values that
// are not powers of two up to the next power of two. Zero resets to the
// default. No effect on folders.
func (n *Node) SetAlignment(align uint32) {
	if n.kind != NodeFile {
		return
	}
	if align == 0 {
		n.alignment = DefaultAlignment
		return
	}
	n.alignment = nextPow2(align)
}

// Offset returns the file's byte offset inside the image and whether one
// has been assigned or pinned.
func (n *Node) Offset() (uint64, bool) {
	return n.offset, n.hasOffset
}

// Pinned reports whether the offset is an explicit placement override
// rather than an allocator assignment.
func (n *Node) Pinned() bool { return n.pinned }

// PinOffset fixes the file at an absolute byte offset, bypassing the
// allocator's automatic placement.
func (n *Node) PinOffset(offset uint64) {
	if n.kind != NodeFile {
		return
	}
	n.offset = offset
	n.hasOffset = true
	n.pinned = true
}

// ClearOffset discards any assigned or pinned offset.
func (n *Node) ClearOffset() {
	n.offset = 0
	n.hasOffset = false
	n.pinned = false
}

// setRecordedOffset stores an allocator-assigned or FST-recorded offset
// without marking it as a manual override.
func (n *Node) setRecordedOffset(offset uint64) {
	n.offset = offset
	n.hasOffset = true
	n.pinned = false
}

// Path returns the node's path relative to the root, using forward
// slashes. The root contributes nothing; its own path is "".
func (n *Node) Path() string {
	if n.IsRoot() {
		return ""
	}
	segments := []string{n.name}
	for p := n.parent; p != nil && !p.IsRoot(); p = p.parent {
		segments = append(segments, p.name)
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, "/")
}

// AddChild attaches child to the folder, detaching it from any previous
// parent. A sibling whose name matches case-insensitively is replaced.
func (n *Node) AddChild(child *Node) {
	if n.kind != NodeFolder || child == nil {
		return
	}
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	for i, c := range n.children {
		if strings.EqualFold(c.name, child.name) {
			c.parent = nil
			n.children[i] = child
			child.parent = n
			return
		}
	}
	n.children = append(n.children, child)
	child.parent = n
}

// RemoveChild detaches child from the folder.
func (n *Node) RemoveChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Child returns the direct child whose name matches case-insensitively,
// or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.children {
		if strings.EqualFold(c.name, name) {
			return c
		}
	}
	return nil
}

// Children returns the folder's children in canonical serialization
// order: sorted case-insensitively by name (ASCII-upper convention).
// This order is the layout contract shared by the allocator, the FST
// codec and the image pipeline.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToUpper(out[i].name) < strings.ToUpper(out[j].name)
	})
	return out
}

// Walk visits every descendant of n in canonical pre-order: a folder
// before its children, siblings in Children() order. When activeOnly is
// set, inactive nodes and their whole subtrees are skipped. The walk
// stops at the first error.
func (n *Node) Walk(activeOnly bool, fn func(*Node) error) error {
	for _, child := range n.Children() {
		if activeOnly && !child.active {
			continue
		}
		if err := fn(child); err != nil {
			return err
		}
		if child.kind == NodeFolder {
			if err := child.Walk(activeOnly, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// EntryCount returns the number of files and folders reachable from n,
// excluding n itself. This is the FST record count for the subtree; the
// root record of a serialized table adds one on top.
func (n *Node) EntryCount(activeOnly bool) uint32 {
	var count uint32
	_ = n.Walk(activeOnly, func(*Node) error {
		count++
		return nil
	})
	return count
}

// DataSize returns the payload budget of the subtree: every file's size
// rounded up to a sector boundary, with the total rounded once more.
// This mirrors how the disc allocates file data in whole sectors and
// feeds the whole-image size guard.
func (n *Node) DataSize(activeOnly bool) uint64 {
	var total uint64
	_ = n.Walk(activeOnly, func(node *Node) error {
		if node.kind == NodeFile {
			total += alignUp(node.size, SectorSize)
		}
		return nil
	})
	return alignUp(total, SectorSize)
}

// Files returns every file in the subtree in canonical order.
func (n *Node) Files(activeOnly bool) []*Node {
	var files []*Node
	_ = n.Walk(activeOnly, func(node *Node) error {
		if node.kind == NodeFile {
			files = append(files, node)
		}
		return nil
	})
	return files
}

// Find resolves a slash-separated path relative to n using
// case-insensitive segment comparison. Empty path and "." return n.
func (n *Node) Find(path string) *Node {
	path = strings.Trim(path, "/")
	if path == "" || path == "." {
		return n
	}
	node := n
	for _, segment := range strings.Split(path, "/") {
		if node.kind != NodeFolder {
			return nil
		}
		node = node.Child(segment)
		if node == nil {
			return nil
		}
	}
	return node
}
