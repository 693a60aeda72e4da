package gcm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// The File System Table is the binary index the console's loader reads
// to locate file data. Everything is big-endian.
//
// Entry 0 is the root folder record: type 0x01, name offset 0, parent 0,
// then the total entry count (root inclusive). Every other node is one
// 12-byte record in canonical pre-order:
//
//	offset 0  type        u8   0x00 file, 0x01 folder
//	offset 1  name offset u24  into the string table
//	offset 4  file: data offset u32 / folder: parent entry index u32
//	offset 8  file: size u32        / folder: end entry index u32
//
// A folder's end index is one past its last descendant, letting readers
// skip a subtree without recursion. The string table starts right after
// the records, at entryCount*12: each name's bytes plus a NUL, appended
// in record order. The whole table is padded to a 4-byte boundary.

const fstRootPreambleLen = 8

var fstRootPreamble = [fstRootPreambleLen]byte{0x01, 0, 0, 0, 0, 0, 0, 0}

// fstEncoder threads the serialization state explicitly through the
// recursive record walk: the growing record region, the growing string
// table and the next entry index.
type fstEncoder struct {
	records []byte
	names   []byte
	next    uint32
}

// MarshalFST serializes a tree whose active files already carry
// offsets. Only active nodes are written; the root itself contributes
// the fixed entry-0 record.
func MarshalFST(root *Node) ([]byte, error) {
	total := root.EntryCount(true) + 1

	enc := &fstEncoder{
		records: make([]byte, 0, int(total)*fstEntrySize),
		next:    1,
	}
	var rootRec [fstEntrySize]byte
	copy(rootRec[:], fstRootPreamble[:])
	binary.BigEndian.PutUint32(rootRec[8:12], total)
	enc.records = append(enc.records, rootRec[:]...)

	for _, child := range root.Children() {
		if !child.Active() {
			continue
		}
		if err := enc.encodeNode(child, 0); err != nil {
			return nil, err
		}
	}
	if enc.next != total {
		return nil, fmt.Errorf("FST entry counter ended at %d, expected %d", enc.next, total)
	}

	out := append(enc.records, enc.names...)
	if pad := int(alignUp(uint64(len(out)), 4)) - len(out); pad > 0 {
		out = append(out, make([]byte, pad)...)
	}
	return out, nil
}

// encodeNode appends the record and name of n, then of its active
// descendants, patching the folder end index after the subtree returns.
func (e *fstEncoder) encodeNode(n *Node, parentIndex uint32) error {
	index := e.next
	e.next++

	nameOffset := len(e.names)
	if nameOffset > 0xFFFFFF {
		return fmt.Errorf("string table offset %#x for %q exceeds 24 bits", nameOffset, n.Path())
	}
	name, err := encodeNodeName(n.Name())
	if err != nil {
		return err
	}
	e.names = append(e.names, name...)
	e.names = append(e.names, 0)

	var rec [fstEntrySize]byte
	rec[1] = byte(nameOffset >> 16)
	rec[2] = byte(nameOffset >> 8)
	rec[3] = byte(nameOffset)

	switch n.Kind() {
	case NodeFile:
		offset, ok := n.Offset()
		if !ok {
			return fmt.Errorf("file %q has no assigned offset", n.Path())
		}
		rec[0] = 0x00
		binary.BigEndian.PutUint32(rec[4:8], uint32(offset))
		binary.BigEndian.PutUint32(rec[8:12], uint32(n.Size()))
		e.records = append(e.records, rec[:]...)

	case NodeFolder:
		rec[0] = 0x01
		binary.BigEndian.PutUint32(rec[4:8], parentIndex)
		recPos := len(e.records)
		e.records = append(e.records, rec[:]...)
		for _, child := range n.Children() {
			if !child.Active() {
				continue
			}
			if err := e.encodeNode(child, index); err != nil {
				return err
			}
		}
		// One past the last descendant: the entry counter after the
		// whole subtree has been written.
		binary.BigEndian.PutUint32(e.records[recPos+8:recPos+12], e.next)
	}
	return nil
}

// FSTSize returns the byte length MarshalFST will produce for the tree,
// without assigning offsets first. The pipeline needs this to place the
// data region before serializing.
func FSTSize(root *Node) (uint32, error) {
	size := uint64(root.EntryCount(true)+1) * fstEntrySize
	var nameErr error
	_ = root.Walk(true, func(n *Node) error {
		name, err := encodeNodeName(n.Name())
		if err != nil {
			nameErr = err
			return err
		}
		size += uint64(len(name)) + 1
		return nil
	})
	if nameErr != nil {
		return 0, nameErr
	}
	return uint32(alignUp(size, 4)), nil
}

// fstDecoder tracks the sequential read of the record region.
type fstDecoder struct {
	records []byte
	names   []byte
	total   uint32
	next    uint32
}

// UnmarshalFST parses an FST blob back into a node tree. Files carry
// their recorded data offsets (as regular assignments, not manual pins).
func UnmarshalFST(data []byte) (*Node, error) {
	if len(data) < fstEntrySize {
		return nil, fmt.Errorf("%w: table shorter than one record", ErrInvalidFST)
	}
	if !bytes.Equal(data[:fstRootPreambleLen], fstRootPreamble[:]) {
		return nil, fmt.Errorf("%w: bad root record preamble % X", ErrInvalidFST, data[:fstRootPreambleLen])
	}
	total := binary.BigEndian.Uint32(data[8:12])
	if total == 0 {
		return nil, fmt.Errorf("%w: zero entry count", ErrInvalidFST)
	}
	recordsEnd := uint64(total) * fstEntrySize
	if recordsEnd > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %d entries do not fit in %d bytes", ErrInvalidFST, total, len(data))
	}

	dec := &fstDecoder{
		records: data[:recordsEnd],
		names:   data[recordsEnd:],
		total:   total,
		next:    1,
	}
	root := NewRoot()
	for dec.next < dec.total {
		child, err := dec.decodeNode()
		if err != nil {
			return nil, err
		}
		root.AddChild(child)
	}
	return root, nil
}

// decodeNode reads the record at the running entry index, recursing into
// folder children until the folder's end index is reached.
func (d *fstDecoder) decodeNode() (*Node, error) {
	index := d.next
	d.next++

	rec := d.records[index*fstEntrySize : index*fstEntrySize+fstEntrySize]
	kind := rec[0]
	nameOffset := uint32(rec[1])<<16 | uint32(rec[2])<<8 | uint32(rec[3])
	fieldA := binary.BigEndian.Uint32(rec[4:8])
	fieldB := binary.BigEndian.Uint32(rec[8:12])

	name, err := d.readName(nameOffset)
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", index, err)
	}

	switch kind {
	case 0x00:
		node := NewFile(name, uint64(fieldB))
		node.setRecordedOffset(uint64(fieldA))
		return node, nil

	case 0x01:
		end := fieldB
		if end < d.next || end > d.total {
			return nil, fmt.Errorf("%w: folder %q entry %d has end index %d outside (%d, %d]",
				ErrInvalidFST, name, index, end, d.next, d.total)
		}
		node := NewFolder(name)
		for d.next < end {
			child, err := d.decodeNode()
			if err != nil {
				return nil, err
			}
			node.AddChild(child)
		}
		return node, nil

	default:
		return nil, fmt.Errorf("%w: entry %d has unknown type %#02x", ErrInvalidFST, index, kind)
	}
}

// readName resolves a NUL-terminated name from the string table.
func (d *fstDecoder) readName(offset uint32) (string, error) {
	if uint64(offset) >= uint64(len(d.names)) {
		return "", fmt.Errorf("%w: name offset %#x outside string table", ErrInvalidFST, offset)
	}
	end := bytes.IndexByte(d.names[offset:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: unterminated name at offset %#x", ErrInvalidFST, offset)
	}
	return decodeNodeName(d.names[offset : int(offset)+end]), nil
}
