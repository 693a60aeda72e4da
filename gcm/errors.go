package gcm

import (
	"errors"
	"fmt"
)

// ErrInvalidEntry reports a filesystem entry that is neither a regular
// file nor a directory (symlinks, devices, sockets) during a tree scan.
var ErrInvalidEntry = errors.New("entry is not a regular file or directory")

// ErrInvalidFST reports a malformed File System Table during
// deserialization.
var ErrInvalidFST = errors.New("invalid FST")

// ErrInvalidRoot reports a directory that is neither a Dolphin-style nor
// a GCR-style extracted root.
var ErrInvalidRoot = errors.New("not a valid root directory")

// FileSystemTooLargeError reports that the projected image exceeds the
// platform's fixed disc size. It is raised before any bytes are written.
type FileSystemTooLargeError struct {
	Computed uint64
	Max      uint64
}

func (e *FileSystemTooLargeError) Error() string {
	return fmt.Sprintf("projected image size %d exceeds the disc maximum of %d", e.Computed, e.Max)
}
