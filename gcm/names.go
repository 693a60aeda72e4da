package gcm

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/japanese"
)

// isASCII reports whether every byte is below 0x80.
func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// encodeNodeName produces the on-disc bytes of a node name. Names are
// written as Shift-JIS, of which plain ASCII is a byte-identical subset.
func encodeNodeName(name string) ([]byte, error) {
	if isASCII([]byte(name)) {
		return []byte(name), nil
	}
	out, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("encoding name %q as Shift-JIS: %w", name, err)
	}
	return out, nil
}

// decodeNodeName turns on-disc name bytes back into a string. ASCII is
// taken as-is; anything else is decoded as Shift-JIS, falling back to a
// lossy substitution so one undecodable name never fails a whole load.
func decodeNodeName(b []byte) string {
	if isASCII(b) {
		return string(b)
	}
	if out, err := japanese.ShiftJIS.NewDecoder().Bytes(b); err == nil {
		return string(out)
	}
	return strings.ToValidUTF8(string(b), "�")
}
