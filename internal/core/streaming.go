package core

// streaming.go normalises the byte stream of a text sheet (CSV) before it is
// parsed:
//
//   - a byte order mark is consumed; UTF-16 files exported by Excel
//     ("Unicode Text") are decoded to UTF-8 according to their BOM
//   - invalid UTF-8 sequences are replaced with U+FFFD
//
// Both transforms stream, so memory stays bounded by the transformer buffers
// rather than the file size.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// NewSheetTextReader wraps r with BOM handling and UTF-8 sanitisation.
func NewSheetTextReader(r io.Reader) io.Reader {
	return transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(transform.Nop),
		runes.ReplaceIllFormed(),
	))
}
