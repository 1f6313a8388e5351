// Package mediatype classifies uploaded file content by sniffing it.
package mediatype

import (
	"bytes"
	"unicode/utf8"
)

// Media types the default guesser can return.
const (
	Gzip        = "application/gzip"
	PNG         = "image/png"
	TextPlain   = "text/plain"
	OctetStream = "application/octet-stream"
)

// Guesser guesses the media type of a byte buffer.
type Guesser interface {
	Guess(content []byte) string
}

// signature is a magic byte prefix identifying a binary format
type signature struct {
	mediaType string
	magic     []byte
}

// signatures are checked in order, the first match wins.
var signatures = []signature{
	{mediaType: Gzip, magic: []byte{0x1F, 0x8B}},
	{mediaType: PNG, magic: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
}

// SniffGuesser is the default Guesser. It only knows the formats in its
// signature table and otherwise distinguishes text from binary content.
type SniffGuesser struct{}

// NewGuesser returns the default Guesser.
func NewGuesser() SniffGuesser {
	return SniffGuesser{}
}

// Guess implements Guesser. It never fails.
func (SniffGuesser) Guess(content []byte) string {
	for _, sig := range signatures {
		if bytes.HasPrefix(content, sig.magic) {
			return sig.mediaType
		}
	}

	if isControlFreeText(content) {
		return TextPlain
	}

	return OctetStream
}

// isControlFreeText reports whether content is valid UTF-8 without any
// C0 control code or DEL. Empty content qualifies.
func isControlFreeText(content []byte) bool {
	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		if r == utf8.RuneError && size <= 1 {
			return false
		}
		if r <= 0x1F || r == 0x7F {
			return false
		}
		content = content[size:]
	}
	return true
}
