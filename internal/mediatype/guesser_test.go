package mediatype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuess(t *testing.T) {
	g := NewGuesser()

	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{"png signature", []byte("\x89PNG\r\n\x1a\nrest of image"), PNG},
		{"gzip magic", []byte{0x1F, 0x8B, 0x08, 0x00}, Gzip},
		{"empty", []byte(""), TextPlain},
		{"ascii text", []byte("test"), TextPlain},
		{"utf-8 text", []byte("Grüße, 世界"), TextPlain},
		{"nul byte", []byte("\x00"), OctetStream},
		{"newline is a control code", []byte("line\n"), OctetStream},
		{"del", []byte("a\x7fb"), OctetStream},
		{"invalid utf-8", []byte{0xC3, 0x28}, OctetStream},
		{"truncated png signature", []byte("\x89PNG"), OctetStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, g.Guess(tt.content))
		})
	}
}

func TestGuess_MagicTakesPrecedenceOverText(t *testing.T) {
	// 0x1F 0x8B is not valid UTF-8 text either, but order must not depend on that.
	content := append([]byte{0x1F, 0x8B}, []byte("plain")...)
	require.Equal(t, Gzip, NewGuesser().Guess(content))
}
