package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"shorter than cap", "hello", 10, "hello"},
		{"exact cap", "hello", 5, "hello"},
		{"ascii cut", "hello", 3, "hel"},
		{"empty", "", 5, ""},
		{"zero cap", "hello", 0, ""},
		{"negative cap", "hello", -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateText(tt.input, tt.max))
		})
	}
}

func TestTruncateText_NeverSplitsRunes(t *testing.T) {
	// "£" is 2 bytes, "€" is 3; every cut point must land on a boundary.
	input := strings.Repeat("a£b€", 50)
	for max := 0; max <= len(input); max++ {
		got := truncateText(input, max)
		assert.True(t, utf8.ValidString(got), "invalid UTF-8 at cap %d", max)
		assert.LessOrEqual(t, len(got), max)
	}
}

func TestEmbeddingTextTruncationKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("€", maxEmbedChars) // 3 bytes each, well past the cap
	got := truncateText(long, maxEmbedChars)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxEmbedChars)
}
