package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	chunks := SplitText("a short document", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0])
}

func TestSplitText_Empty(t *testing.T) {
	assert.Nil(t, SplitText("", 1000, 200))
	assert.Nil(t, SplitText("   \n\t  ", 1000, 200))
}

func TestSplitText_OverlappingWindows(t *testing.T) {
	text := strings.Repeat("abcdefghij", 50) // 500 chars
	chunks := SplitText(text, 100, 20)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
	}

	// consecutive windows share the overlap region
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	assert.Equal(t, string(first[len(first)-20:]), string(second[:20]))
}

func TestSplitText_CoversWholeText(t *testing.T) {
	text := strings.Repeat("x", 257)
	chunks := SplitText(text, 100, 0)

	var total int
	for _, c := range chunks {
		total += len(c)
	}
	assert.Equal(t, 257, total)
}

func TestSplitText_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("日本語のテキスト", 40)
	chunks := SplitText(text, 100, 10)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
	}
}

func TestSplitText_BadOverlapIgnored(t *testing.T) {
	text := strings.Repeat("y", 300)
	chunks := SplitText(text, 100, 100) // overlap >= size falls back to 0

	require.Len(t, chunks, 3)
}
