package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestIndex(t *testing.T, embedder EmbeddingProvider) *Index {
	t.Helper()

	path := filepath.Join(t.TempDir(), "index.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	idx, err := NewIndex(path, embedder, logger)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Destroy() })

	return idx
}

func TestIndex_AddAndSearch_KeywordOnly(t *testing.T) {
	idx := createTestIndex(t, nil)
	ctx := context.Background()

	chunks := []string{
		"Diabetes is a chronic condition affecting blood sugar regulation.",
		"Regular exercise improves cardiovascular health and endurance.",
		"A balanced diet includes vegetables, proteins, and whole grains.",
	}
	require.NoError(t, idx.Add(ctx, chunks))
	assert.Equal(t, 3, idx.Len())

	fragments, err := idx.Search(ctx, "What is diabetes?", 2)
	require.NoError(t, err)
	require.NotEmpty(t, fragments)
	assert.Contains(t, fragments[0].Content, "Diabetes")
}

func TestIndex_AddAndSearch_WithEmbeddings(t *testing.T) {
	idx := createTestIndex(t, NewMockEmbeddingProvider(64))
	ctx := context.Background()

	chunks := []string{
		"The patient should take medication twice daily.",
		"Follow-up appointments happen every three months.",
	}
	require.NoError(t, idx.Add(ctx, chunks))

	fragments, err := idx.Search(ctx, "medication schedule", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, fragments)
}

func TestIndex_Add_Empty(t *testing.T) {
	idx := createTestIndex(t, nil)

	err := idx.Add(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestIndex_Search_NoMatchFallsBackToHead(t *testing.T) {
	idx := createTestIndex(t, nil)
	ctx := context.Background()

	chunks := []string{"first chunk content", "second chunk content"}
	require.NoError(t, idx.Add(ctx, chunks))

	fragments, err := idx.Search(ctx, "zzzzzz qqqqqq", 1)
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, "first chunk content", fragments[0].Content)
}

func TestIndex_Search_Closed(t *testing.T) {
	idx := createTestIndex(t, nil)
	require.NoError(t, idx.Add(context.Background(), []string{"content"}))
	require.NoError(t, idx.Close())

	_, err := idx.Search(context.Background(), "content", 1)
	assert.ErrorIs(t, err, ErrIndexClosed)
}

func TestIndex_Destroy_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	idx, err := NewIndex(path, nil, logger)
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), []string{"content"}))

	require.NoError(t, idx.Destroy())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFtsQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple words", "blood sugar", `"blood" OR "sugar"`},
		{"punctuation stripped", "What is diabetes?", `"What" OR "is" OR "diabetes"`},
		{"empty", "???", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ftsQuery(tt.input))
		})
	}
}
