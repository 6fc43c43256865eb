package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEmbedder maps known texts to fixed vectors.
type stubEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestPipelineIndexAndRetrieve(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"goroutines are lightweight": {1, 0, 0},
		"channels pass values":       {0, 1, 0},
		"how do goroutines work":     {0.9, 0.1, 0},
	}}
	store := NewMemoryStore()
	p := NewHybridPipeline(embedder, store, false, zap.NewNop())
	ctx := context.Background()

	docs := []Document{
		{ID: "d1", Content: "goroutines are lightweight", Source: "go-book"},
		{ID: "d2", Content: "channels pass values", Source: "go-book"},
	}
	require.NoError(t, p.Index(ctx, docs))
	assert.Equal(t, 2, store.Len())

	results, err := p.Retrieve(ctx, "how do goroutines work", SearchOptions{TopK: 1, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].Document.ID)
	assert.Greater(t, results[0].Score, 0.9)
}

func TestPipelineRetrieveDefaultsTopK(t *testing.T) {
	embedder := &stubEmbedder{}
	store := NewMemoryStore()
	p := NewHybridPipeline(embedder, store, false, zap.NewNop())
	ctx := context.Background()

	docs := make([]Document, 8)
	for i := range docs {
		docs[i] = Document{ID: fmt.Sprintf("d%d", i), Content: "filler"}
	}
	require.NoError(t, p.Index(ctx, docs))

	results, err := p.Retrieve(ctx, "anything", SearchOptions{MinScore: 0.5})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestPipelineEmbedErrorPropagates(t *testing.T) {
	embedder := &stubEmbedder{err: fmt.Errorf("quota exceeded")}
	p := NewHybridPipeline(embedder, NewMemoryStore(), false, zap.NewNop())

	_, err := p.Retrieve(context.Background(), "q", DefaultSearchOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestPipelineRerankPrefersLexicalOverlap(t *testing.T) {
	results := []RetrievalResult{
		{Document: Document{ID: "a", Content: "completely unrelated text"}, Score: 0.80},
		{Document: Document{ID: "b", Content: "kubernetes pod scheduling guide"}, Score: 0.79},
	}
	ranked := rerankByOverlap("kubernetes pod scheduling", results)
	assert.Equal(t, "b", ranked[0].Document.ID)
}

func TestBuildContextFormatsChunks(t *testing.T) {
	p := NewHybridPipeline(&stubEmbedder{}, NewMemoryStore(), false, zap.NewNop())

	results := []RetrievalResult{
		{Document: Document{Content: "first chunk", Source: "doc-a"}},
		{Document: Document{Content: "second chunk"}},
	}
	block := p.BuildContext(results, 2000)
	parts := strings.Split(block, contextSeparator)
	require.Len(t, parts, 2)
	assert.Equal(t, "[doc-a]\nfirst chunk", parts[0])
	assert.Equal(t, "second chunk", parts[1])
}

func TestBuildContextHonorsTokenBudget(t *testing.T) {
	p := NewHybridPipeline(&stubEmbedder{}, NewMemoryStore(), false, zap.NewNop())

	big := strings.Repeat("lorem ipsum dolor ", 200)
	results := []RetrievalResult{
		{Document: Document{Content: big}},
		{Document: Document{Content: big}},
		{Document: Document{Content: big}},
	}
	block := p.BuildContext(results, 50)

	// The first chunk is always included even when oversized; the budget
	// stops later chunks from piling on.
	assert.Equal(t, 1, strings.Count(block, big))
}

func TestBuildContextEmptyResults(t *testing.T) {
	p := NewHybridPipeline(&stubEmbedder{}, NewMemoryStore(), false, zap.NewNop())
	assert.Empty(t, p.BuildContext(nil, 1000))
}

func TestMemoryStoreMinScoreAndDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []Document{
		{ID: "near", Content: "a", Embedding: []float64{1, 0}},
		{ID: "far", Content: "b", Embedding: []float64{0, 1}},
	}))

	results, err := store.Search(ctx, []float64{1, 0}, SearchOptions{TopK: 10, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].Document.ID)

	require.NoError(t, store.Delete(ctx, "near"))
	results, err = store.Search(ctx, []float64{1, 0}, SearchOptions{TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreRejectsMissingEmbedding(t *testing.T) {
	store := NewMemoryStore()
	err := store.Add(context.Background(), []Document{{ID: "x", Content: "no vector"}})
	assert.Error(t, err)
}
