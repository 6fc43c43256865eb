// Package rag implements retrieval-augmented generation: embedding
// documents, searching a vector store, and assembling a token-bounded
// context block for the generator.
package rag

import "context"

// Document is one chunk of source material held by a vector store.
type Document struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Source    string         `json:"source,omitempty"`
	Embedding []float64      `json:"embedding,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RetrievalResult is one scored hit from a vector search.
type RetrievalResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// SearchOptions tune a retrieval query.
type SearchOptions struct {
	TopK     int     `json:"top_k"`
	MinScore float64 `json:"min_score"`
}

// DefaultSearchOptions returns the stock retrieval settings.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{TopK: 5, MinScore: 0.5}
}

// EmbeddingModel turns text into vectors.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorStore persists documents and answers nearest-neighbour queries.
type VectorStore interface {
	Add(ctx context.Context, docs []Document) error
	Search(ctx context.Context, vector []float64, opts SearchOptions) ([]RetrievalResult, error)
	Delete(ctx context.Context, id string) error
}

// Retriever is the orchestrator-facing retrieval surface.
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts SearchOptions) ([]RetrievalResult, error)
	BuildContext(results []RetrievalResult, maxTokens int) string
}
