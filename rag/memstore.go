package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process vector store using cosine similarity.
// It serves tests and small corpora; production deployments use Weaviate.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

// Add stores documents, generating ids where absent.
func (s *MemoryStore) Add(_ context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %q has no embedding", doc.ID)
		}
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		s.docs[doc.ID] = doc
	}
	return nil
}

// Search returns the closest documents by cosine similarity.
func (s *MemoryStore) Search(_ context.Context, vector []float64, opts SearchOptions) ([]RetrievalResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultSearchOptions().TopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]RetrievalResult, 0, len(s.docs))
	for _, doc := range s.docs {
		score := cosineSimilarity(vector, doc.Embedding)
		if score < opts.MinScore {
			continue
		}
		results = append(results, RetrievalResult{Document: doc, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

// Delete removes one document. Unknown ids are ignored.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// Len reports how many documents are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
