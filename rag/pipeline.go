package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const contextSeparator = "\n\n---\n\n"

// HybridPipeline embeds the query, searches the vector store, and
// optionally reranks by lexical overlap with the query.
type HybridPipeline struct {
	embedder EmbeddingModel
	store    VectorStore
	rerank   bool
	logger   *zap.Logger

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// NewHybridPipeline builds a retrieval pipeline over the given embedder
// and store.
func NewHybridPipeline(embedder EmbeddingModel, store VectorStore, rerank bool, logger *zap.Logger) *HybridPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridPipeline{
		embedder: embedder,
		store:    store,
		rerank:   rerank,
		logger:   logger.With(zap.String("component", "rag_pipeline")),
	}
}

// Index embeds and stores a batch of documents.
func (p *HybridPipeline) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vectors[i]
	}

	if err := p.store.Add(ctx, docs); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	p.logger.Debug("documents indexed", zap.Int("count", len(docs)))
	return nil
}

// Retrieve finds the documents most relevant to the query.
func (p *HybridPipeline) Retrieve(ctx context.Context, query string, opts SearchOptions) ([]RetrievalResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultSearchOptions().TopK
	}

	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := p.store.Search(ctx, vector, opts)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	if p.rerank {
		results = rerankByOverlap(query, results)
	}
	return results, nil
}

// BuildContext joins retrieved chunks into a single block, stopping
// before the token budget is exceeded.
func (p *HybridPipeline) BuildContext(results []RetrievalResult, maxTokens int) string {
	if len(results) == 0 {
		return ""
	}
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	var chunks []string
	used := 0
	for _, res := range results {
		chunk := res.Document.Content
		if res.Document.Source != "" {
			chunk = fmt.Sprintf("[%s]\n%s", res.Document.Source, res.Document.Content)
		}
		cost := p.countTokens(chunk)
		if used+cost > maxTokens && len(chunks) > 0 {
			break
		}
		chunks = append(chunks, chunk)
		used += cost
	}
	return strings.Join(chunks, contextSeparator)
}

// countTokens uses cl100k_base when the encoding is available and falls
// back to a character estimate otherwise.
func (p *HybridPipeline) countTokens(text string) int {
	p.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			p.logger.Warn("tokenizer unavailable, estimating token counts", zap.Error(err))
			return
		}
		p.enc = enc
	})
	if p.enc != nil {
		return len(p.enc.Encode(text, nil, nil))
	}
	return len(text)/4 + 1
}

// rerankByOverlap boosts results that share literal terms with the query.
// The vector score stays dominant; overlap only breaks near-ties.
func rerankByOverlap(query string, results []RetrievalResult) []RetrievalResult {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return results
	}

	type scored struct {
		res      RetrievalResult
		combined float64
	}
	ranked := make([]scored, len(results))
	for i, res := range results {
		content := strings.ToLower(res.Document.Content)
		matches := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				matches++
			}
		}
		overlap := float64(matches) / float64(len(terms))
		ranked[i] = scored{res: res, combined: res.Score*0.8 + overlap*0.2}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].combined > ranked[j].combined
	})

	out := make([]RetrievalResult, len(ranked))
	for i, s := range ranked {
		out[i] = s.res
	}
	return out
}
