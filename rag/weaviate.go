package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const weaviateClass = "CortexMemory"

// WeaviateConfig locates a Weaviate instance.
type WeaviateConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"api_key" json:"api_key"`
	Class   string        `yaml:"class" json:"class"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// WeaviateStore is a VectorStore backed by Weaviate's REST and GraphQL
// endpoints.
type WeaviateStore struct {
	cfg    WeaviateConfig
	client *http.Client
	logger *zap.Logger
}

// NewWeaviateStore validates the config and builds the HTTP client.
func NewWeaviateStore(cfg WeaviateConfig, logger *zap.Logger) (*WeaviateStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("weaviate base URL is required")
	}
	if cfg.Class == "" {
		cfg.Class = weaviateClass
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeaviateStore{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "weaviate_store")),
	}, nil
}

// Add batch-inserts documents via /v1/batch/objects.
func (s *WeaviateStore) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	objects := make([]map[string]any, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		objects[i] = map[string]any{
			"class":  s.cfg.Class,
			"id":     id,
			"vector": doc.Embedding,
			"properties": map[string]any{
				"content": doc.Content,
				"source":  doc.Source,
			},
		}
	}

	var resp []struct {
		Result struct {
			Errors *struct {
				Error []struct {
					Message string `json:"message"`
				} `json:"error"`
			} `json:"errors"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/v1/batch/objects", map[string]any{"objects": objects}, &resp); err != nil {
		return fmt.Errorf("weaviate batch insert failed: %w", err)
	}
	for _, obj := range resp {
		if obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("weaviate batch insert rejected: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Search runs a GraphQL nearVector query.
func (s *WeaviateStore) Search(ctx context.Context, vector []float64, opts SearchOptions) ([]RetrievalResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultSearchOptions().TopK
	}

	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query vector: %w", err)
	}
	query := fmt.Sprintf(`{
  Get {
    %s(nearVector: {vector: %s, certainty: %g}, limit: %d) {
      content
      source
      _additional { id certainty }
    }
  }
}`, s.cfg.Class, vecJSON, opts.MinScore, opts.TopK)

	var resp struct {
		Data map[string]map[string][]struct {
			Content    string `json:"content"`
			Source     string `json:"source"`
			Additional struct {
				ID        string  `json:"id"`
				Certainty float64 `json:"certainty"`
			} `json:"_additional"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := s.do(ctx, http.MethodPost, "/v1/graphql", map[string]any{"query": query}, &resp); err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search rejected: %s", resp.Errors[0].Message)
	}

	hits := resp.Data["Get"][s.cfg.Class]
	results := make([]RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, RetrievalResult{
			Document: Document{
				ID:      hit.Additional.ID,
				Content: hit.Content,
				Source:  hit.Source,
			},
			Score: hit.Additional.Certainty,
		})
	}
	return results, nil
}

// Delete removes one object by id.
func (s *WeaviateStore) Delete(ctx context.Context, id string) error {
	path := fmt.Sprintf("/v1/objects/%s/%s", s.cfg.Class, id)
	if err := s.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("weaviate delete failed: %w", err)
	}
	return nil
}

func (s *WeaviateStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
