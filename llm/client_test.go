package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, provider Provider, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		Provider: provider,
		APIKey:   "test-key",
		BaseURL:  srv.URL,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(Config{APIKey: "k", Provider: "openrouter"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, client.cfg.Provider)
	assert.Equal(t, "claude-3-haiku-20240307", client.cfg.Model)
	assert.InDelta(t, 0.7, client.cfg.Temperature, 1e-9)
	assert.Equal(t, 1024, client.cfg.MaxTokens)
}

func TestCompleteAnthropic(t *testing.T) {
	client := newTestClient(t, ProviderAnthropic, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-haiku-20240307", body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		assert.Equal(t, "hello", body.Messages[0].Content)

		w.Write([]byte(`{"content":[{"type":"text","text":"hi there"}]}`))
	})

	text, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
}

func TestCompleteAnthropicNoTextBlock(t *testing.T) {
	client := newTestClient(t, ProviderAnthropic, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"tool_use"}]}`))
	})

	_, err := client.Complete(context.Background(), "hello")
	assert.Error(t, err)
}

func TestCompleteMinimax(t *testing.T) {
	client := newTestClient(t, ProviderMinimax, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text/chatcompletion_v2", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"content":"minimax reply"}}]}`))
	})

	text, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "minimax reply", text)
}

func TestCompleteServerError(t *testing.T) {
	client := newTestClient(t, ProviderAnthropic, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	})

	_, err := client.Complete(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestAsReasonerFunc(t *testing.T) {
	client := newTestClient(t, ProviderAnthropic, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"text","text":"step thought"}]}`))
	})

	fn := client.AsReasonerFunc()
	text, err := fn(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "step thought", text)
}
