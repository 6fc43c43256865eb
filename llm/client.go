// Package llm wraps chat-completion providers behind one small client
// used by the reasoner and the response generator.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cortexstack/cortex/reasoning"
)

// Provider selects the backing API.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderMinimax   Provider = "minimax"
)

const anthropicVersion = "2023-06-01"

// Config configures the completion client.
type Config struct {
	Provider    Provider      `yaml:"provider" json:"provider"`
	APIKey      string        `yaml:"api_key" json:"api_key"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	Model       string        `yaml:"model" json:"model"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultConfig returns the stock Anthropic settings.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderAnthropic,
		Model:       "claude-3-haiku-20240307",
		Temperature: 0.7,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}

// Client is a chat-completion client for one configured provider.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient validates the config and applies defaults.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	def := DefaultConfig()
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	switch cfg.Provider {
	case ProviderAnthropic, ProviderMinimax:
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		switch cfg.Provider {
		case ProviderAnthropic:
			cfg.BaseURL = "https://api.anthropic.com"
		case ProviderMinimax:
			cfg.BaseURL = "https://api.minimax.chat"
		}
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "llm_client"), zap.String("provider", string(cfg.Provider))),
	}, nil
}

// Complete sends one prompt and returns the model's text reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	var text string
	var err error
	switch c.cfg.Provider {
	case ProviderMinimax:
		text, err = c.completeMinimax(ctx, prompt)
	default:
		text, err = c.completeAnthropic(ctx, prompt)
	}
	if err != nil {
		c.logger.Error("completion failed", zap.Error(err))
		return "", err
	}
	c.logger.Debug("completion finished",
		zap.String("model", c.cfg.Model),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}

// AsReasonerFunc adapts the client for the reasoning loop.
func (c *Client) AsReasonerFunc() reasoning.CompletionFunc {
	return c.Complete
}

func (c *Client) completeAnthropic(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
	if err := c.post(ctx, "/v1/messages", headers, body, &parsed); err != nil {
		return "", err
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic response contained no text block")
}

func (c *Client) completeMinimax(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
	}
	if err := c.post(ctx, "/v1/text/chatcompletion_v2", headers, body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("minimax response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("completion request returned %d: %s", resp.StatusCode, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode completion response: %w", err)
	}
	return nil
}
