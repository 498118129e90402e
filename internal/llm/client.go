// Package llm talks to an OpenAI-compatible endpoint (OpenAI, Ollama,
// vLLM) for chat completions and embeddings.
package llm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/liliang-cn/askpaper/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL        = "http://localhost:11434/v1"
	DefaultChatModel      = "qwen2.5:7b"
	DefaultEmbeddingModel = "nomic-embed-text"
)

// ClientConfig holds configuration for the OpenAI-compatible client
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	MaxRetries     int
	RetryDelay     time.Duration
}

// Client wraps go-openai with retry logic. It implements domain.Completer
// and domain.Embedder.
type Client struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	maxRetries     int
	retryDelay     time.Duration
	logger         *zap.Logger
}

// NewClient creates a client. An empty API key is allowed for local
// servers that do not check it.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL

	return &Client{
		client:         openai.NewClientWithConfig(oc),
		chatModel:      cfg.ChatModel,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		logger:         logger,
	}
}

// WithMaxRetries returns a copy sharing the HTTP client but retrying n times
func (c *Client) WithMaxRetries(n int) *Client {
	if n < 0 {
		n = 0
	}
	clone := *c
	clone.maxRetries = n
	return &clone
}

// Complete sends req as a single user message and returns the reply text
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, Backoff(c.retryDelay, attempt)); err != nil {
				return "", fmt.Errorf("completion cancelled: %w", err)
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
			},
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			c.logger.Debug("Chat completion failed", zap.Int("attempt", attempt+1), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("attempt %d: no choices returned", attempt+1)
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("chat completion failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Embed returns the embedding of a single text
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request, returning vectors in input order
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, Backoff(c.retryDelay, attempt)); err != nil {
				return nil, fmt.Errorf("embedding cancelled: %w", err)
			}
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: c.embeddingModel,
		})
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			c.logger.Debug("Embedding request failed", zap.Int("attempt", attempt+1), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(resp.Data) != len(texts) {
			lastErr = fmt.Errorf("attempt %d: got %d embeddings for %d inputs", attempt+1, len(resp.Data), len(texts))
			continue
		}

		data := resp.Data
		sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
		out := make([][]float32, len(data))
		for i, d := range data {
			out[i] = d.Embedding
		}
		return out, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.maxRetries+1, lastErr)
}
