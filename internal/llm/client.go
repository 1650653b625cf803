package llm

import (
	"context"
	"net/http"

	"fitcoach/coach-backend/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// Client is the narrow chat-completion surface the orchestrator needs. It
// exists so tests can swap in a scripted fake without a network.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error)
}

// ChatStream yields incremental completion chunks. Recv returns io.EOF when
// the model is done.
type ChatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

type openAIClient struct {
	inner *openai.Client
}

// New builds a Client backed by the OpenAI-compatible endpoint from config.
func New(cfg config.OpenAIConfig) Client {
	return &openAIClient{inner: openai.NewClientWithConfig(newClientConfig(cfg))}
}

func newClientConfig(cfg config.OpenAIConfig) openai.ClientConfig {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.RequestTimeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return clientConfig
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return c.inner.CreateChatCompletion(ctx, req)
}

func (c *openAIClient) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (ChatStream, error) {
	stream, err := c.inner.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
