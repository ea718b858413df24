package provider

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Config holds the completion backend configuration.
type Config struct {
	BaseURL     string
	APIKey      string
	ChatModel   string
	MaxTokens   int
	Temperature float32
	MaxRetries  int
	Timeout     time.Duration
}

// DefaultConfig returns the default backend configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "https://api.openai.com/v1",
		ChatModel:   "gpt-4o-mini",
		MaxTokens:   2000,
		Temperature: 0.7,
		MaxRetries:  3,
		Timeout:     30 * time.Second,
	}
}

// OpenAI implements CompletionProvider against any OpenAI-compatible
// chat completion API.
type OpenAI struct {
	client *openai.Client
	cfg    Config
}

var _ CompletionProvider = (*OpenAI)(nil)

// NewOpenAI creates a provider for the configured backend. No network
// I/O happens until the first call.
func NewOpenAI(cfg Config) *OpenAI {
	def := DefaultConfig()
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}
}

// Complete performs an atomic chat completion with bounded retries.
func (p *OpenAI) Complete(ctx context.Context, prompt, system string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       p.cfg.ChatModel,
		Messages:    messages,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}

	var result string
	err := p.doWithRetry(ctx, func(callCtx context.Context) error {
		resp, err := p.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return ErrEmptyCompletion
		}
		result = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", &Error{Op: "complete", Err: err}
	}
	return result, nil
}

// CompleteStream performs a streaming chat completion. The whole call,
// including the stream, is bounded by the configured timeout; expiry
// surfaces as a provider error on the sequence.
func (p *OpenAI) CompleteStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	req := openai.ChatCompletionRequest{
		Model:       p.cfg.ChatModel,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Stream:      true,
	}

	return func(yield func(string, error) bool) {
		streamCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()

		stream, err := p.client.CreateChatCompletionStream(streamCtx, req)
		if err != nil {
			yield("", &Error{Op: "stream open", Err: err})
			return
		}
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				slog.Debug("failed to close completion stream", "error", closeErr)
			}
		}()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", &Error{Op: "stream recv", Err: err})
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}

// doWithRetry runs fn with exponential backoff. Each attempt gets its
// own timeout; context cancellation stops the retry loop.
func (p *OpenAI) doWithRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * 500 * time.Millisecond
			slog.Debug("retrying completion call", "attempt", attempt+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
