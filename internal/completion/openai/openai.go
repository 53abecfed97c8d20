package openai

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"kbrag/internal/domain"
	"kbrag/internal/llm"
)

// Client implements domain.Completer on an OpenAI-compatible chat endpoint.
type Client struct {
	api        *openai.Client
	model      string
	maxRetries int
}

// Config configures the chat completion client.
type Config struct {
	Model      string
	MaxRetries int
}

func NewClient(api *openai.Client, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{api: api, model: cfg.Model, maxRetries: cfg.MaxRetries}
}

// Complete returns the full reply text. An empty reply is an error.
func (c *Client) Complete(ctx context.Context, messages []domain.Message, temperature float32) (string, error) {
	var content string
	err := llm.Retry(ctx, c.maxRetries, func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, c.request(messages, temperature, false))
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return domain.ErrEmptyCompletion
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", &domain.CompletionError{Op: "complete", Err: err}
	}
	if strings.TrimSpace(content) == "" {
		return "", &domain.CompletionError{Op: "complete", Err: domain.ErrEmptyCompletion}
	}
	return content, nil
}

// CompleteStream yields non-empty content deltas in arrival order. A failure
// is yielded once as the final item. Breaking out of the loop closes the stream.
func (c *Client) CompleteStream(ctx context.Context, messages []domain.Message, temperature float32) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var stream *openai.ChatCompletionStream
		err := llm.Retry(ctx, c.maxRetries, func(ctx context.Context) error {
			var err error
			stream, err = c.api.CreateChatCompletionStream(ctx, c.request(messages, temperature, true))
			return err
		})
		if err != nil {
			yield("", &domain.CompletionError{Op: "stream", Err: err})
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", &domain.CompletionError{Op: "stream", Err: err})
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

func (c *Client) request(messages []domain.Message, temperature float32, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
		Stream:      stream,
	}
}
