// Package openai provides an LLM adapter backed by the OpenAI chat
// completions API, streaming deltas as they arrive.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"

	"github.com/voxway/voxway/internal/resilience"
	"github.com/voxway/voxway/pkg/capability/llm"
	"github.com/voxway/voxway/pkg/capability/llm/history"
	"github.com/voxway/voxway/pkg/media"
)

// retryBase is the base delay of the linear backoff between stream-start
// retries.
const retryBase = 500 * time.Millisecond

// config holds optional configuration for the provider.
type config struct {
	baseURL      string
	systemPrompt string
	timeout      time.Duration
	retries      int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithSystemPrompt pins a system message at the start of every session's
// history.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) { c.systemPrompt = prompt }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithRetries overrides the stream-start retry budget.
func WithRetries(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// Provider implements llm.Provider using the OpenAI API.
type Provider struct {
	client  oai.Client
	model   string
	history *history.Store
	retries int
}

// New constructs an OpenAI LLM Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{retries: resilience.MaxRetries}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:  oai.NewClient(reqOpts...),
		model:   model,
		history: history.New(cfg.systemPrompt),
		retries: cfg.retries,
	}, nil
}

// Setup implements capability.Lifecycle. The client is stateless; nothing to
// warm up.
func (p *Provider) Setup(context.Context) error { return nil }

// Close implements capability.Lifecycle.
func (p *Provider) Close() error { return nil }

// ChatStream implements llm.Provider. The user turn is appended to the
// session history before the call; the assembled assistant reply is appended
// after the stream closes, even when the consumer abandoned it early.
func (p *Provider) ChatStream(ctx context.Context, input media.TextData, sessionID string) (<-chan media.TextData, error) {
	msgs := p.history.AppendUser(sessionID, input.Text)
	params := buildParams(p.model, msgs)

	var stream *ssestream.Stream[oai.ChatCompletionChunk]
	err := resilience.Retry(ctx, "openai.chat", p.retries, resilience.LinearBackoff(retryBase), func(ctx context.Context) error {
		s := p.client.Chat.Completions.NewStreaming(ctx, params)
		if err := s.Err(); err != nil {
			_ = s.Close()
			return fmt.Errorf("openai: start stream: %w", err)
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan media.TextData, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		var assembled strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			assembled.WriteString(delta)
			select {
			case ch <- media.TextData{Text: delta}:
			case <-ctx.Done():
				p.history.AppendAssistant(sessionID, assembled.String())
				return
			}
		}
		if err := stream.Err(); err != nil {
			slog.Warn("openai: stream aborted", "session_id", sessionID, "err", err)
		}
		p.history.AppendAssistant(sessionID, assembled.String())

		select {
		case ch <- media.TextData{Final: true}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// ClearHistory implements llm.Provider.
func (p *Provider) ClearHistory(sessionID string) {
	p.history.Clear(sessionID)
}

// buildParams converts a message history into OpenAI SDK params.
func buildParams(model string, msgs []llm.Message) oai.ChatCompletionNewParams {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			messages = append(messages, oai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, oai.AssistantMessage(m.Content))
		default:
			messages = append(messages, oai.UserMessage(m.Content))
		}
	}
	return oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
}

var _ llm.Provider = (*Provider)(nil)
