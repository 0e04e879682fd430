// Package anyllm provides an LLM adapter backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// local llama.cpp/llamafile servers.
//
// Usage:
//
//	p, err := anyllm.New("anthropic", "claude-3-5-sonnet-latest", anyllmlib.WithAPIKey("sk-ant-..."))
//	p, err := anyllm.New("ollama", "llama3.1")
package anyllm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/voxway/voxway/internal/resilience"
	"github.com/voxway/voxway/pkg/capability/llm"
	"github.com/voxway/voxway/pkg/capability/llm/history"
	"github.com/voxway/voxway/pkg/media"
)

const retryBase = 500 * time.Millisecond

// Provider implements llm.Provider by wrapping any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
	history *history.Store
	retries int
}

// Option is a functional option for Provider.
type Option func(*settings)

type settings struct {
	systemPrompt string
	retries      int
	backendOpts  []anyllmlib.Option
}

// WithSystemPrompt pins a system message at the start of every session's
// history.
func WithSystemPrompt(prompt string) Option {
	return func(s *settings) { s.systemPrompt = prompt }
}

// WithRetries overrides the completion retry budget.
func WithRetries(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithBackendOptions passes options through to the any-llm-go backend
// constructor (e.g. anyllmlib.WithAPIKey, anyllmlib.WithBaseURL).
func WithBackendOptions(opts ...anyllmlib.Option) Option {
	return func(s *settings) { s.backendOpts = append(s.backendOpts, opts...) }
}

// New creates a Provider backed by the given backend name.
//
// backendName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile". Without an API key
// option, the backend falls back to its environment variable (OPENAI_API_KEY,
// ANTHROPIC_API_KEY, and so on).
func New(backendName, model string, opts ...Option) (*Provider, error) {
	if backendName == "" {
		return nil, fmt.Errorf("anyllm: backendName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	cfg := &settings{retries: resilience.MaxRetries}
	for _, o := range opts {
		o(cfg)
	}

	backend, err := createBackend(backendName, cfg.backendOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", backendName, err)
	}

	return &Provider{
		backend: backend,
		model:   model,
		history: history.New(cfg.systemPrompt),
		retries: cfg.retries,
	}, nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(name) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", name)
	}
}

// Setup implements capability.Lifecycle.
func (p *Provider) Setup(context.Context) error { return nil }

// Close implements capability.Lifecycle.
func (p *Provider) Close() error { return nil }

// ChatStream implements llm.Provider. any-llm-go reports stream failures on
// an error channel rather than up front, so the retry budget is applied
// inside the pump: an attempt that fails before emitting anything is retried
// with linear backoff; once a delta went out, a failure just ends the stream.
func (p *Provider) ChatStream(ctx context.Context, input media.TextData, sessionID string) (<-chan media.TextData, error) {
	msgs := p.history.AppendUser(sessionID, input.Text)
	params := p.buildParams(msgs)

	ch := make(chan media.TextData, 32)
	go func() {
		defer close(ch)

		var assembled strings.Builder
		emitted := false
		for attempt := 0; ; attempt++ {
			chunks, errs := p.backend.CompletionStream(ctx, params)
			for chunk := range chunks {
				if len(chunk.Choices) == 0 {
					continue
				}
				delta := chunk.Choices[0].Delta.Content
				if delta == "" {
					continue
				}
				assembled.WriteString(delta)
				emitted = true
				select {
				case ch <- media.TextData{Text: delta}:
				case <-ctx.Done():
					p.history.AppendAssistant(sessionID, assembled.String())
					return
				}
			}
			err := <-errs
			if err == nil {
				break
			}
			if emitted || attempt >= p.retries || ctx.Err() != nil {
				slog.Warn("anyllm: stream aborted", "session_id", sessionID, "err", err)
				break
			}
			wait := retryBase * time.Duration(attempt+1)
			slog.Warn("anyllm: retrying stream", "session_id", sessionID, "attempt", attempt+1, "wait", wait, "err", err)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				p.history.AppendAssistant(sessionID, assembled.String())
				return
			case <-timer.C:
			}
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

// buildParams converts a message history into any-llm-go params.
func (p *Provider) buildParams(msgs []llm.Message) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(msgs))
	for _, m := range msgs {
		messages = append(messages, anyllmlib.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
}

var _ llm.Provider = (*Provider)(nil)
