// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to feed controlled response streams to the
// orchestrator and to inspect what it sent, without a live LLM backend. All
// fields are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    StreamChunks: []media.TextData{{Text: "Hello"}, {Final: true}},
//	}
//	ch, _ := p.ChatStream(ctx, media.TextData{Text: "hi", Final: true}, "s1")
package mock

import (
	"context"
	"sync"

	"github.com/voxway/voxway/pkg/capability/llm"
	"github.com/voxway/voxway/pkg/media"
)

// ChatStreamCall records a single invocation of ChatStream.
type ChatStreamCall struct {
	// Ctx is the context passed to ChatStream.
	Ctx context.Context
	// Input is the TextData passed to ChatStream.
	Input media.TextData
	// SessionID is the session key passed to ChatStream.
	SessionID string
}

// Provider is a mock implementation of llm.Provider.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// StreamChunks is the sequence of TextData values emitted on the channel
	// returned by ChatStream. All chunks are sent before the channel is
	// closed; context cancellation stops emission early.
	StreamChunks []media.TextData

	// StreamErr, if non-nil, is returned as the error from ChatStream
	// instead of starting a channel.
	StreamErr error

	// SetupErr, if non-nil, is returned by Setup.
	SetupErr error

	// --- Call records (read after test) ---

	// StreamCalls records every invocation of ChatStream in order.
	StreamCalls []ChatStreamCall

	// ClearedSessions records the session IDs passed to ClearHistory.
	ClearedSessions []string

	// SetupCount and CloseCount track lifecycle invocations.
	SetupCount int
	CloseCount int
}

// ChatStream implements llm.Provider. It records the call and emits the
// configured StreamChunks on a fresh channel.
func (p *Provider) ChatStream(ctx context.Context, input media.TextData, sessionID string) (<-chan media.TextData, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, ChatStreamCall{Ctx: ctx, Input: input, SessionID: sessionID})
	err := p.StreamErr
	chunks := make([]media.TextData, len(p.StreamChunks))
	copy(chunks, p.StreamChunks)
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan media.TextData, len(chunks))
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ClearHistory implements llm.Provider.
func (p *Provider) ClearHistory(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ClearedSessions = append(p.ClearedSessions, sessionID)
}

// Setup implements capability.Lifecycle.
func (p *Provider) Setup(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SetupCount++
	return p.SetupErr
}

// Close implements capability.Lifecycle.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCount++
	return nil
}

// Compile-time assertion that Provider satisfies llm.Provider.
var _ llm.Provider = (*Provider)(nil)
