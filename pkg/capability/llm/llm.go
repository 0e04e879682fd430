// Package llm defines the Provider contract for chat language model backends.
//
// Unlike the other capability contracts, an LLM provider is stateful per
// session: it owns the conversation history keyed by session ID, appends the
// user input before generation and the assembled assistant reply after the
// stream closes, and trims the window to MaxHistoryTurns while keeping the
// system prompt pinned at position 0. The history subpackage provides that
// bookkeeping so adapters do not reimplement it.
//
// Implementations must be safe for concurrent use across sessions and must
// honour context cancellation: when the consumer stops reading and cancels
// the context, the upstream connection is released promptly.
package llm

import (
	"context"

	"github.com/voxway/voxway/pkg/capability"
	"github.com/voxway/voxway/pkg/media"
)

// MaxHistoryTurns caps the per-session history at this many user/assistant
// turns. The oldest pair is evicted first; the system prompt never is.
const MaxHistoryTurns = 20

// Message is a single entry in a session's conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Provider is the abstraction over any chat LLM backend.
type Provider interface {
	capability.Lifecycle

	// ChatStream sends input as the next user turn of the given session and
	// returns a read-only channel emitting partial-text chunks, terminated
	// by one Final sentinel (which may carry empty text). The channel is
	// closed by the implementation when generation finishes or ctx is
	// cancelled; callers must drain it.
	//
	// A non-nil error is returned only when the stream cannot be started,
	// after the provider's retry budget is exhausted.
	ChatStream(ctx context.Context, input media.TextData, sessionID string) (<-chan media.TextData, error)

	// ClearHistory drops the conversation history of a session. Called when
	// the session is destroyed; unknown session IDs are a no-op.
	ClearHistory(sessionID string)
}
