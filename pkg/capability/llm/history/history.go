// Package history implements the per-session conversation window shared by
// LLM adapters: a concurrent map of session ID to message list, trimmed to
// [llm.MaxHistoryTurns] turns with the system prompt pinned at position 0.
package history

import (
	"sync"

	"github.com/voxway/voxway/pkg/capability/llm"
)

// Store keeps one bounded message history per session. Safe for concurrent
// use.
type Store struct {
	systemPrompt string

	mu       sync.Mutex
	sessions map[string][]llm.Message
}

// New creates a Store. When systemPrompt is non-empty, every session's
// history starts with it as the pinned first message.
func New(systemPrompt string) *Store {
	return &Store{
		systemPrompt: systemPrompt,
		sessions:     make(map[string][]llm.Message),
	}
}

// AppendUser appends the next user turn and returns a copy of the session's
// full message list, ready to send upstream. The copy keeps the stored slice
// private: the caller may hold it across a long streaming call while other
// turns mutate the session.
func (s *Store) AppendUser(sessionID, text string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, ok := s.sessions[sessionID]
	if !ok && s.systemPrompt != "" {
		msgs = []llm.Message{{Role: "system", Content: s.systemPrompt}}
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: text})
	msgs = trim(msgs)
	s.sessions[sessionID] = msgs

	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out
}

// AppendAssistant records the assembled assistant reply after its stream
// closed. Empty replies are recorded too so the user/assistant pairing stays
// aligned for eviction.
func (s *Store) AppendAssistant(sessionID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.sessions[sessionID], llm.Message{Role: "assistant", Content: text})
	s.sessions[sessionID] = trim(msgs)
}

// Clear drops a session's history. Unknown IDs are a no-op.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Messages returns a copy of a session's current history, mainly for tests.
func (s *Store) Messages(sessionID string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.sessions[sessionID]
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out
}

// trim evicts the oldest user/assistant pair while the window exceeds
// MaxHistoryTurns, never touching a leading system message.
func trim(msgs []llm.Message) []llm.Message {
	start := 0
	if len(msgs) > 0 && msgs[0].Role == "system" {
		start = 1
	}
	for len(msgs)-start > 2*llm.MaxHistoryTurns {
		msgs = append(msgs[:start], msgs[start+2:]...)
	}
	return msgs
}
