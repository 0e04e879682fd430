package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/voxway/voxway/internal/conversation"
	"github.com/voxway/voxway/internal/observe"
	"github.com/voxway/voxway/pkg/protocol"
)

// writeTimeout bounds a single outbound frame write. A client that stops
// reading gets disconnected instead of backing up every sentence task.
const writeTimeout = 10 * time.Second

// session binds one live websocket connection to its conversation
// orchestrator. It owns the write side of the connection; all outbound
// events funnel through Send under the write lock.
type session struct {
	id      string
	tagID   string
	conn    *websocket.Conn
	orch    *conversation.Orchestrator
	metrics *observe.Metrics

	// ctx is the connection lifetime; writes after close fail fast.
	ctx    context.Context
	cancel context.CancelFunc

	writeMu   sync.Mutex
	createdAt time.Time
	closeOnce sync.Once
}

// Send serializes ev and writes it to the connection. Failures are logged
// and swallowed: a dying connection must never propagate errors back into
// the orchestrator's streaming goroutines. Safe to call from any goroutine.
func (s *session) Send(ev protocol.StreamEvent) {
	ev.SessionID = s.id
	if ev.Timestamp == 0 {
		ev.Timestamp = protocol.Now()
	}
	data, err := protocol.Encode(ev)
	if err != nil {
		slog.Error("encode outbound event", "session_id", s.id, "type", ev.EventType, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
	defer cancel()

	s.writeMu.Lock()
	err = s.conn.Write(ctx, websocket.MessageText, data)
	s.writeMu.Unlock()
	if err != nil {
		slog.Debug("write outbound event", "session_id", s.id, "type", ev.EventType, "err", err)
		return
	}
	if s.metrics != nil {
		s.metrics.EventSent(s.ctx, string(ev.EventType))
	}
}

// close tears the session down: stops the orchestrator and closes the
// connection with the given status. Idempotent.
func (s *session) close(status websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.cancel()
		s.orch.Stop()
		if err := s.conn.Close(status, reason); err != nil {
			slog.Debug("close connection", "session_id", s.id, "err", err)
		}
	})
}
