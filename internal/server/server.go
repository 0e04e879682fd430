// Package server implements the websocket protocol server and session
// registry. It accepts connections, runs the handshake, routes inbound
// frames to each session's orchestrator, and answers management events
// without touching the conversation path.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/voxway/voxway/internal/config"
	"github.com/voxway/voxway/internal/conversation"
	"github.com/voxway/voxway/internal/modules"
	"github.com/voxway/voxway/internal/observe"
	"github.com/voxway/voxway/pkg/protocol"
)

const (
	// handshakeTimeout bounds the wait for the CLIENT_SESSION_START frame.
	handshakeTimeout = 5 * time.Second

	// maxFrameBytes caps a single inbound frame. Audio chunks are small
	// (tens of milliseconds of PCM); a megabyte is generous headroom.
	maxFrameBytes = 1 << 20
)

// Option configures a Server.
type Option func(*Server)

// WithMetrics attaches metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server is the process-wide protocol server. It implements http.Handler;
// mount it at the websocket path. Safe for concurrent use.
type Server struct {
	registry *modules.Registry
	store    *config.Store
	metrics  *observe.Metrics

	mu       sync.Mutex
	sessions map[string]*session // session_id → session
	tags     map[string]string   // tag_id → session_id
}

// New creates a Server backed by the given capability registry and config
// store.
func New(registry *modules.Registry, store *config.Store, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		store:    store,
		sessions: make(map[string]*session),
		tags:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionCount reports the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown closes every live session. Called during process teardown after
// the HTTP listener has stopped accepting.
func (s *Server) Shutdown() {
	s.mu.Lock()
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.close(websocket.StatusGoingAway, "server shutting down")
		s.teardown(sess)
	}
}

// ServeHTTP upgrades the connection, performs the handshake, and runs the
// session's read loop until disconnect.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browsers and native clients connect from arbitrary origins;
		// authentication belongs to the deployment's proxy layer.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	sess, err := s.handshake(r.Context(), conn)
	if err != nil {
		slog.Warn("handshake failed", "remote", r.RemoteAddr, "err", err)
		_ = conn.Close(websocket.StatusPolicyViolation, "handshake required")
		return
	}

	slog.Info("session started", "session_id", sess.id, "tag_id", sess.tagID, "remote", r.RemoteAddr)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(sess.ctx, 1)
	}

	s.readLoop(sess)

	sess.close(websocket.StatusNormalClosure, "")
	s.teardown(sess)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	slog.Info("session ended", "session_id", sess.id)
}

// handshake reads the first frame, which must be a CLIENT_SESSION_START. A
// tag_id already bound to a live session supersedes that session: the old
// connection is closed and its state destroyed before the new session is
// acknowledged.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (*session, error) {
	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	typ, data, err := conn.Read(hsCtx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, errors.New("server: first frame must be a session start event")
	}
	ev, err := protocol.Decode(data)
	if err != nil {
		return nil, err
	}
	if ev.EventType != protocol.ClientSessionStart {
		return nil, errors.New("server: first frame must be a session start event")
	}

	sessionID := uuid.NewString()
	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		id:        sessionID,
		tagID:     ev.TagID,
		conn:      conn,
		metrics:   s.metrics,
		ctx:       sessCtx,
		cancel:    sessCancel,
		createdAt: time.Now(),
	}
	cfg := s.store.Current()
	sess.orch = conversation.New(sessionID, s.registry, sess.Send,
		conversation.WithConcatOnInterrupt(cfg.Conversation.Concat()),
		conversation.WithMetrics(s.metrics),
	)

	var superseded *session
	s.mu.Lock()
	if ev.TagID != "" {
		if oldID, ok := s.tags[ev.TagID]; ok {
			if old, ok := s.sessions[oldID]; ok {
				slog.Info("superseding session", "tag_id", ev.TagID, "old_session_id", oldID, "new_session_id", sessionID)
				delete(s.sessions, oldID)
				superseded = old
			}
		}
		s.tags[ev.TagID] = sessionID
	}
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	// The old connection must be fully closed before the new session is
	// acknowledged. close is idempotent; the lock is released first because
	// closing writes to the old websocket.
	if superseded != nil {
		superseded.close(websocket.StatusPolicyViolation, "superseded by reconnect")
		s.clearHistory(superseded.id)
	}

	sess.orch.Start()

	ack := protocol.StreamEvent{
		EventType: protocol.ServerSessionStart,
		TagID:     ev.TagID,
		Timestamp: protocol.Now(),
	}
	sess.Send(ack)
	return sess, nil
}

// readLoop dispatches inbound frames until the connection dies or the
// client ends the stream.
func (s *Server) readLoop(sess *session) {
	for {
		typ, data, err := sess.conn.Read(sess.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return
			}
			slog.Debug("read frame", "session_id", sess.id, "err", err)
			return
		}

		if typ == websocket.MessageBinary {
			sess.orch.HandleAudio(data)
			continue
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("malformed event", "session_id", sess.id, "err", err)
			s.protocolError(sess, "malformed event")
			continue
		}
		s.route(sess, ev)
	}
}

// route dispatches one decoded inbound event. Management events are answered
// here; conversation events go to the orchestrator.
func (s *Server) route(sess *session, ev protocol.StreamEvent) {
	switch ev.EventType {
	case protocol.ClientTextInput:
		p, err := ev.Text()
		if err != nil {
			slog.Warn("text input payload", "session_id", sess.id, "err", err)
			s.protocolError(sess, "malformed text input")
			return
		}
		sess.orch.HandleTextInput(p.Text)

	case protocol.ClientSpeechEnd, protocol.StreamEnd:
		sess.orch.HandleSpeechEnd()

	case protocol.ConfigGet:
		s.sendSnapshot(sess)

	case protocol.ConfigSet:
		var patch map[string]any
		if err := json.Unmarshal(ev.EventData, &patch); err != nil {
			s.protocolError(sess, "malformed config set payload")
			return
		}
		if err := s.store.Apply(patch); err != nil {
			slog.Warn("config set rejected", "session_id", sess.id, "err", err)
			s.sendError(sess, err.Error())
			return
		}
		slog.Info("config updated", "session_id", sess.id)
		s.sendSnapshot(sess)

	case protocol.ModuleStatusGet:
		report, err := protocol.New(protocol.ModuleStatusReport, map[string]any{
			"modules": s.registry.StatusReport(),
		})
		if err != nil {
			slog.Error("encode status report", "session_id", sess.id, "err", err)
			return
		}
		sess.Send(report)

	case protocol.ClientSessionStart:
		// Second handshake on a live connection.
		s.protocolError(sess, "session already started")

	default:
		s.protocolError(sess, "unexpected event type")
	}
}

func (s *Server) sendSnapshot(sess *session) {
	snap, err := protocol.New(protocol.ConfigSnapshot, s.store.Snapshot())
	if err != nil {
		slog.Error("encode config snapshot", "session_id", sess.id, "err", err)
		return
	}
	sess.Send(snap)
}

func (s *Server) sendError(sess *session, msg string) {
	ev, err := protocol.NewError(msg)
	if err != nil {
		return
	}
	sess.Send(ev)
}

func (s *Server) protocolError(sess *session, msg string) {
	if s.metrics != nil {
		s.metrics.ProtocolErrors.Add(sess.ctx, 1)
	}
	s.sendError(sess, msg)
}

// teardown purges the registry entries for a dead session and drops its LLM
// history so a reused tag starts clean.
func (s *Server) teardown(sess *session) {
	s.mu.Lock()
	if cur, ok := s.sessions[sess.id]; ok && cur == sess {
		delete(s.sessions, sess.id)
	}
	if sess.tagID != "" && s.tags[sess.tagID] == sess.id {
		delete(s.tags, sess.tagID)
	}
	s.mu.Unlock()

	s.clearHistory(sess.id)
}

func (s *Server) clearHistory(sessionID string) {
	llmProv, err := s.registry.LLM()
	if err != nil {
		return
	}
	llmProv.ClearHistory(sessionID)
}
