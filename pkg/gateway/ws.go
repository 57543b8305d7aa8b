// Copyright 2026 Talksy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/emadnahed/talksy/pkg/llms"
	"github.com/emadnahed/talksy/pkg/session"
	"github.com/emadnahed/talksy/pkg/tool"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 45 * time.Second
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin policy is enforced by the deployment's proxy layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is what clients send over the socket.
type clientFrame struct {
	Type       string          `json:"type"`
	Content    string          `json:"content,omitempty"`
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// serverFrame is what the gateway sends back.
type serverFrame struct {
	Type         string     `json:"type"`
	SessionID    string     `json:"session_id,omitempty"`
	Restored     bool       `json:"restored,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MessageCount int        `json:"message_count,omitempty"`
	Content      string     `json:"content,omitempty"`
	Done         bool       `json:"done,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Code         string     `json:"code,omitempty"`
	Message      string     `json:"message,omitempty"`

	Result *tool.Result `json:"result,omitempty"`
}

// wsConn serializes writes; chunks, results, and pings come from
// different goroutines.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(frame serverFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	ws := &wsConn{conn: conn}
	defer conn.Close()

	ctx := r.Context()

	// Resolve the session: reconnect within the grace window restores
	// history; otherwise a session is created, pulling persisted history
	// when the store has it.
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var sess *session.Session
	restored := false
	if reconnected := s.sessions.Reconnect(ctx, sessionID); reconnected != nil {
		sess, restored = reconnected, true
	} else {
		sess, restored = s.sessions.Create(ctx, sessionID)
	}
	if sess == nil {
		_ = ws.send(serverFrame{Type: "error", Code: "internal_error", Message: "session unavailable"})
		return
	}

	sessionFrame := serverFrame{Type: "session", SessionID: sess.ID, Restored: restored}
	if restored {
		sessionFrame.MessageCount = sess.MessageCount()
	} else {
		sessionFrame.CreatedAt = &sess.CreatedAt
		sessionFrame.ExpiresAt = &sess.ExpiresAt
	}
	if err := ws.send(sessionFrame); err != nil {
		return
	}
	slog.Info("WebSocket connected", "session", sess.ID, "restored", restored)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				if err := ws.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("WebSocket read failed", "session", sess.ID, "error", err)
			}
			break
		}

		switch frame.Type {
		case "chat":
			s.handleChatFrame(ctx, ws, sess.ID, frame)
		case "tool":
			s.handleToolFrame(ctx, ws, sess.ID, frame)
		case "ping":
			_ = ws.send(serverFrame{Type: "pong"})
		default:
			_ = ws.send(serverFrame{Type: "error", Code: "invalid_parameters",
				Message: "unknown frame type " + frame.Type})
		}
	}

	// The grace window gives the client a chance to resume with history
	// intact. Explicit teardown goes through DELETE /v1/sessions/{id}.
	if s.sessions.MarkDisconnected(context.Background(), sess.ID) {
		slog.Info("WebSocket disconnected", "session", sess.ID)
	}
}

func (s *Server) handleChatFrame(ctx context.Context, ws *wsConn, sessionID string, frame clientFrame) {
	if res := s.limiter.Consume(sessionID); !res.Allowed {
		s.metrics.RecordRateLimitDenial(ctx)
		_ = ws.send(serverFrame{Type: "error", Code: "rate_limited",
			Message: "rate limit exceeded, retry in " + res.RetryAfter.String()})
		return
	}

	if frame.Content == "" {
		_ = ws.send(serverFrame{Type: "error", Code: "invalid_parameters", Message: "chat frame requires content"})
		return
	}

	sess := s.sessions.AddMessage(ctx, sessionID, session.RoleUser, frame.Content)
	if sess == nil {
		_ = ws.send(serverFrame{Type: "error", Code: "not_found", Message: "session no longer exists"})
		return
	}
	s.metrics.RecordMessage(ctx)

	// The stream gets its own cancellable context so an early return here
	// (failed socket write, stream error) releases the producer goroutine
	// instead of parking it until the connection closes.
	streamCtx, cancelStream := context.WithCancel(ctx)
	defer cancelStream()

	start := time.Now()
	chunks, err := s.provider.Stream(streamCtx, toProviderMessages(sess.History))
	if err != nil {
		s.metrics.RecordCompletion(ctx, s.cfg.LLM.Model, time.Since(start), err)
		slog.Error("Completion failed", "session", sessionID, "error", err)
		_ = ws.send(serverFrame{Type: "error", Code: "execution_failed", Message: "completion failed"})
		return
	}

	var reply []byte
	for chunk := range chunks {
		if chunk.Err != nil {
			s.metrics.RecordCompletion(ctx, s.cfg.LLM.Model, time.Since(start), chunk.Err)
			slog.Error("Stream failed", "session", sessionID, "error", chunk.Err)
			_ = ws.send(serverFrame{Type: "error", Code: "execution_failed", Message: "completion failed"})
			return
		}
		if chunk.Done {
			break
		}
		reply = append(reply, chunk.Content...)
		if err := ws.send(serverFrame{Type: "chunk", Content: chunk.Content}); err != nil {
			return
		}
	}
	s.metrics.RecordCompletion(ctx, s.cfg.LLM.Model, time.Since(start), nil)

	s.sessions.AddMessage(ctx, sessionID, session.RoleAssistant, string(reply))
	now := time.Now().UTC()
	_ = ws.send(serverFrame{Type: "assistant", Content: string(reply), Done: true, Timestamp: &now})
}

func (s *Server) handleToolFrame(ctx context.Context, ws *wsConn, sessionID string, frame clientFrame) {
	start := time.Now()
	result := s.executor.Execute(ctx, tool.Call{
		ID:         frame.ID,
		SessionID:  sessionID,
		Name:       frame.Name,
		Parameters: frame.Parameters,
	})

	var execErr error
	if !result.Success {
		execErr = errFromCode(result.Code)
	}
	s.metrics.RecordToolExecution(ctx, result.ToolName, time.Since(start), execErr)
	if result.Code == tool.CodeRateLimited {
		s.metrics.RecordRateLimitDenial(ctx)
	}

	s.sessions.Touch(ctx, sessionID)
	_ = ws.send(serverFrame{Type: "result", Result: &result})
}

func toProviderMessages(history []session.Message) []llms.Message {
	messages := make([]llms.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, llms.Message{Role: string(m.Role), Content: m.Content})
	}
	return messages
}
