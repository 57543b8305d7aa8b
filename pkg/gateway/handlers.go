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
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emadnahed/talksy/pkg/tool"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if s.store != nil {
		resp["storage"] = s.store.State(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := s.tools.List()
	if category := r.URL.Query().Get("category"); category != "" {
		tools = s.tools.ListByCategory(category)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": tools,
	})
}

func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req struct {
		SessionID  string          `json:"session_id"`
		Parameters json.RawMessage `json:"parameters"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "request body is not valid JSON")
			return
		}
	}

	start := time.Now()
	result := s.executor.Execute(r.Context(), tool.Call{
		SessionID:  req.SessionID,
		Name:       name,
		Parameters: req.Parameters,
	})
	s.recordToolResult(r, result, time.Since(start))

	status := http.StatusOK
	if !result.Success {
		switch result.Code {
		case tool.CodeNotFound:
			status = http.StatusNotFound
		case tool.CodeInvalidParameters:
			status = http.StatusBadRequest
		case tool.CodeRateLimited:
			status = http.StatusTooManyRequests
		case tool.CodeTimeout:
			status = http.StatusGatewayTimeout
		default:
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, result)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess := s.sessions.Get(r.Context(), id)
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Destroy(r.Context(), id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStorageReconnect(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "no storage coordinator configured")
		return
	}
	promoted := s.store.TryReconnect(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"promoted": promoted,
		"state":    s.store.State(r.Context()),
	})
}

func (s *Server) handleStorageState(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "no storage coordinator configured")
		return
	}
	writeJSON(w, http.StatusOK, s.store.State(r.Context()))
}

func (s *Server) recordToolResult(r *http.Request, result tool.Result, elapsed time.Duration) {
	var err error
	if !result.Success {
		err = errFromCode(result.Code)
	}
	s.metrics.RecordToolExecution(r.Context(), result.ToolName, elapsed, err)
	if result.Code == tool.CodeRateLimited {
		s.metrics.RecordRateLimitDenial(r.Context())
	}
}

type codeError tool.ErrorCode

func (e codeError) Error() string { return string(e) }

func errFromCode(code tool.ErrorCode) error {
	if code == "" {
		return nil
	}
	return codeError(code)
}
