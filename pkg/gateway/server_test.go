package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emadnahed/talksy/pkg/config"
	"github.com/emadnahed/talksy/pkg/llms"
	"github.com/emadnahed/talksy/pkg/observability"
	"github.com/emadnahed/talksy/pkg/ratelimit"
	"github.com/emadnahed/talksy/pkg/session"
	"github.com/emadnahed/talksy/pkg/tool"
)

func testServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.Config{}
	cfg.SetDefaults()
	cfg.Session.DisconnectGrace = 200 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	sessions := session.NewManager(cfg.Session)
	t.Cleanup(sessions.Shutdown)

	tools := tool.NewRegistry()
	if err := tool.RegisterBuiltins(tools); err != nil {
		t.Fatal(err)
	}
	executor := tool.NewExecutor(tools, cfg.Tools)
	limiter := ratelimit.NewLimiter(cfg.RateLimit)
	t.Cleanup(limiter.Close)

	srv := NewServer(cfg, Deps{
		Sessions: sessions,
		Executor: executor,
		Tools:    tools,
		Provider: llms.NewMockProvider(),
		Limiter:  limiter,
		Metrics:  &observability.PrometheusMetrics{},
	})
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestListTools(t *testing.T) {
	_, ts := testServer(t, nil)

	resp, err := http.Get(ts.URL + "/v1/tools")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Tools []tool.Definition `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(body.Tools))
	for _, def := range body.Tools {
		names = append(names, def.Name)
	}
	for _, want := range []string{"calculator", "current_time", "echo"} {
		found := false
		for _, name := range names {
			if name == want {
				found = true
			}
		}
		if !found {
			t.Errorf("tool %q missing from listing %v", want, names)
		}
	}
}

func TestExecuteToolEndpoint(t *testing.T) {
	_, ts := testServer(t, nil)

	resp, err := http.Post(ts.URL+"/v1/tools/calculator/execute", "application/json",
		strings.NewReader(`{"session_id":"s1","parameters":{"operation":"multiply","a":6,"b":7}}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var result tool.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	out, _ := result.Output.(map[string]any)
	if out["result"] != 42.0 {
		t.Errorf("output = %#v", result.Output)
	}
}

func TestExecuteToolErrorStatuses(t *testing.T) {
	_, ts := testServer(t, nil)

	cases := []struct {
		path, body string
		wantStatus int
	}{
		{"/v1/tools/missing/execute", `{}`, http.StatusNotFound},
		{"/v1/tools/echo/execute", `{"parameters":{"bogus":1}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, err := http.Post(ts.URL+tc.path, "application/json", strings.NewReader(tc.body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d", tc.path, resp.StatusCode, tc.wantStatus)
		}
	}
}

func TestSessionEndpoints(t *testing.T) {
	srv, ts := testServer(t, nil)

	srv.sessions.Create(context.Background(), "rest-1")

	resp, err := http.Get(ts.URL + "/v1/sessions/rest-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/sessions/rest-1", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: status = %d", delResp.StatusCode)
	}

	missing, err := http.Get(ts.URL + "/v1/sessions/rest-1")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status = %d", missing.StatusCode)
	}
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	var frame serverFrame
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	return frame
}

func TestWebSocketChatFlow(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts, "")

	hello := readFrame(t, conn)
	if hello.Type != "session" || hello.SessionID == "" {
		t.Fatalf("first frame = %+v", hello)
	}
	if hello.Restored {
		t.Error("fresh connection must not report restored")
	}
	if hello.CreatedAt == nil || hello.ExpiresAt == nil {
		t.Error("fresh session frame must carry created_at and expires_at")
	}

	if err := conn.WriteJSON(clientFrame{Type: "chat", Content: "hello there"}); err != nil {
		t.Fatal(err)
	}

	var chunks strings.Builder
	for {
		frame := readFrame(t, conn)
		switch frame.Type {
		case "chunk":
			chunks.WriteString(frame.Content)
		case "assistant":
			if !frame.Done {
				t.Error("assistant frame must be marked done")
			}
			if !strings.Contains(frame.Content, "hello there") {
				t.Errorf("assistant reply %q does not echo the prompt", frame.Content)
			}
			if !strings.Contains(chunks.String(), "hello") {
				t.Errorf("chunks %q do not stream the reply", chunks.String())
			}
			return
		case "error":
			t.Fatalf("unexpected error frame: %+v", frame)
		}
	}
}

func TestWebSocketToolExecution(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts, "")
	readFrame(t, conn) // session frame

	if err := conn.WriteJSON(clientFrame{
		Type:       "tool",
		ID:         "call-1",
		Name:       "echo",
		Parameters: json.RawMessage(`{"message":"over the wire"}`),
	}); err != nil {
		t.Fatal(err)
	}

	frame := readFrame(t, conn)
	if frame.Type != "result" || frame.Result == nil {
		t.Fatalf("frame = %+v", frame)
	}
	if !frame.Result.Success || frame.Result.CallID != "call-1" {
		t.Errorf("result = %+v", frame.Result)
	}
}

func TestWebSocketReconnectRestoresHistory(t *testing.T) {
	srv, ts := testServer(t, nil)

	conn := dialWS(t, ts, "?session_id=resume-1")
	hello := readFrame(t, conn)
	if hello.SessionID != "resume-1" {
		t.Fatalf("session id = %q", hello.SessionID)
	}

	srv.sessions.AddMessage(context.Background(), "resume-1", session.RoleUser, "kept across drops")
	conn.Close()

	// Wait for the server to notice the drop and enter the grace window.
	deadline := time.Now().Add(time.Second)
	for !srv.sessions.HasDisconnected(context.Background(), "resume-1") {
		if time.Now().After(deadline) {
			t.Fatal("session never entered the grace window")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn2 := dialWS(t, ts, "?session_id=resume-1")
	hello2 := readFrame(t, conn2)
	if !hello2.Restored {
		t.Error("reconnect within grace must report restored")
	}
	if hello2.MessageCount != 1 {
		t.Errorf("restored frame message_count = %d, want 1", hello2.MessageCount)
	}

	sess := srv.sessions.Get(context.Background(), "resume-1")
	if sess == nil || sess.MessageCount() != 1 {
		t.Errorf("history lost across reconnect: %+v", sess)
	}
}

func TestWebSocketUnknownFrame(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts, "")
	readFrame(t, conn)

	if err := conn.WriteJSON(clientFrame{Type: "bogus"}); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, conn)
	if frame.Type != "error" || frame.Code != "invalid_parameters" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestWebSocketChatRateLimited(t *testing.T) {
	_, ts := testServer(t, func(cfg *config.Config) {
		cfg.RateLimit.MaxRequests = 1
		cfg.RateLimit.Window = time.Minute
	})
	conn := dialWS(t, ts, "")
	readFrame(t, conn)

	if err := conn.WriteJSON(clientFrame{Type: "chat", Content: "one"}); err != nil {
		t.Fatal(err)
	}
	// Drain the reply to the first message.
	for {
		frame := readFrame(t, conn)
		if frame.Type == "assistant" {
			break
		}
	}

	if err := conn.WriteJSON(clientFrame{Type: "chat", Content: "two"}); err != nil {
		t.Fatal(err)
	}
	frame := readFrame(t, conn)
	if frame.Type != "error" || frame.Code != "rate_limited" {
		t.Errorf("frame = %+v", frame)
	}
}
