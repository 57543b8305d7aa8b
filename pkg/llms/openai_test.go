package llms

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/emadnahed/talksy/pkg/config"
)

func openAITestConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  baseURL,
		Timeout:  5 * time.Second,
	}
}

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("authorization = %q", auth)
		}
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "hi there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(openAITestConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	comp, err := p.Complete(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatal(err)
	}
	if comp.Content != "hi there" || comp.FinishReason != "stop" {
		t.Errorf("completion = %+v", comp)
	}
	if comp.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", comp.Usage)
	}
}

func TestOpenAICompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "bad key", "type": "auth", "code": "invalid_api_key"}}`)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(openAITestConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Complete(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("error = %v, want API error surfaced", err)
	}
}

func TestOpenAIStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(openAITestConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := p.Stream(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatal(err)
	}

	var content strings.Builder
	sawDone := false
	for chunk := range chunks {
		if chunk.Err != nil {
			t.Fatalf("stream error: %v", chunk.Err)
		}
		if chunk.Done {
			sawDone = true
			continue
		}
		content.WriteString(chunk.Content)
	}
	if content.String() != "hello" {
		t.Errorf("streamed content = %q", content.String())
	}
	if !sawDone {
		t.Error("stream must end with a done chunk")
	}
}

func TestOpenAIStreamConsumerStopsAtError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"quota exceeded\"}}\n\n")
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(openAITestConfig(server.URL))
	if err != nil {
		t.Fatal(err)
	}

	baseline := runtime.NumGoroutine()

	chunks, err := p.Stream(context.Background(), []Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatal(err)
	}

	chunk := <-chunks
	if chunk.Err == nil || !strings.Contains(chunk.Err.Error(), "quota exceeded") {
		t.Fatalf("chunk = %+v, want API error surfaced", chunk)
	}

	// Stop reading here. The producer must still finish and close the
	// response body rather than park forever in a channel send. Drop the
	// pooled keep-alive connections first so the transport and server
	// goroutines they hold open do not mask the producer in the count.
	p.client.CloseIdleConnections()
	server.CloseClientConnections()
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > baseline {
		if time.Now().After(deadline) {
			t.Fatal("producer goroutine still running after consumer stopped at the error chunk")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(config.LLMConfig{Provider: "openai"})
	if err == nil {
		t.Error("missing api key must fail construction")
	}
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()

	comp, err := p.Complete(context.Background(), []Message{{Role: "user", Content: "ping"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(comp.Content, "ping") {
		t.Errorf("mock reply %q does not reference the prompt", comp.Content)
	}

	chunks, err := p.Stream(context.Background(), []Message{{Role: "user", Content: "ping"}})
	if err != nil {
		t.Fatal(err)
	}
	var got strings.Builder
	for chunk := range chunks {
		got.WriteString(chunk.Content)
	}
	if !strings.Contains(got.String(), "ping") {
		t.Errorf("streamed mock reply %q does not reference the prompt", got.String())
	}
}

func TestFactory(t *testing.T) {
	p, err := NewProvider(config.LLMConfig{Provider: "mock"})
	if err != nil || p.Name() != "mock" {
		t.Errorf("mock factory: %v, %v", p, err)
	}
	if _, err := NewProvider(config.LLMConfig{Provider: "nope"}); err == nil {
		t.Error("unknown provider must fail")
	}
}
