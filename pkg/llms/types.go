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

// Package llms provides language model providers behind a common
// interface: a mock for tests and offline runs, and an OpenAI-compatible
// chat completions client with streaming.
package llms

import "context"

// Message is one turn of conversation sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a finished, non-streaming response.
type Completion struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// StreamChunk is one increment of a streaming response. Done marks the
// final chunk; Content may be empty on it.
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Err     error  `json:"-"`
}

// Provider generates completions from conversation history.
type Provider interface {
	Name() string

	Complete(ctx context.Context, messages []Message) (*Completion, error)

	// Stream returns a channel of chunks. The channel is always closed;
	// a chunk with Err set reports a mid-stream failure.
	Stream(ctx context.Context, messages []Message) (<-chan StreamChunk, error)
}
