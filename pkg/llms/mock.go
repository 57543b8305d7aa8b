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

package llms

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider echoes a canned reply derived from the last user message.
// It serves test suites and local runs without network access.
type MockProvider struct {
	// Reply overrides the generated response when non-empty.
	Reply string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := p.reply(messages)
	return &Completion{
		Content:      reply,
		FinishReason: "stop",
		Usage: Usage{
			PromptTokens:     estimateTokens(messages),
			CompletionTokens: len(strings.Fields(reply)),
			TotalTokens:      estimateTokens(messages) + len(strings.Fields(reply)),
		},
	}, nil
}

func (p *MockProvider) Stream(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reply := p.reply(messages)
	out := make(chan StreamChunk, 1)
	go func() {
		defer close(out)
		for _, word := range strings.Fields(reply) {
			select {
			case out <- StreamChunk{Content: word + " "}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- StreamChunk{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func (p *MockProvider) reply(messages []Message) string {
	if p.Reply != "" {
		return p.Reply
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return fmt.Sprintf("You said: %s", messages[i].Content)
		}
	}
	return "Hello! How can I help?"
}

func estimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(strings.Fields(m.Content))
	}
	return total
}
