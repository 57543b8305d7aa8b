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

// Package session manages conversational session lifecycle.
//
// A session tracks one client's conversation and connection state:
//   - TTL-based expiry, refreshed on every activity
//   - a bounded, FIFO-trimmed message history
//   - a disconnect grace window during which the client may reconnect
//   - LRU eviction when the live-session ceiling is exceeded
package session

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Status is the connection state of a session.
type Status string

const (
	StatusActive       Status = "active"
	StatusDisconnected Status = "disconnected"
)

// Message is one entry in a session's conversation history.
// Messages are immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a snapshot of one client's session. Callers always receive
// copies; the manager exclusively owns the live record.
type Session struct {
	ID             string         `json:"id"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	DisconnectedAt *time.Time     `json:"disconnected_at,omitempty"`
	History        []Message      `json:"history"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// MessageCount returns the number of messages in the history.
func (s *Session) MessageCount() int {
	return len(s.History)
}
