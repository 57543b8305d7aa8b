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

package config

import (
	"fmt"
	"time"
)

// SessionConfig configures session lifecycle management.
type SessionConfig struct {
	// TTL is the idle time after which a session expires.
	TTL time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`

	// MaxHistory bounds the conversation history per session.
	// Oldest messages are dropped first when exceeded.
	MaxHistory int `yaml:"max_history,omitempty" json:"max_history,omitempty"`

	// CleanupInterval is how often the expiry sweep runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval,omitempty" json:"cleanup_interval,omitempty"`

	// DisconnectGrace is how long a disconnected session may still be
	// reconnected to before it is destroyed.
	DisconnectGrace time.Duration `yaml:"disconnect_grace,omitempty" json:"disconnect_grace,omitempty"`

	// MaxConcurrentSessions caps live sessions; the least recently used
	// session is evicted when the cap is exceeded.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions,omitempty" json:"max_concurrent_sessions,omitempty"`
}

// SetDefaults sets default values for SessionConfig.
func (c *SessionConfig) SetDefaults() {
	if c.TTL == 0 {
		c.TTL = 30 * time.Minute
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = 100
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = time.Minute
	}
	if c.DisconnectGrace == 0 {
		c.DisconnectGrace = 30 * time.Second
	}
	if c.MaxConcurrentSessions == 0 {
		c.MaxConcurrentSessions = 10000
	}
}

// Validate validates the SessionConfig.
func (c *SessionConfig) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("ttl must be positive")
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("max_history must be at least 1")
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("cleanup_interval must be positive")
	}
	if c.DisconnectGrace < 0 {
		return fmt.Errorf("disconnect_grace must be positive")
	}
	if c.MaxConcurrentSessions < 1 {
		return fmt.Errorf("max_concurrent_sessions must be at least 1")
	}
	return nil
}
