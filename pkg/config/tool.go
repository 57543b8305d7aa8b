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

// ToolsConfig configures the tool execution sandbox.
type ToolsConfig struct {
	// DefaultTimeout applies to tools that declare no timeout of their own.
	DefaultTimeout time.Duration `yaml:"default_timeout,omitempty" json:"default_timeout,omitempty"`

	// MaxConcurrentPerSession caps in-flight tool executions per session.
	MaxConcurrentPerSession int `yaml:"max_concurrent_per_session,omitempty" json:"max_concurrent_per_session,omitempty"`

	// MaxParameterBytes caps the serialized size of call parameters.
	MaxParameterBytes int `yaml:"max_parameter_bytes,omitempty" json:"max_parameter_bytes,omitempty"`
}

// SetDefaults sets default values for ToolsConfig.
func (c *ToolsConfig) SetDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.MaxConcurrentPerSession == 0 {
		c.MaxConcurrentPerSession = 5
	}
	if c.MaxParameterBytes == 0 {
		c.MaxParameterBytes = 64 * 1024
	}
}

// Validate validates the ToolsConfig.
func (c *ToolsConfig) Validate() error {
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must be positive")
	}
	if c.MaxConcurrentPerSession < 1 {
		return fmt.Errorf("max_concurrent_per_session must be at least 1")
	}
	if c.MaxParameterBytes < 1 {
		return fmt.Errorf("max_parameter_bytes must be at least 1")
	}
	return nil
}
