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

// Package config defines the gateway configuration surface.
//
// Every section follows the same contract: SetDefaults fills zero values,
// Validate rejects inconsistent settings. The loader runs both after
// decoding, so downstream components never see a half-configured section.
package config

import "fmt"

// Config is the root configuration for the gateway process.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty" json:"server,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty" json:"session,omitempty"`
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	Tools     ToolsConfig     `yaml:"tools,omitempty" json:"tools,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty" json:"storage,omitempty"`
	LLM       LLMConfig       `yaml:"llm,omitempty" json:"llm,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// SetDefaults fills defaults on every section.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Session.SetDefaults()
	c.RateLimit.SetDefaults()
	c.Tools.SetDefaults()
	c.Storage.SetDefaults()
	c.LLM.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	return nil
}

// BoolPtr returns a pointer to the given bool.
func BoolPtr(b bool) *bool { return &b }

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled returns true if metrics are enabled.
func (c *MetricsConfig) IsEnabled() bool {
	return c != nil && (c.Enabled == nil || *c.Enabled)
}

// SetDefaults sets default values for MetricsConfig.
func (c *MetricsConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
}
