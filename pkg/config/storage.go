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

// StorageBackend identifies a session storage backend type.
type StorageBackend string

const (
	// StorageBackendMemory uses in-process storage (default).
	StorageBackendMemory StorageBackend = "memory"

	// StorageBackendRedis uses Redis with transparent fallback to memory.
	StorageBackendRedis StorageBackend = "redis"
)

// StorageConfig configures the session state store.
type StorageConfig struct {
	// Backend selects the primary backend.
	Backend StorageBackend `yaml:"backend,omitempty" json:"backend,omitempty"`

	// Redis configures the Redis backend. Required when backend is "redis".
	Redis *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`

	// ReconnectInterval is how often a demoted coordinator retries the
	// primary backend. Zero disables the background retry loop.
	ReconnectInterval time.Duration `yaml:"reconnect_interval,omitempty" json:"reconnect_interval,omitempty"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" json:"db,omitempty"`

	// KeyPrefix namespaces every key written by this gateway.
	KeyPrefix string `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`

	// TTL is the default expiry applied when a write carries none.
	TTL time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// SetDefaults sets default values for StorageConfig.
func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StorageBackendMemory
	}
	if c.Backend == StorageBackendRedis {
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		if c.Redis.Addr == "" {
			c.Redis.Addr = "localhost:6379"
		}
		if c.Redis.KeyPrefix == "" {
			c.Redis.KeyPrefix = "talksy:session:"
		}
		if c.Redis.TTL == 0 {
			c.Redis.TTL = 24 * time.Hour
		}
		if c.ReconnectInterval == 0 {
			c.ReconnectInterval = 30 * time.Second
		}
	}
}

// Validate validates the StorageConfig.
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case StorageBackendMemory, StorageBackendRedis:
	default:
		return fmt.Errorf("invalid backend '%s', must be 'memory' or 'redis'", c.Backend)
	}
	if c.ReconnectInterval < 0 {
		return fmt.Errorf("reconnect_interval must not be negative")
	}
	return nil
}
