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

package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/emadnahed/talksy/pkg/config"
)

// BackendState describes which backend is currently authoritative.
type BackendState struct {
	// ActiveBackend is "primary" or "fallback".
	ActiveBackend string `json:"active_backend"`

	// UsingFallback is true while demoted from the primary.
	UsingFallback bool `json:"using_fallback"`

	// PrimaryHealthy reports the last known primary health.
	PrimaryHealthy bool `json:"primary_healthy"`
}

// FailoverCoordinator wraps a primary (remote) and a fallback (local) store.
//
// Every operation runs against the active backend. An operational error on
// the primary demotes to the fallback and transparently retries the same
// call once there, so callers never see the primary's transient error.
// TryReconnect promotes back to the primary when it recovers; when a
// reconnect interval is configured, a background loop drives it while
// demoted.
//
// Health and backend state are exposed for observability only; writes always
// land somewhere.
type FailoverCoordinator struct {
	primary  Store // nil when the deployment is memory-only
	fallback Store

	mu            sync.RWMutex
	usingFallback bool

	onFailover func() // optional observability hook

	// reconnectEvery drives the background retry loop while demoted.
	// Zero leaves reconnection entirely to explicit TryReconnect calls.
	reconnectEvery time.Duration
	stop           chan struct{}
	stopOnce       sync.Once
}

// CoordinatorOption configures a FailoverCoordinator.
type CoordinatorOption func(*FailoverCoordinator)

// WithFailoverHook registers a callback invoked on every demotion.
func WithFailoverHook(fn func()) CoordinatorOption {
	return func(c *FailoverCoordinator) {
		c.onFailover = fn
	}
}

// WithReconnectInterval sets how often a demoted coordinator retries the
// primary in the background. Zero disables the retry loop.
func WithReconnectInterval(d time.Duration) CoordinatorOption {
	return func(c *FailoverCoordinator) {
		c.reconnectEvery = d
	}
}

// NewCoordinator builds a coordinator from config. When the redis backend is
// configured but unreachable, the coordinator starts demoted on the
// in-process fallback rather than failing.
func NewCoordinator(ctx context.Context, cfg *config.StorageConfig, opts ...CoordinatorOption) *FailoverCoordinator {
	fallback := NewMemoryStore(time.Minute)

	var primary Store
	usingFallback := false
	if cfg != nil && cfg.Backend == config.StorageBackendRedis {
		store, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("Primary session store unavailable, starting on fallback", "error", err)
			usingFallback = true
		} else {
			primary = store
			slog.Info("Primary session store connected", "addr", cfg.Redis.Addr)
		}
	}

	c := &FailoverCoordinator{
		primary:       primary,
		fallback:      fallback,
		usingFallback: usingFallback,
	}
	if cfg != nil {
		c.reconnectEvery = cfg.ReconnectInterval
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startReconnectLoop()
	return c
}

// NewCoordinatorWith wraps explicit primary and fallback stores.
// primary may be nil for a memory-only deployment.
func NewCoordinatorWith(primary, fallback Store, opts ...CoordinatorOption) *FailoverCoordinator {
	c := &FailoverCoordinator{
		primary:  primary,
		fallback: fallback,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.startReconnectLoop()
	return c
}

func (c *FailoverCoordinator) startReconnectLoop() {
	if c.primary == nil || c.reconnectEvery <= 0 {
		return
	}
	c.stop = make(chan struct{})
	go c.reconnectLoop()
}

// reconnectLoop retries the primary on a ticker while demoted.
func (c *FailoverCoordinator) reconnectLoop() {
	ticker := time.NewTicker(c.reconnectEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.RLock()
			demoted := c.usingFallback
			c.mu.RUnlock()
			if !demoted {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.TryReconnect(ctx)
			cancel()
		}
	}
}

// onPrimary reports whether calls should go to the primary.
func (c *FailoverCoordinator) onPrimary() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primary != nil && !c.usingFallback
}

// demote switches the active backend to the fallback.
func (c *FailoverCoordinator) demote(op string, err error) {
	c.mu.Lock()
	already := c.usingFallback
	c.usingFallback = true
	c.mu.Unlock()

	if !already {
		slog.Warn("Primary session store failed, demoting to fallback", "op", op, "error", err)
		if c.onFailover != nil {
			c.onFailover()
		}
	}
}

// TryReconnect attempts to restore the primary while demoted.
// Returns true if the primary is active after the call.
func (c *FailoverCoordinator) TryReconnect(ctx context.Context) bool {
	c.mu.RLock()
	primary := c.primary
	demoted := c.usingFallback
	c.mu.RUnlock()

	if primary == nil {
		return false
	}
	if !demoted {
		return true
	}
	if !primary.IsHealthy(ctx) {
		return false
	}

	c.mu.Lock()
	c.usingFallback = false
	c.mu.Unlock()
	slog.Info("Primary session store recovered, promoting back")
	return true
}

// State returns the current backend state snapshot.
func (c *FailoverCoordinator) State(ctx context.Context) BackendState {
	c.mu.RLock()
	primary := c.primary
	demoted := c.usingFallback
	c.mu.RUnlock()

	state := BackendState{ActiveBackend: "primary"}
	if primary == nil || demoted {
		state.ActiveBackend = "fallback"
		state.UsingFallback = demoted
	}
	if primary != nil {
		state.PrimaryHealthy = primary.IsHealthy(ctx)
	}
	return state
}

// Get returns the value for key from the active backend.
func (c *FailoverCoordinator) Get(ctx context.Context, key string) ([]byte, error) {
	if c.onPrimary() {
		value, err := c.primary.Get(ctx, key)
		if !IsOperational(err) {
			return value, err
		}
		c.demote("get", err)
	}
	return c.fallback.Get(ctx, key)
}

// Set stores value under key on the active backend.
func (c *FailoverCoordinator) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.onPrimary() {
		err := c.primary.Set(ctx, key, value, ttl)
		if !IsOperational(err) {
			return err
		}
		c.demote("set", err)
	}
	return c.fallback.Set(ctx, key, value, ttl)
}

// Delete removes key from the active backend.
func (c *FailoverCoordinator) Delete(ctx context.Context, key string) error {
	if c.onPrimary() {
		err := c.primary.Delete(ctx, key)
		if !IsOperational(err) {
			return err
		}
		c.demote("delete", err)
	}
	return c.fallback.Delete(ctx, key)
}

// Has reports whether key exists on the active backend.
func (c *FailoverCoordinator) Has(ctx context.Context, key string) (bool, error) {
	if c.onPrimary() {
		ok, err := c.primary.Has(ctx, key)
		if !IsOperational(err) {
			return ok, err
		}
		c.demote("has", err)
	}
	return c.fallback.Has(ctx, key)
}

// Keys returns all live keys on the active backend.
func (c *FailoverCoordinator) Keys(ctx context.Context) ([]string, error) {
	if c.onPrimary() {
		keys, err := c.primary.Keys(ctx)
		if !IsOperational(err) {
			return keys, err
		}
		c.demote("keys", err)
	}
	return c.fallback.Keys(ctx)
}

// Clear removes all keys on the active backend.
func (c *FailoverCoordinator) Clear(ctx context.Context) error {
	if c.onPrimary() {
		err := c.primary.Clear(ctx)
		if !IsOperational(err) {
			return err
		}
		c.demote("clear", err)
	}
	return c.fallback.Clear(ctx)
}

// Count returns the number of live keys on the active backend.
func (c *FailoverCoordinator) Count(ctx context.Context) (int64, error) {
	if c.onPrimary() {
		n, err := c.primary.Count(ctx)
		if !IsOperational(err) {
			return n, err
		}
		c.demote("count", err)
	}
	return c.fallback.Count(ctx)
}

// IsHealthy reports whether the active backend is reachable.
func (c *FailoverCoordinator) IsHealthy(ctx context.Context) bool {
	if c.onPrimary() {
		return c.primary.IsHealthy(ctx)
	}
	return c.fallback.IsHealthy(ctx)
}

// Close stops the reconnect loop and closes both backends.
func (c *FailoverCoordinator) Close() error {
	c.stopOnce.Do(func() {
		if c.stop != nil {
			close(c.stop)
		}
	})
	var err error
	if c.primary != nil {
		err = c.primary.Close()
	}
	if ferr := c.fallback.Close(); err == nil {
		err = ferr
	}
	return err
}

var _ Store = (*FailoverCoordinator)(nil)
