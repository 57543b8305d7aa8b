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

// Package ratelimit provides per-key request limiting over a sliding
// window. Each key gets its own window counter; the limiter multiplexes
// them under one mutex and reaps idle keys in the background.
package ratelimit

import (
	"sync"
	"time"

	"github.com/emadnahed/talksy/pkg/config"
)

// Result reports the outcome of a single consume attempt.
type Result struct {
	Allowed    bool          `json:"allowed"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Limiter enforces a per-key sliding window limit.
type Limiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*slidingWindow

	stop     chan struct{}
	stopOnce sync.Once
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides the limiter's time source.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter from configuration and starts its idle-key
// reaper. Returns nil when rate limiting is disabled; all methods on a nil
// Limiter allow unconditionally.
func NewLimiter(cfg config.RateLimitConfig, opts ...LimiterOption) *Limiter {
	cfg.SetDefaults()
	if !cfg.IsEnabled() {
		return nil
	}

	l := &Limiter{
		window:  cfg.Window,
		limit:   cfg.MaxRequests,
		now:     time.Now,
		windows: make(map[string]*slidingWindow),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if cfg.CleanupInterval > 0 {
		go l.reapLoop(cfg.CleanupInterval)
	}
	return l
}

// Consume attempts to take one slot for key. On denial the result carries
// a positive RetryAfter: the wait until the oldest counted request ages
// out of the window.
func (l *Limiter) Consume(key string) Result {
	if l == nil {
		return Result{Allowed: true, Remaining: -1}
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists {
		w = newSlidingWindow(l.window, l.limit)
		l.windows[key] = w
	}

	used := w.size(now)
	if used >= l.limit {
		retryAfter := w.oldest().Add(l.window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Millisecond
		}
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    w.oldest().Add(l.window),
			RetryAfter: retryAfter,
		}
	}

	w.record(now)
	return Result{
		Allowed:   true,
		Remaining: l.limit - used - 1,
		ResetAt:   w.oldest().Add(l.window),
	}
}

// Record notes one request for key without an admission check. Use Consume
// for the atomic check-then-record path.
func (l *Limiter) Record(key string) {
	if l == nil {
		return
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists {
		w = newSlidingWindow(l.window, l.limit)
		l.windows[key] = w
	}
	w.evict(now)
	w.record(now)
}

// Peek reports the state for key without consuming a slot.
func (l *Limiter) Peek(key string) Result {
	if l == nil {
		return Result{Allowed: true, Remaining: -1}
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[key]
	if !exists || w.size(now) == 0 {
		return Result{Allowed: true, Remaining: l.limit, ResetAt: now}
	}

	used := w.count
	// Record can push usage past the limit, so remaining bottoms out at 0.
	res := Result{
		Allowed:   used < l.limit,
		Remaining: max(l.limit-used, 0),
		ResetAt:   w.oldest().Add(l.window),
	}
	if !res.Allowed {
		res.RetryAfter = w.oldest().Add(l.window).Sub(now)
	}
	return res
}

// Reset forgets all recorded requests for key.
func (l *Limiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// KeyCount returns the number of tracked keys, counting idle ones not yet
// reaped.
func (l *Limiter) KeyCount() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Close stops the background reaper.
func (l *Limiter) Close() {
	if l == nil {
		return
	}
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

func (l *Limiter) reapLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.reapIdle()
		}
	}
}

// reapIdle drops keys whose windows hold no live timestamps.
func (l *Limiter) reapIdle() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		if w.size(now) == 0 {
			delete(l.windows, key)
		}
	}
}
