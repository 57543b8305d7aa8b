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

package session

import (
	"container/list"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/emadnahed/talksy/pkg/config"
	"github.com/emadnahed/talksy/pkg/storage"
)

// record is the live, manager-owned state for one session.
type record struct {
	session Session

	expiryTimer *time.Timer
	graceTimer  *time.Timer
	lruElem     *list.Element
}

// Manager owns the canonical session map, the LRU order, and both timer
// families (TTL expiry, disconnect grace).
//
// One mutex serializes every mutation and every timer callback, so
// destruction never observes a half-updated record. Callers only ever
// receive snapshots.
type Manager struct {
	cfg   config.SessionConfig
	store storage.Store // optional write-through persistence

	mu       sync.Mutex
	sessions map[string]*record
	lru      *list.List // front = most recently used, element value = session id

	sweepStop chan struct{}
	stopOnce  sync.Once
	closed    bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore enables write-through persistence of session snapshots.
// Storage errors are absorbed; the in-memory map stays authoritative.
func WithStore(store storage.Store) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// NewManager creates a session manager and starts its background sweep.
func NewManager(cfg config.SessionConfig, opts ...ManagerOption) *Manager {
	cfg.SetDefaults()

	m := &Manager{
		cfg:       cfg,
		sessions:  make(map[string]*record),
		lru:       list.New(),
		sweepStop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.CleanupInterval > 0 {
		go m.sweepLoop()
	}
	return m
}

// Create returns the live active session for id unchanged, or allocates a
// fresh one. A disconnected session for the same id is superseded. The
// second return is true when history was recovered from the persistent
// store rather than started empty.
//
// Inserting beyond the session ceiling evicts the least recently used
// session, whatever its status.
func (m *Manager) Create(ctx context.Context, id string) (*Session, bool) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false
	}

	if rec, exists := m.sessions[id]; exists {
		if rec.session.Status == StatusActive && rec.session.ExpiresAt.After(now) {
			// Idempotent create: same live session, refreshed recency.
			m.lru.MoveToFront(rec.lruElem)
			snap := cloneSession(&rec.session)
			return &snap, false
		}
		// Disconnected or stale: superseded by a fresh session.
		m.destroyLocked(rec, "superseded")
	}

	restored := false
	history := []Message{}
	if m.store != nil {
		if data, err := m.store.Get(ctx, id); err == nil {
			var snap Session
			if jsonErr := json.Unmarshal(data, &snap); jsonErr == nil && len(snap.History) > 0 {
				history = snap.History
				restored = true
			}
		} else if storage.IsOperational(err) {
			slog.Warn("Session store read failed", "session", id, "error", err)
		}
	}

	if len(m.sessions) >= m.cfg.MaxConcurrentSessions {
		m.evictLRULocked()
	}

	rec := &record{
		session: Session{
			ID:             id,
			Status:         StatusActive,
			CreatedAt:      now,
			LastActivityAt: now,
			ExpiresAt:      now.Add(m.cfg.TTL),
			History:        history,
			Metadata:       make(map[string]any),
		},
	}
	rec.expiryTimer = time.AfterFunc(m.cfg.TTL, func() { m.onExpiry(id) })
	rec.lruElem = m.lru.PushFront(id)
	m.sessions[id] = rec

	m.persistLocked(ctx, rec)

	snap := cloneSession(&rec.session)
	return &snap, restored
}

// Get returns the session for id, or nil. A session whose expiry has
// already passed is destroyed on the spot and reported absent.
func (m *Manager) Get(ctx context.Context, id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.liveLocked(ctx, id)
	if rec == nil {
		return nil
	}
	snap := cloneSession(&rec.session)
	return &snap
}

// Has reports whether a live active session exists for id.
func (m *Manager) Has(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.liveLocked(ctx, id)
	return rec != nil && rec.session.Status == StatusActive
}

// HasDisconnected reports whether a disconnected session within its grace
// window exists for id.
func (m *Manager) HasDisconnected(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.liveLocked(ctx, id)
	return rec != nil && rec.session.Status == StatusDisconnected
}

// MarkDisconnected transitions an active session to disconnected and starts
// its grace timer. Returns false if no active session exists for id.
func (m *Manager) MarkDisconnected(ctx context.Context, id string) bool {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.liveLocked(ctx, id)
	if rec == nil || rec.session.Status != StatusActive {
		return false
	}

	rec.session.Status = StatusDisconnected
	disconnectedAt := now
	rec.session.DisconnectedAt = &disconnectedAt

	// The grace timer alone governs a disconnected session's lifetime.
	rec.expiryTimer.Stop()
	rec.graceTimer = time.AfterFunc(m.cfg.DisconnectGrace, func() { m.onGraceExpiry(id) })

	m.persistLocked(ctx, rec)
	return true
}

// Reconnect transitions a disconnected session back to active, cancelling
// its grace timer and resetting the TTL from now. Returns nil if no
// disconnected session exists for id.
func (m *Manager) Reconnect(ctx context.Context, id string) *Session {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.liveLocked(ctx, id)
	if rec == nil || rec.session.Status != StatusDisconnected {
		return nil
	}

	if rec.graceTimer != nil {
		rec.graceTimer.Stop()
		rec.graceTimer = nil
	}

	rec.session.Status = StatusActive
	rec.session.DisconnectedAt = nil
	m.touchLocked(rec, now)

	m.persistLocked(ctx, rec)

	snap := cloneSession(&rec.session)
	return &snap
}

// AddMessage appends to the session history, trimming the oldest entries
// beyond the history bound, and refreshes activity. Returns nil for
// missing or disconnected sessions.
func (m *Manager) AddMessage(ctx context.Context, id string, role Role, content string) *Session {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.liveLocked(ctx, id)
	if rec == nil || rec.session.Status != StatusActive {
		return nil
	}

	rec.session.History = append(rec.session.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	if overflow := len(rec.session.History) - m.cfg.MaxHistory; overflow > 0 {
		rec.session.History = rec.session.History[overflow:]
	}

	m.touchLocked(rec, now)
	m.persistLocked(ctx, rec)

	snap := cloneSession(&rec.session)
	return &snap
}

// Touch refreshes activity, expiry, and LRU recency without appending a
// message. Returns false for missing or disconnected sessions.
func (m *Manager) Touch(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.liveLocked(ctx, id)
	if rec == nil || rec.session.Status != StatusActive {
		return false
	}

	m.touchLocked(rec, time.Now())
	m.persistLocked(ctx, rec)
	return true
}

// SetMetadata attaches a free-form metadata entry to the session.
// Returns false if no live session exists for id.
func (m *Manager) SetMetadata(ctx context.Context, id, key string, value any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.liveLocked(ctx, id)
	if rec == nil {
		return false
	}
	rec.session.Metadata[key] = value
	m.persistLocked(ctx, rec)
	return true
}

// Destroy removes the session and cancels its timers. Idempotent; returns
// false if nothing was removed.
func (m *Manager) Destroy(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.sessions[id]
	if !exists {
		return false
	}
	m.destroyLocked(rec, "destroyed")
	return true
}

// Count returns the number of live sessions (active and disconnected).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown cancels every outstanding timer and clears all state.
// Safe to invoke multiple times.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.sweepStop)
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.sessions {
		if rec.expiryTimer != nil {
			rec.expiryTimer.Stop()
		}
		if rec.graceTimer != nil {
			rec.graceTimer.Stop()
		}
	}
	m.sessions = make(map[string]*record)
	m.lru.Init()
	m.closed = true
}

// liveLocked returns the record for id if it is still live, destroying it
// eagerly when its deadline has already passed. Lazy expiry must never
// leak a stale session to a caller.
func (m *Manager) liveLocked(ctx context.Context, id string) *record {
	rec, exists := m.sessions[id]
	if !exists {
		return nil
	}

	now := time.Now()
	switch rec.session.Status {
	case StatusActive:
		if !rec.session.ExpiresAt.After(now) {
			m.destroyLocked(rec, "expired")
			return nil
		}
	case StatusDisconnected:
		if rec.session.DisconnectedAt != nil &&
			!rec.session.DisconnectedAt.Add(m.cfg.DisconnectGrace).After(now) {
			m.destroyLocked(rec, "grace elapsed")
			return nil
		}
	}
	return rec
}

// touchLocked refreshes activity time, expiry, the expiry timer, and LRU
// recency. Callers hold m.mu.
func (m *Manager) touchLocked(rec *record, now time.Time) {
	rec.session.LastActivityAt = now
	rec.session.ExpiresAt = now.Add(m.cfg.TTL)
	rec.expiryTimer.Reset(m.cfg.TTL)
	m.lru.MoveToFront(rec.lruElem)
}

// evictLRULocked destroys the least recently used session to make room.
func (m *Manager) evictLRULocked() {
	tail := m.lru.Back()
	if tail == nil {
		return
	}
	id := tail.Value.(string)
	rec, exists := m.sessions[id]
	if !exists {
		m.lru.Remove(tail)
		return
	}
	// A disconnected session inside its grace window is fair game here;
	// its client forfeits reconnection.
	slog.Warn("Session ceiling reached, evicting least recently used",
		"session", id, "status", rec.session.Status)
	m.destroyLocked(rec, "evicted")
}

// destroyLocked removes the record, cancels its timers, and deletes the
// persisted snapshot. Callers hold m.mu.
func (m *Manager) destroyLocked(rec *record, reason string) {
	if rec.expiryTimer != nil {
		rec.expiryTimer.Stop()
	}
	if rec.graceTimer != nil {
		rec.graceTimer.Stop()
	}
	if rec.lruElem != nil {
		m.lru.Remove(rec.lruElem)
	}
	delete(m.sessions, rec.session.ID)

	if m.store != nil {
		if err := m.store.Delete(context.Background(), rec.session.ID); storage.IsOperational(err) {
			slog.Warn("Session store delete failed", "session", rec.session.ID, "error", err)
		}
	}

	slog.Debug("Session destroyed", "session", rec.session.ID, "reason", reason)
}

// persistLocked writes the session snapshot through to the store.
// Best effort: storage failures never fail the operation.
func (m *Manager) persistLocked(ctx context.Context, rec *record) {
	if m.store == nil {
		return
	}

	data, err := json.Marshal(rec.session)
	if err != nil {
		slog.Warn("Session snapshot marshal failed", "session", rec.session.ID, "error", err)
		return
	}

	ttl := time.Until(rec.session.ExpiresAt)
	if err := m.store.Set(ctx, rec.session.ID, data, ttl); storage.IsOperational(err) {
		slog.Warn("Session store write failed", "session", rec.session.ID, "error", err)
	}
}

// onExpiry is the TTL timer callback for an active session.
func (m *Manager) onExpiry(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.sessions[id]
	if !exists || rec.session.Status != StatusActive {
		return
	}
	if rec.session.ExpiresAt.After(time.Now()) {
		// Activity raced the timer; the reset timer will fire again.
		return
	}
	m.destroyLocked(rec, "expired")
}

// onGraceExpiry is the grace timer callback for a disconnected session.
func (m *Manager) onGraceExpiry(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.sessions[id]
	if !exists || rec.session.Status != StatusDisconnected {
		return
	}
	m.destroyLocked(rec, "grace elapsed")
}

// sweepLoop periodically destroys active sessions whose expiry has passed.
// Disconnected sessions are governed solely by their grace timer.
func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.sweepStop:
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

func (m *Manager) sweepExpired() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.sessions {
		if rec.session.Status == StatusActive && !rec.session.ExpiresAt.After(now) {
			m.destroyLocked(rec, "expired")
		}
	}
}

// cloneSession returns a deep copy safe to hand to callers.
func cloneSession(s *Session) Session {
	snap := *s
	snap.History = make([]Message, len(s.History))
	copy(snap.History, s.History)
	if s.DisconnectedAt != nil {
		at := *s.DisconnectedAt
		snap.DisconnectedAt = &at
	}
	if s.Metadata != nil {
		snap.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			snap.Metadata[k] = v
		}
	}
	return snap
}
