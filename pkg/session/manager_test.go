package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/emadnahed/talksy/pkg/config"
	"github.com/emadnahed/talksy/pkg/storage"
)

func testConfig() config.SessionConfig {
	return config.SessionConfig{
		TTL:                   100 * time.Millisecond,
		MaxHistory:            5,
		CleanupInterval:       20 * time.Millisecond,
		DisconnectGrace:       50 * time.Millisecond,
		MaxConcurrentSessions: 3,
	}
}

func TestCreateAndGet(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	sess, restored := m.Create(ctx, "s1")
	if sess == nil {
		t.Fatal("expected session")
	}
	if restored {
		t.Error("fresh session must not be restored")
	}
	if sess.ID != "s1" || sess.Status != StatusActive {
		t.Errorf("unexpected session: %+v", sess)
	}
	if !sess.ExpiresAt.After(sess.CreatedAt) {
		t.Error("expiry must be after creation")
	}

	got := m.Get(ctx, "s1")
	if got == nil || got.ID != "s1" {
		t.Fatalf("Get returned %+v", got)
	}
	if m.Get(ctx, "nope") != nil {
		t.Error("unknown id must return nil")
	}
}

func TestCreateIdempotentWhileActive(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	first, _ := m.Create(ctx, "s1")
	m.AddMessage(ctx, "s1", RoleUser, "hello")

	second, _ := m.Create(ctx, "s1")
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("create on a live session must return it unchanged")
	}
	if second.MessageCount() != 1 {
		t.Errorf("history lost on idempotent create: %d messages", second.MessageCount())
	}
}

func TestExpiryDestroysSession(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	m.Create(ctx, "s1")
	time.Sleep(150 * time.Millisecond)

	if m.Get(ctx, "s1") != nil {
		t.Error("expired session must be gone")
	}
	if m.Count() != 0 {
		t.Errorf("expected 0 sessions, got %d", m.Count())
	}
}

func TestActivityExtendsExpiry(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	m.Create(ctx, "s1")
	for i := 0; i < 4; i++ {
		time.Sleep(60 * time.Millisecond)
		if !m.Touch(ctx, "s1") {
			t.Fatalf("touch %d failed: session expired despite activity", i)
		}
	}
	if m.Get(ctx, "s1") == nil {
		t.Error("session with continuous activity must stay alive")
	}
}

func TestExpiryTracksLastActivity(t *testing.T) {
	cfg := testConfig()
	m := NewManager(cfg)
	defer m.Shutdown()
	ctx := context.Background()

	checkExpiry := func(op string, sess *Session) {
		t.Helper()
		if sess == nil {
			t.Fatalf("%s returned no session", op)
		}
		if !sess.ExpiresAt.Equal(sess.LastActivityAt.Add(cfg.TTL)) {
			t.Errorf("after %s: expires %v, want last activity %v + ttl",
				op, sess.ExpiresAt, sess.LastActivityAt)
		}
	}

	sess, _ := m.Create(ctx, "s1")
	checkExpiry("create", sess)

	time.Sleep(5 * time.Millisecond)
	if !m.Touch(ctx, "s1") {
		t.Fatal("touch failed")
	}
	checkExpiry("touch", m.Get(ctx, "s1"))

	time.Sleep(5 * time.Millisecond)
	checkExpiry("add message", m.AddMessage(ctx, "s1", RoleUser, "hi"))

	before := m.Get(ctx, "s1").ExpiresAt
	time.Sleep(5 * time.Millisecond)
	if !m.MarkDisconnected(ctx, "s1") {
		t.Fatal("disconnect failed")
	}
	sess = m.Reconnect(ctx, "s1")
	checkExpiry("reconnect", sess)
	if !sess.ExpiresAt.After(before) {
		t.Error("reconnect must push expiry strictly later")
	}
}

func TestHistoryTrimFIFO(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	m.Create(ctx, "s1")
	for i := 0; i < 8; i++ {
		m.AddMessage(ctx, "s1", RoleUser, fmt.Sprintf("msg-%d", i))
	}

	sess := m.Get(ctx, "s1")
	if sess.MessageCount() != 5 {
		t.Fatalf("expected history capped at 5, got %d", sess.MessageCount())
	}
	if sess.History[0].Content != "msg-3" {
		t.Errorf("oldest surviving message = %q, want msg-3", sess.History[0].Content)
	}
	if sess.History[4].Content != "msg-7" {
		t.Errorf("newest message = %q, want msg-7", sess.History[4].Content)
	}
}

func TestDisconnectReconnectRoundTrip(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.AddMessage(ctx, "s1", RoleUser, "before disconnect")

	if !m.MarkDisconnected(ctx, "s1") {
		t.Fatal("disconnect failed")
	}
	if m.Has(ctx, "s1") {
		t.Error("disconnected session must not report active")
	}
	if !m.HasDisconnected(ctx, "s1") {
		t.Error("session must report disconnected within grace")
	}
	if m.AddMessage(ctx, "s1", RoleUser, "while away") != nil {
		t.Error("disconnected session must reject messages")
	}

	sess := m.Reconnect(ctx, "s1")
	if sess == nil {
		t.Fatal("reconnect within grace must succeed")
	}
	if sess.Status != StatusActive || sess.DisconnectedAt != nil {
		t.Errorf("reconnected session in bad state: %+v", sess)
	}
	if sess.MessageCount() != 1 {
		t.Errorf("history lost across reconnect: %d messages", sess.MessageCount())
	}
}

func TestGraceExpiryDestroys(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.MarkDisconnected(ctx, "s1")
	time.Sleep(80 * time.Millisecond)

	if m.HasDisconnected(ctx, "s1") {
		t.Error("session must be destroyed after grace elapses")
	}
	if m.Reconnect(ctx, "s1") != nil {
		t.Error("reconnect after grace must fail")
	}
}

func TestCreateSupersedesDisconnected(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.AddMessage(ctx, "s1", RoleUser, "old history")
	m.MarkDisconnected(ctx, "s1")

	sess, _ := m.Create(ctx, "s1")
	if sess.Status != StatusActive {
		t.Errorf("superseding session status = %s", sess.Status)
	}
	if m.Count() != 1 {
		t.Errorf("superseding must not leak records: %d", m.Count())
	}
}

func TestLRUEvictionAtCeiling(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.Create(ctx, "s2")
	m.Create(ctx, "s3")
	m.Touch(ctx, "s1") // s2 is now least recently used

	m.Create(ctx, "s4")
	if m.Count() != 3 {
		t.Fatalf("expected ceiling of 3 sessions, got %d", m.Count())
	}
	if m.Get(ctx, "s2") != nil {
		t.Error("least recently used session must be evicted")
	}
	for _, id := range []string{"s1", "s3", "s4"} {
		if m.Get(ctx, id) == nil {
			t.Errorf("session %s unexpectedly evicted", id)
		}
	}
}

func TestDestroyIdempotent(t *testing.T) {
	m := NewManager(testConfig())
	defer m.Shutdown()
	ctx := context.Background()

	m.Create(ctx, "s1")
	if !m.Destroy(ctx, "s1") {
		t.Error("first destroy must report removal")
	}
	if m.Destroy(ctx, "s1") {
		t.Error("second destroy must be a no-op")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	m := NewManager(testConfig())
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.Shutdown()
	m.Shutdown()

	if m.Count() != 0 {
		t.Errorf("shutdown must clear all sessions, got %d", m.Count())
	}
	if sess, _ := m.Create(ctx, "s2"); sess != nil {
		t.Error("create after shutdown must fail")
	}
}

func TestWriteThroughPersistence(t *testing.T) {
	store := storage.NewMemoryStore(0)
	defer store.Close()

	m := NewManager(testConfig(), WithStore(store))
	ctx := context.Background()

	m.Create(ctx, "s1")
	m.AddMessage(ctx, "s1", RoleUser, "persist me")

	if ok, _ := store.Has(ctx, "s1"); !ok {
		t.Fatal("snapshot must be written through to the store")
	}

	m.Destroy(ctx, "s1")
	if ok, _ := store.Has(ctx, "s1"); ok {
		t.Error("destroy must delete the persisted snapshot")
	}
	m.Shutdown()
}

func TestCreateRestoresFromStore(t *testing.T) {
	store := storage.NewMemoryStore(0)
	defer store.Close()
	ctx := context.Background()

	first := NewManager(testConfig(), WithStore(store))
	first.Create(ctx, "s1")
	first.AddMessage(ctx, "s1", RoleUser, "survives restarts")
	// Simulate a process restart: stop sweeping without deleting snapshots.
	first.stopOnce.Do(func() { close(first.sweepStop) })

	second := NewManager(testConfig(), WithStore(store))
	defer second.Shutdown()

	sess, restored := second.Create(ctx, "s1")
	if !restored {
		t.Fatal("create must report history restored from the store")
	}
	if sess.MessageCount() != 1 || sess.History[0].Content != "survives restarts" {
		t.Errorf("restored history wrong: %+v", sess.History)
	}
}

func TestStoreFailureDoesNotBreakSessions(t *testing.T) {
	m := NewManager(testConfig(), WithStore(failingStore{}))
	defer m.Shutdown()
	ctx := context.Background()

	sess, _ := m.Create(ctx, "s1")
	if sess == nil {
		t.Fatal("session operations must survive storage failures")
	}
	if m.AddMessage(ctx, "s1", RoleUser, "hi") == nil {
		t.Error("message append must survive storage failures")
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("backend down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return fmt.Errorf("backend down")
}
func (failingStore) Delete(context.Context, string) error { return fmt.Errorf("backend down") }
func (failingStore) Has(context.Context, string) (bool, error) {
	return false, fmt.Errorf("backend down")
}
func (failingStore) Keys(context.Context) ([]string, error) { return nil, fmt.Errorf("backend down") }
func (failingStore) Clear(context.Context) error            { return fmt.Errorf("backend down") }
func (failingStore) Count(context.Context) (int64, error)   { return 0, fmt.Errorf("backend down") }
func (failingStore) IsHealthy(context.Context) bool         { return false }
func (failingStore) Close() error                           { return nil }
