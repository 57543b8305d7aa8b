package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// flakyStore wraps a MemoryStore and fails on demand.
type flakyStore struct {
	*MemoryStore
	failing atomic.Bool
}

func (s *flakyStore) err() error {
	if s.failing.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.err(); err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if err := s.err(); err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, key)
}

func (s *flakyStore) Has(ctx context.Context, key string) (bool, error) {
	if err := s.err(); err != nil {
		return false, err
	}
	return s.MemoryStore.Has(ctx, key)
}

func (s *flakyStore) IsHealthy(ctx context.Context) bool {
	return !s.failing.Load()
}

func newFailoverPair() (*flakyStore, *MemoryStore, *FailoverCoordinator) {
	primary := &flakyStore{MemoryStore: NewMemoryStore(0)}
	fallback := NewMemoryStore(0)
	return primary, fallback, NewCoordinatorWith(primary, fallback)
}

func TestFailoverServesFromPrimary(t *testing.T) {
	primary, _, c := newFailoverPair()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if got, _ := primary.MemoryStore.Get(ctx, "k"); string(got) != "v" {
		t.Error("write must land on the primary")
	}

	state := c.State(ctx)
	if state.UsingFallback || state.ActiveBackend != "primary" {
		t.Errorf("state = %+v", state)
	}
}

func TestNotFoundDoesNotDemote(t *testing.T) {
	_, _, c := newFailoverPair()
	ctx := context.Background()

	if _, err := c.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if c.State(ctx).UsingFallback {
		t.Error("a miss must not demote the primary")
	}
}

func TestOperationalErrorDemotesAndRetries(t *testing.T) {
	primary, fallback, c := newFailoverPair()
	ctx := context.Background()

	primary.failing.Store(true)
	// The failing write must transparently land on the fallback.
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set during failover: %v", err)
	}
	if got, _ := fallback.Get(ctx, "k"); string(got) != "v" {
		t.Error("retried write must land on the fallback")
	}
	if !c.State(ctx).UsingFallback {
		t.Error("operational error must demote")
	}

	// Subsequent reads stay on the fallback without touching the primary.
	if got, err := c.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Errorf("get after demotion: %q, %v", got, err)
	}
}

func TestFailoverHookFiresOncePerDemotion(t *testing.T) {
	primary := &flakyStore{MemoryStore: NewMemoryStore(0)}
	fallback := NewMemoryStore(0)
	fired := 0
	c := NewCoordinatorWith(primary, fallback, WithFailoverHook(func() { fired++ }))
	ctx := context.Background()

	primary.failing.Store(true)
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)

	if fired != 1 {
		t.Errorf("hook fired %d times, want once per demotion", fired)
	}
}

func TestTryReconnectPromotes(t *testing.T) {
	primary, _, c := newFailoverPair()
	ctx := context.Background()

	primary.failing.Store(true)
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if !c.State(ctx).UsingFallback {
		t.Fatal("expected demotion")
	}

	// Still down: reconnect must fail and stay demoted.
	if c.TryReconnect(ctx) {
		t.Error("reconnect must fail while the primary is down")
	}

	primary.failing.Store(false)
	if !c.TryReconnect(ctx) {
		t.Fatal("reconnect must succeed once the primary is healthy")
	}
	state := c.State(ctx)
	if state.UsingFallback || state.ActiveBackend != "primary" {
		t.Errorf("state after promotion = %+v", state)
	}

	if err := c.Set(ctx, "k2", []byte("v2"), 0); err != nil {
		t.Fatal(err)
	}
	if got, _ := primary.MemoryStore.Get(ctx, "k2"); string(got) != "v2" {
		t.Error("writes after promotion must land on the primary")
	}
}

func TestReconnectLoopPromotesWhenPrimaryRecovers(t *testing.T) {
	primary := &flakyStore{MemoryStore: NewMemoryStore(0)}
	fallback := NewMemoryStore(0)
	c := NewCoordinatorWith(primary, fallback, WithReconnectInterval(10*time.Millisecond))
	defer c.Close()
	ctx := context.Background()

	primary.failing.Store(true)
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if !c.State(ctx).UsingFallback {
		t.Fatal("expected demotion")
	}

	// Once the primary heals, the background loop must promote without
	// any explicit TryReconnect call.
	primary.failing.Store(false)
	deadline := time.Now().Add(2 * time.Second)
	for c.State(ctx).UsingFallback {
		if time.Now().After(deadline) {
			t.Fatal("coordinator never promoted back to the primary")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if c.State(ctx).ActiveBackend != "primary" {
		t.Errorf("state = %+v", c.State(ctx))
	}
}

func TestMemoryOnlyCoordinator(t *testing.T) {
	fallback := NewMemoryStore(0)
	c := NewCoordinatorWith(nil, fallback)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if got, err := c.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Errorf("get = %q, %v", got, err)
	}
	if c.TryReconnect(ctx) {
		t.Error("memory-only deployment has no primary to reconnect")
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if got, err := s.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("get before expiry: %q, %v", got, err)
	}

	time.Sleep(40 * time.Millisecond)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired key must be gone, err = %v", err)
	}
}

func TestMemoryStoreValueIsolation(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	value := []byte("original")
	_ = s.Set(ctx, "k", value, 0)
	value[0] = 'X'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Error("store must not alias caller buffers")
	}
	got[0] = 'Y'
	again, _ := s.Get(ctx, "k")
	if string(again) != "original" {
		t.Error("returned buffers must not alias stored data")
	}
}

func TestIsOperational(t *testing.T) {
	if IsOperational(nil) {
		t.Error("nil is not operational")
	}
	if IsOperational(ErrNotFound) {
		t.Error("not-found is a normal negative, not operational")
	}
	if !IsOperational(errors.New("connection refused")) {
		t.Error("real errors are operational")
	}
}
