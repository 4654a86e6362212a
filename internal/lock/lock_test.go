package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reviewnotify/internal/types"
)

// fakeClock is a manually advanced clock shared with the sleep stub so
// timeout tests run without real waiting.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (nopLogger) Warn(string, ...any)        {}
func (nopLogger) With(...any) types.Logger   { return nopLogger{} }

// mockLeaseStore scripts TryAcquire outcomes and records calls.
type mockLeaseStore struct {
	mu       sync.Mutex
	grants   []bool // consumed per TryAcquire call; exhausted = deny
	err      error
	acquires []string // holder per attempt
	released []string // "key/holder"
}

func (m *mockLeaseStore) TryAcquire(_ context.Context, key, holder string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.acquires = append(m.acquires, holder)
	if len(m.grants) == 0 {
		return false, nil
	}
	ok := m.grants[0]
	m.grants = m.grants[1:]
	return ok, nil
}

func (m *mockLeaseStore) Release(_ context.Context, key, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, key+"/"+holder)
	return nil
}

func newTestLocker(store LeaseStore, clock *fakeClock) *LeaseLocker {
	l := NewLeaseLocker(store, Options{
		LeaseTTL:       time.Minute,
		AcquireTimeout: time.Second,
		PollInterval:   100 * time.Millisecond,
	}, nopLogger{})
	l.SetClock(clock)
	l.sleepFn = func(_ context.Context, d time.Duration) error {
		clock.Advance(d)
		return nil
	}
	return l
}

func TestLeaseLockerAcquireFirstTry(t *testing.T) {
	store := &mockLeaseStore{grants: []bool{true}}
	locker := newTestLocker(store, newFakeClock())

	guard, err := locker.Acquire(context.Background(), "review:42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.acquires) != 1 {
		t.Fatalf("expected 1 acquire attempt, got %d", len(store.acquires))
	}

	if err := guard.Release(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if len(store.released) != 1 {
		t.Fatalf("expected 1 release, got %d", len(store.released))
	}
	if store.released[0] != "review:42/"+store.acquires[0] {
		t.Errorf("release used wrong key/holder: %s", store.released[0])
	}
}

func TestLeaseLockerPollsUntilGranted(t *testing.T) {
	store := &mockLeaseStore{grants: []bool{false, false, true}}
	locker := newTestLocker(store, newFakeClock())

	guard, err := locker.Acquire(context.Background(), "comment:7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer guard.Release(context.Background())

	if len(store.acquires) != 3 {
		t.Errorf("expected 3 acquire attempts, got %d", len(store.acquires))
	}
}

func TestLeaseLockerTimesOut(t *testing.T) {
	store := &mockLeaseStore{} // never grants
	locker := newTestLocker(store, newFakeClock())

	_, err := locker.Acquire(context.Background(), "review:42")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeLockTimeout {
		t.Errorf("expected code %s, got %s", types.ErrCodeLockTimeout, appErr.Code)
	}
}

func TestLeaseLockerStoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := &mockLeaseStore{err: storeErr}
	locker := newTestLocker(store, newFakeClock())

	_, err := locker.Acquire(context.Background(), "review:42")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestLeaseLockerContextCancellation(t *testing.T) {
	store := &mockLeaseStore{}
	clock := newFakeClock()
	locker := newTestLocker(store, clock)
	locker.sleepFn = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := locker.Acquire(ctx, "review:42")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGuardReleaseIsIdempotent(t *testing.T) {
	store := &mockLeaseStore{grants: []bool{true}}
	locker := newTestLocker(store, newFakeClock())

	guard, err := locker.Acquire(context.Background(), "review:42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	guard.Release(context.Background())
	guard.Release(context.Background())

	if len(store.released) != 1 {
		t.Errorf("expected a single release call, got %d", len(store.released))
	}
}

func TestMemoryLockerMutualExclusion(t *testing.T) {
	clock := newFakeClock()
	locker := NewMemoryLocker(Options{
		LeaseTTL:       time.Minute,
		AcquireTimeout: time.Second,
		PollInterval:   100 * time.Millisecond,
	})
	locker.SetClock(clock)
	locker.sleepFn = func(_ context.Context, d time.Duration) error {
		clock.Advance(d)
		return nil
	}

	guard, err := locker.Acquire(context.Background(), "review:1")
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	if _, err := locker.Acquire(context.Background(), "review:1"); err == nil {
		t.Fatal("expected second acquire to time out while lease held")
	}

	if err := guard.Release(context.Background()); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	guard2, err := locker.Acquire(context.Background(), "review:1")
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	guard2.Release(context.Background())
}

func TestMemoryLockerExpiredLeaseIsReclaimable(t *testing.T) {
	clock := newFakeClock()
	locker := NewMemoryLocker(Options{
		LeaseTTL:       time.Minute,
		AcquireTimeout: time.Second,
		PollInterval:   100 * time.Millisecond,
	})
	locker.SetClock(clock)
	locker.sleepFn = func(_ context.Context, d time.Duration) error {
		clock.Advance(d)
		return nil
	}

	if _, err := locker.Acquire(context.Background(), "review:9"); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	// Holder crashes without releasing; lease expires.
	clock.Advance(2 * time.Minute)

	guard, err := locker.Acquire(context.Background(), "review:9")
	if err != nil {
		t.Fatalf("acquire after expiry failed: %v", err)
	}
	guard.Release(context.Background())
}
