package lock

import (
	"context"
	"sync"
	"time"

	"reviewnotify/internal/types"
)

// MemoryLocker is an in-process Locker used in local mode and in tests,
// where cluster visibility is not required. It honors the same lease and
// timeout semantics as LeaseLocker so behavior under contention matches.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	opts   Options
	clock  types.Clock

	sleepFn func(context.Context, time.Duration) error
}

type memoryLease struct {
	holder    string
	expiresAt time.Time
}

var _ Locker = (*MemoryLocker)(nil)

// NewMemoryLocker creates an in-process locker. Zero option fields fall back
// to DefaultOptions.
func NewMemoryLocker(opts Options) *MemoryLocker {
	def := DefaultOptions()
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = def.LeaseTTL
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = def.AcquireTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	return &MemoryLocker{
		leases:  make(map[string]memoryLease),
		opts:    opts,
		clock:   types.RealClock{},
		sleepFn: sleepCtx,
	}
}

// SetClock overrides the clock for testing.
func (l *MemoryLocker) SetClock(c types.Clock) { l.clock = c }

// Acquire claims the key, polling until it succeeds or the acquisition
// timeout elapses.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (Guard, error) {
	holder := newHolderToken()
	deadline := l.clock.Now().Add(l.opts.AcquireTimeout)

	for {
		if l.tryAcquire(key, holder) {
			return &memoryGuard{locker: l, key: key, holder: holder}, nil
		}
		if !l.clock.Now().Add(l.opts.PollInterval).Before(deadline) {
			return nil, types.NewAppError(types.ErrCodeLockTimeout,
				"could not acquire notification lock for "+key, nil)
		}
		if err := l.sleepFn(ctx, l.opts.PollInterval); err != nil {
			return nil, err
		}
	}
}

func (l *MemoryLocker) tryAcquire(key, holder string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if cur, ok := l.leases[key]; ok && cur.expiresAt.After(now) {
		return false
	}
	l.leases[key] = memoryLease{holder: holder, expiresAt: now.Add(l.opts.LeaseTTL)}
	return true
}

func (l *MemoryLocker) release(key, holder string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.leases[key]; ok && cur.holder == holder {
		delete(l.leases, key)
	}
}

type memoryGuard struct {
	locker   *MemoryLocker
	key      string
	holder   string
	released bool
}

func (g *memoryGuard) Release(_ context.Context) error {
	if g.released {
		return nil
	}
	g.released = true
	g.locker.release(g.key, g.holder)
	return nil
}
