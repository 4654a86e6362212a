// Package lock implements the per-notification-key mutual exclusion that
// prevents duplicate sends. The lock must be visible across concurrently
// dispatching processes, not just in-process, because the platform's event
// delivery is not exactly-once: the same activity can reach two workers.
//
// The production implementation is a lease in a shared Postgres table. A
// lease carries an explicit TTL so a crashed holder cannot pin a key forever,
// and acquisition is bounded by a timeout so a stuck holder cannot stall a
// dispatcher indefinitely. Both bounds are configuration, not guesses.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reviewnotify/internal/types"
)

// Guard represents an acquired lock. Release must be called on every exit
// path; deferring it immediately after acquisition is the expected pattern.
type Guard interface {
	Release(ctx context.Context) error
}

// Locker provides keyed mutual exclusion. For any two acquisitions of the
// same key, at most one Guard exists at a time.
type Locker interface {
	Acquire(ctx context.Context, key string) (Guard, error)
}

// LeaseStore is the minimal persistence interface required by LeaseLocker,
// implemented by db.LockRepository. Depending on this narrow interface keeps
// the locker testable with lightweight mocks.
type LeaseStore interface {
	// TryAcquire claims the key's lease for holder until expiresAt, or
	// reports false when another holder owns an unexpired lease.
	TryAcquire(ctx context.Context, key, holder string, expiresAt time.Time) (bool, error)

	// Release frees the lease if holder still owns it.
	Release(ctx context.Context, key, holder string) error
}

// Options tunes the lease locker.
type Options struct {
	// LeaseTTL bounds how long a crashed holder keeps a key locked.
	LeaseTTL time.Duration
	// AcquireTimeout bounds how long Acquire blocks before giving up.
	AcquireTimeout time.Duration
	// PollInterval is the wait between claim attempts under contention.
	PollInterval time.Duration
}

// DefaultOptions returns the locker defaults used when configuration does
// not override them.
func DefaultOptions() Options {
	return Options{
		LeaseTTL:       60 * time.Second,
		AcquireTimeout: 10 * time.Second,
		PollInterval:   250 * time.Millisecond,
	}
}

// LeaseLocker implements Locker on top of a shared LeaseStore.
type LeaseLocker struct {
	store  LeaseStore
	opts   Options
	clock  types.Clock
	logger types.Logger

	sleepFn func(context.Context, time.Duration) error
}

// Compile-time assertion that LeaseLocker implements Locker.
var _ Locker = (*LeaseLocker)(nil)

// NewLeaseLocker creates a LeaseLocker with the given store and options.
// Zero option fields fall back to DefaultOptions.
func NewLeaseLocker(store LeaseStore, opts Options, logger types.Logger) *LeaseLocker {
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
	return &LeaseLocker{
		store:   store,
		opts:    opts,
		clock:   types.RealClock{},
		logger:  logger,
		sleepFn: sleepCtx,
	}
}

// SetClock overrides the clock for testing.
func (l *LeaseLocker) SetClock(c types.Clock) { l.clock = c }

// Acquire claims the lease for key, polling until it succeeds or the
// acquisition timeout elapses. On timeout it returns an AppError with
// ErrCodeLockTimeout; the caller aborts this dispatch attempt only.
func (l *LeaseLocker) Acquire(ctx context.Context, key string) (Guard, error) {
	holder := newHolderToken()
	deadline := l.clock.Now().Add(l.opts.AcquireTimeout)

	for {
		ok, err := l.store.TryAcquire(ctx, key, holder, l.clock.Now().Add(l.opts.LeaseTTL))
		if err != nil {
			return nil, err
		}
		if ok {
			return &leaseGuard{locker: l, key: key, holder: holder}, nil
		}

		if !l.clock.Now().Add(l.opts.PollInterval).Before(deadline) {
			l.logger.Warn("lock acquisition timed out",
				"key", key,
				"timeout", l.opts.AcquireTimeout.String(),
			)
			return nil, types.NewAppError(types.ErrCodeLockTimeout,
				"could not acquire notification lock for "+key, nil)
		}

		if err := l.sleepFn(ctx, l.opts.PollInterval); err != nil {
			return nil, err
		}
	}
}

// leaseGuard releases the underlying lease exactly once.
type leaseGuard struct {
	locker   *LeaseLocker
	key      string
	holder   string
	released bool
}

// Release frees the lease. Safe to call more than once; only the first call
// reaches the store.
func (g *leaseGuard) Release(ctx context.Context) error {
	if g.released {
		return nil
	}
	g.released = true
	return g.locker.store.Release(ctx, g.key, g.holder)
}

// newHolderToken produces a unique holder identity so releasing an expired
// lease cannot disturb a newer holder of the same key.
func newHolderToken() string {
	return uuid.New().String()
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
