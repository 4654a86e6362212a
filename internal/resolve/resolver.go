// Package resolve maps internal review-system users to Slack user IDs.
// Successful mappings are cached with a TTL because the directory lookup is
// rate limited; failures are never cached, so a user who joins Slack later
// starts receiving notifications without operator intervention.
package resolve

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"reviewnotify/internal/types"
)

// Directory performs the external email-to-chat-identity lookup, implemented
// by slack.Client.
type Directory interface {
	LookupUserByEmail(ctx context.Context, email string) (string, error)
}

// cacheEntry holds one positive mapping. Negative results are never stored.
type cacheEntry struct {
	slackID    string
	resolvedAt time.Time
}

// Resolver implements types.RecipientResolver with an in-memory TTL cache in
// front of the Directory. Concurrent resolutions of the same email are
// collapsed into a single upstream call.
type Resolver struct {
	directory Directory
	ttl       time.Duration
	clock     types.Clock
	logger    types.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group

	// observer, when set, is told about each cache hit or miss.
	observer func(hit bool)
}

var _ types.RecipientResolver = (*Resolver)(nil)

// NewResolver creates a Resolver with the given cache TTL. A non-positive
// TTL disables caching entirely; every call hits the directory.
func NewResolver(directory Directory, ttl time.Duration, logger types.Logger) *Resolver {
	return &Resolver{
		directory: directory,
		ttl:       ttl,
		clock:     types.RealClock{},
		logger:    logger,
		cache:     make(map[string]cacheEntry),
	}
}

// SetClock overrides the clock for testing.
func (r *Resolver) SetClock(c types.Clock) { r.clock = c }

// SetObserver registers a hit/miss callback, used to feed cache metrics.
// Must be called before the resolver is shared between goroutines.
func (r *Resolver) SetObserver(fn func(hit bool)) { r.observer = fn }

// Resolve returns the Slack user ID for the given user. A user without an
// email address can never match a Slack account, so it short-circuits to
// ErrNoSlackUser without an upstream call.
func (r *Resolver) Resolve(ctx context.Context, user types.User) (string, error) {
	if user.Email == "" {
		return "", types.ErrNoSlackUser
	}

	if id, ok := r.lookupCache(user.Email); ok {
		r.observe(true)
		return id, nil
	}
	r.observe(false)

	// Collapse concurrent lookups for the same email into one upstream
	// call; every waiter receives the shared result.
	v, err, _ := r.group.Do(user.Email, func() (any, error) {
		if id, ok := r.lookupCache(user.Email); ok {
			return id, nil
		}

		id, err := r.directory.LookupUserByEmail(ctx, user.Email)
		if err != nil {
			return "", err
		}

		r.storeCache(user.Email, id)
		return id, nil
	})
	if err != nil {
		if !errors.Is(err, types.ErrNoSlackUser) {
			r.logger.Warn("recipient lookup failed", "user_id", user.ID, "error", err.Error())
		}
		return "", err
	}

	return v.(string), nil
}

// CacheSize reports the number of cached mappings, expired entries included.
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) lookupCache(email string) (string, bool) {
	if r.ttl <= 0 {
		return "", false
	}
	r.mu.RLock()
	entry, ok := r.cache[email]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	if r.clock.Now().Sub(entry.resolvedAt) >= r.ttl {
		r.mu.Lock()
		// Recheck under the write lock; a fresh entry may have landed.
		if cur, ok := r.cache[email]; ok && r.clock.Now().Sub(cur.resolvedAt) >= r.ttl {
			delete(r.cache, email)
		}
		r.mu.Unlock()
		return "", false
	}
	return entry.slackID, true
}

func (r *Resolver) observe(hit bool) {
	if r.observer != nil {
		r.observer(hit)
	}
}

func (r *Resolver) storeCache(email, slackID string) {
	if r.ttl <= 0 {
		return
	}
	r.mu.Lock()
	r.cache[email] = cacheEntry{slackID: slackID, resolvedAt: r.clock.Now()}
	r.mu.Unlock()
}
