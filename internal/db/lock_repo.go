package db

import (
	"context"
	"time"

	"reviewnotify/internal/types"
)

// LockRepository manages dedup lease rows in the notification_locks table.
// A lease is claimed with a single conditional write: the INSERT succeeds
// when the key is free, and the ON CONFLICT update succeeds only when the
// existing lease has expired. Either way at most one holder owns a key at a
// time, cluster-wide.
//
// Schema:
//
//	CREATE TABLE notification_locks (
//	    key        TEXT PRIMARY KEY,
//	    holder     TEXT NOT NULL,
//	    expires_at TIMESTAMPTZ NOT NULL
//	);
type LockRepository struct {
	db DBTX
}

// NewLockRepository creates a LockRepository backed by the given connection.
func NewLockRepository(db DBTX) *LockRepository {
	return &LockRepository{db: db}
}

// TryAcquire attempts to claim the lease for key until expiresAt, on behalf
// of holder. It returns true when the claim succeeded, false when another
// holder owns an unexpired lease.
func (r *LockRepository) TryAcquire(ctx context.Context, key, holder string, expiresAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO notification_locks (key, holder, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE
		 SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
		 WHERE notification_locks.expires_at <= NOW()`,
		key, holder, expiresAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to acquire lease", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release frees the lease, but only if holder still owns it. Releasing an
// expired lease another process has since claimed must not disturb the new
// holder.
func (r *LockRepository) Release(ctx context.Context, key, holder string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM notification_locks
		 WHERE key = $1 AND holder = $2`,
		key, holder,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release lease", err)
	}
	return nil
}
