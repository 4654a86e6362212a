package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"reviewnotify/internal/types"
)

// ReviewRepository provides read access to the reviews, review_reviewers and
// comments tables mirrored from the review platform. It implements
// types.ReviewStore.
//
// Snapshots are assembled fresh on every call: the reviewer set changes
// between activity events, so callers must never cache the result.
type ReviewRepository struct {
	db DBTX
}

// Compile-time assertion that ReviewRepository implements types.ReviewStore.
var _ types.ReviewStore = (*ReviewRepository)(nil)

// NewReviewRepository creates a ReviewRepository backed by the given
// connection (pool or transaction).
func NewReviewRepository(db DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// GetReview fetches one review plus its current reviewer set. Returns
// types.ErrNotFound when the review does not exist.
func (r *ReviewRepository) GetReview(ctx context.Context, id string) (*types.ReviewSnapshot, error) {
	snap := &types.ReviewSnapshot{}
	row := r.db.QueryRow(ctx,
		`SELECT id, author_id, COALESCE(description, '')
		 FROM reviews
		 WHERE id = $1`,
		id,
	)
	if err := row.Scan(&snap.ID, &snap.AuthorID, &snap.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch review", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT user_id
		 FROM review_reviewers
		 WHERE review_id = $1
		 ORDER BY user_id`,
		id,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch reviewers", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reviewerID string
		if err := rows.Scan(&reviewerID); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reviewer", err)
		}
		snap.ReviewerIDs = append(snap.ReviewerIDs, reviewerID)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate reviewers", err)
	}

	return snap, nil
}

// GetComment fetches one stored comment by id, used to find the original
// author a reply refers to. Returns types.ErrNotFound when absent.
func (r *ReviewRepository) GetComment(ctx context.Context, id string) (*types.Comment, error) {
	c := &types.Comment{}
	row := r.db.QueryRow(ctx,
		`SELECT id, review_id, author_id, COALESCE(body, '')
		 FROM comments
		 WHERE id = $1`,
		id,
	)
	if err := row.Scan(&c.ID, &c.ReviewID, &c.AuthorID, &c.Body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch comment", err)
	}
	return c, nil
}
