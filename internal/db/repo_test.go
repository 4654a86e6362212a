package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"reviewnotify/internal/types"
)

// fakeDBTX scripts repository database calls without a live connection.
type fakeDBTX struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (f *fakeDBTX) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.execFn(ctx, sql, args...)
}

func (f *fakeDBTX) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return f.queryFn(ctx, sql, args...)
}

func (f *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.queryRowFn(ctx, sql, args...)
}

// fakeRow scans scripted values into the destination pointers.
type fakeRow struct {
	scanFn  func(dest ...any) error
	scanErr error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return r.scanFn(dest...)
}

// fakeRows implements pgx.Rows over a static list of single-column string
// values, enough for the reviewer id query.
type fakeRows struct {
	values []string
	idx    int
	err    error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.values) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.values[r.idx-1]
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	return []any{r.values[r.idx-1]}, nil
}

func assertDBError(t *testing.T, err error) {
	t.Helper()
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeInternalDB {
		t.Errorf("expected code %s, got %s", types.ErrCodeInternalDB, appErr.Code)
	}
}

func TestReviewRepositoryGetReview(t *testing.T) {
	db := &fakeDBTX{
		queryRowFn: func(_ context.Context, _ string, args ...any) pgx.Row {
			if args[0] != "42" {
				t.Errorf("expected review id 42, got %v", args[0])
			}
			return &fakeRow{scanFn: func(dest ...any) error {
				*dest[0].(*string) = "42"
				*dest[1].(*string) = "alice"
				*dest[2].(*string) = "Fix the flaky cache test"
				return nil
			}}
		},
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return &fakeRows{values: []string{"bob", "carol"}}, nil
		},
	}

	snap, err := NewReviewRepository(db).GetReview(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetReview returned unexpected error: %v", err)
	}
	if snap.ID != "42" || snap.AuthorID != "alice" {
		t.Errorf("wrong snapshot: %+v", snap)
	}
	if len(snap.ReviewerIDs) != 2 || snap.ReviewerIDs[0] != "bob" || snap.ReviewerIDs[1] != "carol" {
		t.Errorf("wrong reviewer set: %v", snap.ReviewerIDs)
	}
}

func TestReviewRepositoryGetReviewNotFound(t *testing.T) {
	db := &fakeDBTX{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanErr: pgx.ErrNoRows}
		},
	}

	_, err := NewReviewRepository(db).GetReview(context.Background(), "missing")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReviewRepositoryGetReviewQueryError(t *testing.T) {
	db := &fakeDBTX{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanErr: fmt.Errorf("connection reset")}
		},
	}

	_, err := NewReviewRepository(db).GetReview(context.Background(), "42")
	assertDBError(t, err)
}

func TestReviewRepositoryGetReviewReviewerError(t *testing.T) {
	db := &fakeDBTX{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFn: func(dest ...any) error {
				*dest[0].(*string) = "42"
				*dest[1].(*string) = "alice"
				*dest[2].(*string) = ""
				return nil
			}}
		},
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}

	_, err := NewReviewRepository(db).GetReview(context.Background(), "42")
	assertDBError(t, err)
}

func TestReviewRepositoryGetComment(t *testing.T) {
	db := &fakeDBTX{
		queryRowFn: func(_ context.Context, sql string, args ...any) pgx.Row {
			if !strings.Contains(sql, "FROM comments") {
				t.Errorf("expected comments query, got %q", sql)
			}
			if args[0] != "c-7" {
				t.Errorf("expected comment id c-7, got %v", args[0])
			}
			return &fakeRow{scanFn: func(dest ...any) error {
				*dest[0].(*string) = "c-7"
				*dest[1].(*string) = "42"
				*dest[2].(*string) = "bob"
				*dest[3].(*string) = "looks good"
				return nil
			}}
		},
	}

	c, err := NewReviewRepository(db).GetComment(context.Background(), "c-7")
	if err != nil {
		t.Fatalf("GetComment returned unexpected error: %v", err)
	}
	if c.AuthorID != "bob" || c.Body != "looks good" {
		t.Errorf("wrong comment: %+v", c)
	}
}

func TestReviewRepositoryGetCommentNotFound(t *testing.T) {
	db := &fakeDBTX{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanErr: pgx.ErrNoRows}
		},
	}

	_, err := NewReviewRepository(db).GetComment(context.Background(), "gone")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepositoryGetUser(t *testing.T) {
	db := &fakeDBTX{
		queryRowFn: func(_ context.Context, _ string, args ...any) pgx.Row {
			if args[0] != "alice" {
				t.Errorf("expected user id alice, got %v", args[0])
			}
			return &fakeRow{scanFn: func(dest ...any) error {
				*dest[0].(*string) = "alice"
				*dest[1].(*string) = "Alice Adams"
				*dest[2].(*string) = "alice@example.com"
				return nil
			}}
		},
	}

	u, err := NewUserRepository(db).GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUser returned unexpected error: %v", err)
	}
	if u.FullName != "Alice Adams" || u.Email != "alice@example.com" {
		t.Errorf("wrong user: %+v", u)
	}
}

func TestUserRepositoryGetUserNotFound(t *testing.T) {
	db := &fakeDBTX{
		queryRowFn: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanErr: pgx.ErrNoRows}
		},
	}

	_, err := NewUserRepository(db).GetUser(context.Background(), "nobody")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLockRepositoryTryAcquire(t *testing.T) {
	expires := time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC)

	tests := []struct {
		name string
		tag  pgconn.CommandTag
		want bool
	}{
		{"lease claimed", pgconn.NewCommandTag("INSERT 0 1"), true},
		{"lease contended", pgconn.NewCommandTag("INSERT 0 0"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDBTX{
				execFn: func(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
					if args[0] != "review:42" || args[1] != "holder-1" || args[2] != expires {
						t.Errorf("wrong exec args: %v", args)
					}
					return tt.tag, nil
				},
			}

			ok, err := NewLockRepository(db).TryAcquire(context.Background(), "review:42", "holder-1", expires)
			if err != nil {
				t.Fatalf("TryAcquire returned unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("expected acquired=%v, got %v", tt.want, ok)
			}
		})
	}
}

func TestLockRepositoryTryAcquireError(t *testing.T) {
	db := &fakeDBTX{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, fmt.Errorf("connection reset")
		},
	}

	_, err := NewLockRepository(db).TryAcquire(context.Background(), "review:42", "holder-1", time.Now())
	assertDBError(t, err)
}

func TestLockRepositoryRelease(t *testing.T) {
	var gotArgs []any
	db := &fakeDBTX{
		execFn: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			if !strings.Contains(sql, "DELETE FROM notification_locks") {
				t.Errorf("expected delete statement, got %q", sql)
			}
			gotArgs = args
			return pgconn.NewCommandTag("DELETE 1"), nil
		},
	}

	if err := NewLockRepository(db).Release(context.Background(), "review:42", "holder-1"); err != nil {
		t.Fatalf("Release returned unexpected error: %v", err)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "review:42" || gotArgs[1] != "holder-1" {
		t.Errorf("release must be scoped to key and holder, got %v", gotArgs)
	}
}

func TestLockRepositoryReleaseError(t *testing.T) {
	db := &fakeDBTX{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, fmt.Errorf("connection reset")
		},
	}

	err := NewLockRepository(db).Release(context.Background(), "review:42", "holder-1")
	assertDBError(t, err)
}
