package types

import (
	"context"
	"time"
)

// Logger defines the structured logging interface used throughout the
// service. Satisfied by the slog adapter in the worker entrypoints.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// ReviewStore looks up review state. Implementations return ErrNotFound when
// the entity does not exist; snapshots are fetched fresh per dispatch and
// never cached by callers.
type ReviewStore interface {
	GetReview(ctx context.Context, id string) (*ReviewSnapshot, error)
	GetComment(ctx context.Context, id string) (*Comment, error)
}

// UserStore looks up internal user identities.
type UserStore interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// Transport posts a structured payload to the chat platform. A non-nil error
// means the message was not delivered; the dispatcher logs and drops it,
// never retries.
type Transport interface {
	PostMessage(ctx context.Context, msg *Message) error
}

// RecipientResolver maps an internal user to an external chat identity.
// A miss surfaces as ErrNoSlackUser.
type RecipientResolver interface {
	Resolve(ctx context.Context, user User) (string, error)
}
