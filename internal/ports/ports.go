// Package ports defines the store and collaborator interfaces shared by the
// broker's services. Interfaces live here when consumed by more than one
// service; single-consumer interfaces stay with their consumer.
package ports

import (
	"context"
	"time"

	"infobroker/internal/history"
	"infobroker/internal/user"
)

// ProtectedRecord marks a value as administratively excluded from lookups.
// It is defined here rather than in package moderation so ProtectedStore can
// reference it without an import cycle; moderation aliases it.
type ProtectedRecord struct {
	Value       string
	ProtectedBy int64
	ProtectedAt time.Time
	Reason      string
}

// UserStore manages user rows: identity, activity, ban state, and the credit
// balance. One row per user backs all of them so the conditional debit and the
// ban flag cannot drift apart.
type UserStore interface {
	// GetOrCreate inserts the user with the starting grant if absent and fills
	// the struct with the stored row. Concurrent first contact creates one row
	// and grants once.
	GetOrCreate(ctx context.Context, u *user.User, startingCredits int64) (created bool, err error)

	// Get returns the stored user or sentinel.ErrNotFound.
	Get(ctx context.Context, id int64) (*user.User, error)

	// TouchActivity records the last inbound message time. Unknown ids are a no-op.
	TouchActivity(ctx context.Context, id int64, now time.Time) error

	List(ctx context.Context) ([]*user.User, error)
	ListBanned(ctx context.Context) ([]*user.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CountBanned(ctx context.Context) (int64, error)

	// IsBanned is false for unknown users.
	IsBanned(ctx context.Context, id int64) (bool, error)

	// SetBanned marks the user banned; sentinel.ErrNotFound for unknown users.
	SetBanned(ctx context.Context, id, byAdmin int64, reason string, at time.Time) error

	// ClearBan removes ban state; sentinel.ErrNotFound for unknown users.
	ClearBan(ctx context.Context, id int64) error

	// Balance is zero for unknown users.
	Balance(ctx context.Context, id int64) (int64, error)

	// TryDebit is a single atomic check-and-decrement; sentinel.ErrInsufficientFunds
	// when the commit-time balance is below amount.
	TryDebit(ctx context.Context, id, amount int64) error

	// Credit is an unconditional atomic increase; sentinel.ErrNotFound for
	// unknown users.
	Credit(ctx context.Context, id, amount int64) error

	// IncrementLookups bumps the per-user success counter.
	IncrementLookups(ctx context.Context, id int64) error
}

// ProtectedStore manages the protected-record set.
type ProtectedStore interface {
	IsProtected(ctx context.Context, value string) (bool, error)

	// Put inserts the record; false means the value was already protected.
	Put(ctx context.Context, rec ProtectedRecord) (created bool, err error)

	// Remove reports whether a record was removed.
	Remove(ctx context.Context, value string) (removed bool, err error)

	List(ctx context.Context) ([]ProtectedRecord, error)
	Count(ctx context.Context) (int64, error)
}

// HistoryStore is the append-only log of completed lookups.
type HistoryStore interface {
	Append(ctx context.Context, entry history.Entry) error
	UsageByService(ctx context.Context) ([]history.ServiceCount, error)
	Total(ctx context.Context) (int64, error)
}
