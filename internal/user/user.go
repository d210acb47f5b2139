// Package user holds the user model and its stores. The credit balance is a
// user attribute; the ledger service operates on the same store so debit,
// credit, and ban state share one row per user.
package user

import "time"

// User is a broker account, created on first contact and never deleted.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	Credits      int64
	TotalLookups int64
	Banned       bool
	BanReason    string
	BannedBy     *int64
	BannedAt     *time.Time
	JoinedAt     time.Time
	LastActive   time.Time
}

// DisplayName returns the best human-readable name available.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		if u.LastName != "" {
			return u.FirstName + " " + u.LastName
		}
		return u.FirstName
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "unknown"
}
