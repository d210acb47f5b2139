// Package session holds per-user conversation state. State is ephemeral by
// contract: losing it on restart costs a prompt, never credits.
package session

import "context"

// PendingKind says what the next message from the user will be interpreted as.
type PendingKind string

const (
	PendingNone         PendingKind = ""
	PendingServiceInput PendingKind = "service_input"
	PendingAdminInput   PendingKind = "admin_input"
)

// AdminAction identifies which admin operation the next admin message feeds.
type AdminAction string

const (
	AdminActionNone          AdminAction = ""
	AdminActionAddCredits    AdminAction = "add_credits"
	AdminActionRemoveCredits AdminAction = "remove_credits"
	AdminActionUnlimited     AdminAction = "unlimited_credits"
	AdminActionBan           AdminAction = "ban_user"
	AdminActionUnban         AdminAction = "unban_user"
	AdminActionProtect       AdminAction = "protect_value"
)

// State is the full conversation state for one user. The zero value is Idle.
type State struct {
	Pending     PendingKind `json:"pending,omitempty"`
	ServiceKey  string      `json:"service_key,omitempty"`
	AdminAction AdminAction `json:"admin_action,omitempty"`
}

// Idle reports whether no input is pending.
func (s State) Idle() bool { return s.Pending == PendingNone }

// Store persists per-user state. Get returns the zero State for users with
// nothing pending.
type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Put(ctx context.Context, userID int64, state State) error
	Clear(ctx context.Context, userID int64) error
}
