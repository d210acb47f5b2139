// Package moderation gates every paid action: ban state and protected-record
// exclusions. Ban state lives on user rows; protected records have their own
// store. All mutations are durable before the calls return.
package moderation

import "infobroker/internal/ports"

// ProtectedRecord marks a value as administratively excluded from lookups.
// The definition lives in ports so the shared store interfaces can reference
// it without an import cycle.
type ProtectedRecord = ports.ProtectedRecord

// ProtectOutcome distinguishes a fresh protection from an already-protected
// value; the latter is an outcome, not an error.
type ProtectOutcome int

const (
	ProtectCreated ProtectOutcome = iota
	ProtectAlreadyProtected
)
