// Package audit carries structured audit events out of the domain services.
// Events are transport-agnostic; sinks fan out to logs, memory, or Kafka.
package audit

import (
	"context"
	"sync"
	"time"
)

// Action names the audited operation.
type Action string

const (
	ActionUserCreated     Action = "user_created"
	ActionLookupPerformed Action = "lookup_performed"
	ActionLookupDenied    Action = "lookup_denied"
	ActionCreditsDebited  Action = "credits_debited"
	ActionCreditsRefunded Action = "credits_refunded"
	ActionCreditsGranted  Action = "credits_granted"
	ActionUserBanned      Action = "user_banned"
	ActionUserUnbanned    Action = "user_unbanned"
	ActionValueProtected  Action = "value_protected"
	ActionValueUnprotected Action = "value_unprotected"
)

// Event is a single audit record.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	UserID     int64     `json:"user_id"`
	ActorID    int64     `json:"actor_id,omitempty"`
	ServiceKey string    `json:"service_key,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Publisher is the sink the domain emits events to. Emit is best-effort for
// all callers; a failed emit never fails the business operation.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) {}

// MemoryPublisher records events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// ByAction filters emitted events by action.
func (p *MemoryPublisher) ByAction(action Action) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
