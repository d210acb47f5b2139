package user

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"infobroker/pkg/sentinel"
)

// MemoryStore is the in-memory user store. A single mutex guards the map; the
// conditional debit re-checks the balance while holding it, which is what
// makes TryDebit atomic under concurrent callers.
type MemoryStore struct {
	mu    sync.Mutex
	users map[int64]*User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]*User)}
}

// GetOrCreate inserts the user with the starting grant if absent. Concurrent
// first-contact calls for the same id create one row and grant once; exactly
// one caller observes created == true.
func (s *MemoryStore) GetOrCreate(_ context.Context, u *User, startingCredits int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[u.ID]; ok {
		*u = *existing
		return false, nil
	}

	now := time.Now()
	u.Credits = startingCredits
	u.JoinedAt = now
	u.LastActive = now
	clone := *u
	s.users[u.ID] = &clone
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, sentinel.ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

func (s *MemoryStore) TouchActivity(_ context.Context, id int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.LastActive = now
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(func(*User) bool { return true }), nil
}

func (s *MemoryStore) ListBanned(_ context.Context) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(func(u *User) bool { return u.Banned }), nil
}

func (s *MemoryStore) CountUsers(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) CountBanned(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, u := range s.users {
		if u.Banned {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) IsBanned(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	return u.Banned, nil
}

func (s *MemoryStore) SetBanned(_ context.Context, id, byAdmin int64, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, sentinel.ErrNotFound)
	}
	u.Banned = true
	u.BanReason = reason
	u.BannedBy = &byAdmin
	u.BannedAt = &at
	return nil
}

func (s *MemoryStore) ClearBan(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, sentinel.ErrNotFound)
	}
	u.Banned = false
	u.BanReason = ""
	u.BannedBy = nil
	u.BannedAt = nil
	return nil
}

func (s *MemoryStore) Balance(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return 0, nil
	}
	return u.Credits, nil
}

// TryDebit is a single atomic check-and-decrement. The balance re-check under
// the mutex is the commit-time precondition: under concurrent calls the total
// debited never exceeds the balance that existed at the start of the window.
func (s *MemoryStore) TryDebit(_ context.Context, id, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Credits < amount {
		return fmt.Errorf("debit %d from user %d: %w", amount, id, sentinel.ErrInsufficientFunds)
	}
	u.Credits -= amount
	return nil
}

func (s *MemoryStore) Credit(_ context.Context, id, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("credit user %d: %w", id, sentinel.ErrNotFound)
	}
	u.Credits += amount
	return nil
}

func (s *MemoryStore) IncrementLookups(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.TotalLookups++
	}
	return nil
}

// snapshot copies matching users sorted by join time, newest first.
// Must be called while holding s.mu.
func (s *MemoryStore) snapshot(keep func(*User) bool) []*User {
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		if keep(u) {
			clone := *u
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return out
}
