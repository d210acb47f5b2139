package moderation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"infobroker/internal/catalog"
	"infobroker/internal/ports"
	dErrors "infobroker/pkg/domainerrors"
	"infobroker/pkg/sentinel"
)

// Service answers the moderation questions the pipeline asks before any paid
// action and applies the admin-driven mutations.
type Service struct {
	users     ports.UserStore
	protected ports.ProtectedStore
	catalog   *catalog.Catalog
	logger    *slog.Logger
}

func New(users ports.UserStore, protected ports.ProtectedStore, cat *catalog.Catalog, logger *slog.Logger) *Service {
	return &Service{users: users, protected: protected, catalog: cat, logger: logger}
}

// IsBanned is false for unknown users; first contact is never pre-banned.
func (s *Service) IsBanned(ctx context.Context, userID int64) (bool, error) {
	banned, err := s.users.IsBanned(ctx, userID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "check ban state")
	}
	return banned, nil
}

// Ban marks the user banned. Unknown users are a NotFound error.
func (s *Service) Ban(ctx context.Context, userID, byAdmin int64, reason string) error {
	if reason == "" {
		reason = "No reason provided"
	}
	if err := s.users.SetBanned(ctx, userID, byAdmin, reason, time.Now()); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "ban user")
	}
	s.logger.InfoContext(ctx, "user banned", "user_id", userID, "by", byAdmin, "reason", reason)
	return nil
}

// Unban clears ban state. Unbanning a user who is not currently banned is an
// error, matching the reference behavior; callers wanting idempotent unban
// can ignore the InvalidState code.
func (s *Service) Unban(ctx context.Context, userID int64) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "get user")
	}
	if !u.Banned {
		return dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeConflict, "user is not banned")
	}
	if err := s.users.ClearBan(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "unban user")
	}
	s.logger.InfoContext(ctx, "user unbanned", "user_id", userID)
	return nil
}

// IsProtected is only meaningful for services with protection semantics;
// always false for the rest.
func (s *Service) IsProtected(ctx context.Context, serviceKey, value string) (bool, error) {
	svc, err := s.catalog.Lookup(serviceKey)
	if err != nil || !svc.Protectable {
		return false, nil
	}
	protected, err := s.protected.IsProtected(ctx, value)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "check protected record")
	}
	return protected, nil
}

// Protect records the value as protected. Already-protected is an outcome,
// not an error.
func (s *Service) Protect(ctx context.Context, value string, byAdmin int64, reason string) (ProtectOutcome, error) {
	if reason == "" {
		reason = "Admin protection"
	}
	created, err := s.protected.Put(ctx, ProtectedRecord{
		Value:       value,
		ProtectedBy: byAdmin,
		ProtectedAt: time.Now(),
		Reason:      reason,
	})
	if err != nil {
		return ProtectCreated, dErrors.Wrap(err, dErrors.CodeInternal, "protect value")
	}
	if !created {
		return ProtectAlreadyProtected, nil
	}
	s.logger.InfoContext(ctx, "value protected", "by", byAdmin)
	return ProtectCreated, nil
}

// Unprotect removes protection and reports whether a record was removed.
func (s *Service) Unprotect(ctx context.Context, value string) (bool, error) {
	removed, err := s.protected.Remove(ctx, value)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "unprotect value")
	}
	return removed, nil
}

func (s *Service) ListBanned(ctx context.Context) ([]*UserRef, error) {
	users, err := s.users.ListBanned(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list banned users")
	}
	out := make([]*UserRef, 0, len(users))
	for _, u := range users {
		out = append(out, &UserRef{
			ID:        u.ID,
			Name:      u.DisplayName(),
			BanReason: u.BanReason,
			BannedAt:  u.BannedAt,
			Lookups:   u.TotalLookups,
		})
	}
	return out, nil
}

func (s *Service) ListProtected(ctx context.Context) ([]ProtectedRecord, error) {
	records, err := s.protected.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list protected records")
	}
	return records, nil
}

// UserRef is the moderation view of a banned user.
type UserRef struct {
	ID        int64
	Name      string
	BanReason string
	BannedAt  *time.Time
	Lookups   int64
}
