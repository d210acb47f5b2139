// Package admin implements the privileged operations. Every operation
// verifies the requester against the configured admin identity; a mismatch is
// refused without revealing that the surface exists.
package admin

import (
	"context"
	"log/slog"

	"infobroker/internal/catalog"
	"infobroker/internal/history"
	"infobroker/internal/ledger"
	"infobroker/internal/moderation"
	"infobroker/internal/platform/metrics"
	"infobroker/internal/ports"
	"infobroker/internal/user"
	"infobroker/pkg/audit"
	dErrors "infobroker/pkg/domainerrors"
	"infobroker/pkg/sentinel"
)

type Controller struct {
	adminID        int64
	unlimitedGrant int64
	users          ports.UserStore
	ledger         *ledger.Service
	moderation     *moderation.Service
	historyStore   ports.HistoryStore
	protected      ports.ProtectedStore
	catalog        *catalog.Catalog
	metrics        *metrics.Metrics
	publisher      audit.Publisher
	logger         *slog.Logger
}

func NewController(
	adminID, unlimitedGrant int64,
	users ports.UserStore,
	led *ledger.Service,
	mod *moderation.Service,
	hist ports.HistoryStore,
	protected ports.ProtectedStore,
	cat *catalog.Catalog,
	m *metrics.Metrics,
	publisher audit.Publisher,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		adminID:        adminID,
		unlimitedGrant: unlimitedGrant,
		users:          users,
		ledger:         led,
		moderation:     mod,
		historyStore:   hist,
		protected:      protected,
		catalog:        cat,
		metrics:        m,
		publisher:      publisher,
		logger:         logger,
	}
}

// authorize refuses any requester but the configured admin. The refusal is
// shaped as not-found so the surface stays invisible to probes; callers that
// need the distinction test for sentinel.ErrUnauthorized.
func (c *Controller) authorize(requesterID int64) error {
	if requesterID != c.adminID {
		return dErrors.Wrap(sentinel.ErrUnauthorized, dErrors.CodeNotFound, "not found")
	}
	return nil
}

// GrantCredits adds amount to the user's balance and returns the new balance.
func (c *Controller) GrantCredits(ctx context.Context, requesterID, userID, amount int64) (int64, error) {
	if err := c.authorize(requesterID); err != nil {
		return 0, err
	}
	return c.ledger.Grant(ctx, userID, requesterID, amount)
}

// DeductCredits removes amount, failing gracefully when the balance is short.
func (c *Controller) DeductCredits(ctx context.Context, requesterID, userID, amount int64) (int64, error) {
	if err := c.authorize(requesterID); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "deduct amount must be positive")
	}
	if err := c.ledger.TryDebit(ctx, userID, amount); err != nil {
		return 0, err
	}
	return c.ledger.Balance(ctx, userID)
}

// GrantUnlimited applies the fixed privileged top-up. The balance stays an
// ordinary number; "unlimited" is a large grant, not a sentinel state.
func (c *Controller) GrantUnlimited(ctx context.Context, requesterID, userID int64) (int64, error) {
	if err := c.authorize(requesterID); err != nil {
		return 0, err
	}
	return c.ledger.Grant(ctx, userID, requesterID, c.unlimitedGrant)
}

func (c *Controller) Ban(ctx context.Context, requesterID, userID int64, reason string) error {
	if err := c.authorize(requesterID); err != nil {
		return err
	}
	if err := c.moderation.Ban(ctx, userID, requesterID, reason); err != nil {
		return err
	}
	c.metrics.BansTotal.Inc()
	c.publisher.Emit(ctx, audit.Event{Action: audit.ActionUserBanned, UserID: userID, ActorID: requesterID, Reason: reason})
	return nil
}

func (c *Controller) Unban(ctx context.Context, requesterID, userID int64) error {
	if err := c.authorize(requesterID); err != nil {
		return err
	}
	if err := c.moderation.Unban(ctx, userID); err != nil {
		return err
	}
	c.publisher.Emit(ctx, audit.Event{Action: audit.ActionUserUnbanned, UserID: userID, ActorID: requesterID})
	return nil
}

func (c *Controller) Protect(ctx context.Context, requesterID int64, value, reason string) (moderation.ProtectOutcome, error) {
	if err := c.authorize(requesterID); err != nil {
		return 0, err
	}
	outcome, err := c.moderation.Protect(ctx, value, requesterID, reason)
	if err != nil {
		return 0, err
	}
	if outcome == moderation.ProtectCreated {
		c.publisher.Emit(ctx, audit.Event{Action: audit.ActionValueProtected, ActorID: requesterID, Reason: reason})
	}
	return outcome, nil
}

func (c *Controller) Unprotect(ctx context.Context, requesterID int64, value string) (bool, error) {
	if err := c.authorize(requesterID); err != nil {
		return false, err
	}
	removed, err := c.moderation.Unprotect(ctx, value)
	if err != nil {
		return false, err
	}
	if removed {
		c.publisher.Emit(ctx, audit.Event{Action: audit.ActionValueUnprotected, ActorID: requesterID})
	}
	return removed, nil
}

func (c *Controller) ListUsers(ctx context.Context, requesterID int64) ([]*user.User, error) {
	if err := c.authorize(requesterID); err != nil {
		return nil, err
	}
	users, err := c.users.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list users")
	}
	return users, nil
}

func (c *Controller) ListBanned(ctx context.Context, requesterID int64) ([]*moderation.UserRef, error) {
	if err := c.authorize(requesterID); err != nil {
		return nil, err
	}
	return c.moderation.ListBanned(ctx)
}

func (c *Controller) ListProtected(ctx context.Context, requesterID int64) ([]moderation.ProtectedRecord, error) {
	if err := c.authorize(requesterID); err != nil {
		return nil, err
	}
	return c.moderation.ListProtected(ctx)
}

// Stats is the admin panel summary.
type Stats struct {
	TotalUsers      int64
	BannedUsers     int64
	ProtectedValues int64
	TotalLookups    int64
	UsageByService  []history.ServiceCount
}

func (c *Controller) UsageStats(ctx context.Context, requesterID int64) (Stats, error) {
	if err := c.authorize(requesterID); err != nil {
		return Stats{}, err
	}

	var stats Stats
	var err error
	if stats.TotalUsers, err = c.users.CountUsers(ctx); err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "count users")
	}
	if stats.BannedUsers, err = c.users.CountBanned(ctx); err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "count banned users")
	}
	if stats.ProtectedValues, err = c.protected.Count(ctx); err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "count protected values")
	}
	if stats.TotalLookups, err = c.historyStore.Total(ctx); err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "count lookups")
	}
	if stats.UsageByService, err = c.historyStore.UsageByService(ctx); err != nil {
		return Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "usage by service")
	}
	return stats, nil
}

// UserInfo returns one user's row for the admin panel.
func (c *Controller) UserInfo(ctx context.Context, requesterID, userID int64) (*user.User, error) {
	if err := c.authorize(requesterID); err != nil {
		return nil, err
	}
	u, err := c.users.Get(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
	}
	return u, nil
}
