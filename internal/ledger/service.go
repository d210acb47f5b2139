// Package ledger owns credit movements. Every paid action debits before it
// runs; every post-debit failure refunds through here so balances stay exact.
package ledger

import (
	"context"
	"errors"
	"log/slog"

	"infobroker/internal/platform/metrics"
	"infobroker/internal/ports"
	"infobroker/pkg/audit"
	dErrors "infobroker/pkg/domainerrors"
	"infobroker/pkg/sentinel"
)

// Refund reasons, used as the metric label and the audit reason.
const (
	ReasonInvalidFormat  = "invalid_format"
	ReasonServiceTimeout = "service_timeout"
	ReasonServiceError   = "service_error"
)

type Service struct {
	users     ports.UserStore
	metrics   *metrics.Metrics
	publisher audit.Publisher
	logger    *slog.Logger
}

func New(users ports.UserStore, m *metrics.Metrics, publisher audit.Publisher, logger *slog.Logger) *Service {
	return &Service{users: users, metrics: m, publisher: publisher, logger: logger}
}

// Balance is zero for unknown users.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.users.Balance(ctx, userID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read balance")
	}
	return balance, nil
}

// TryDebit atomically deducts amount if the balance covers it. An uncovered
// debit leaves the balance untouched and reports ErrInsufficientFunds.
func (s *Service) TryDebit(ctx context.Context, userID, amount int64) error {
	if err := s.users.TryDebit(ctx, userID, amount); err != nil {
		if errors.Is(err, sentinel.ErrInsufficientFunds) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "insufficient credits")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "debit credits")
	}
	s.metrics.DebitsTotal.Inc()
	s.publisher.Emit(ctx, audit.Event{Action: audit.ActionCreditsDebited, UserID: userID, Amount: amount})
	return nil
}

// Refund returns amount to the user after a failed paid action. Reason is one
// of the Reason constants.
func (s *Service) Refund(ctx context.Context, userID, amount int64, reason string) error {
	if err := s.users.Credit(ctx, userID, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "refund credits")
	}
	s.metrics.RefundsTotal.WithLabelValues(reason).Inc()
	s.publisher.Emit(ctx, audit.Event{Action: audit.ActionCreditsRefunded, UserID: userID, Amount: amount, Reason: reason})
	s.logger.InfoContext(ctx, "credits refunded", "user_id", userID, "amount", amount, "reason", reason)
	return nil
}

// Grant adds amount to the user's balance and returns the new balance.
// Unknown users are a NotFound error.
func (s *Service) Grant(ctx context.Context, userID, actorID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "grant amount must be positive")
	}
	if err := s.users.Credit(ctx, userID, amount); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "grant credits")
	}
	s.metrics.CreditsGranted.Add(float64(amount))
	s.publisher.Emit(ctx, audit.Event{Action: audit.ActionCreditsGranted, UserID: userID, ActorID: actorID, Amount: amount})
	s.logger.InfoContext(ctx, "credits granted", "user_id", userID, "by", actorID, "amount", amount)

	balance, err := s.users.Balance(ctx, userID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read balance after grant")
	}
	return balance, nil
}
