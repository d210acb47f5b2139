package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"infobroker/internal/platform/metrics"
	"infobroker/internal/user"
	"infobroker/pkg/audit"
	dErrors "infobroker/pkg/domainerrors"
	"infobroker/pkg/sentinel"
)

// promauto registers on the default registry; construct once per test binary.
var testMetrics = metrics.New()

type ServiceSuite struct {
	suite.Suite

	ctx       context.Context
	users     *user.MemoryStore
	publisher *audit.MemoryPublisher
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.users = user.NewMemoryStore()
	s.publisher = audit.NewMemoryPublisher()
	s.svc = New(s.users, testMetrics, s.publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := s.users.GetOrCreate(s.ctx, &user.User{ID: 100, FirstName: "U"}, 5)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestDebitAndBalance() {
	s.Require().NoError(s.svc.TryDebit(s.ctx, 100, 2))

	balance, err := s.svc.Balance(s.ctx, 100)
	s.Require().NoError(err)
	s.Equal(int64(3), balance)

	events := s.publisher.ByAction(audit.ActionCreditsDebited)
	s.Require().Len(events, 1)
	s.Equal(int64(2), events[0].Amount)
}

func (s *ServiceSuite) TestDebitInsufficient() {
	err := s.svc.TryDebit(s.ctx, 100, 6)
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrInsufficientFunds)
	s.True(dErrors.Is(err, dErrors.CodeConflict))

	// balance untouched
	balance, err := s.svc.Balance(s.ctx, 100)
	s.Require().NoError(err)
	s.Equal(int64(5), balance)
}

func (s *ServiceSuite) TestRefundRestoresBalance() {
	s.Require().NoError(s.svc.TryDebit(s.ctx, 100, 1))
	s.Require().NoError(s.svc.Refund(s.ctx, 100, 1, ReasonInvalidFormat))

	balance, err := s.svc.Balance(s.ctx, 100)
	s.Require().NoError(err)
	s.Equal(int64(5), balance)

	events := s.publisher.ByAction(audit.ActionCreditsRefunded)
	s.Require().Len(events, 1)
	s.Equal(ReasonInvalidFormat, events[0].Reason)
}

func (s *ServiceSuite) TestGrant() {
	balance, err := s.svc.Grant(s.ctx, 100, 1, 10)
	s.Require().NoError(err)
	s.Equal(int64(15), balance)

	events := s.publisher.ByAction(audit.ActionCreditsGranted)
	s.Require().Len(events, 1)
	s.Equal(int64(1), events[0].ActorID)
}

func (s *ServiceSuite) TestGrantRejectsNonPositive() {
	_, err := s.svc.Grant(s.ctx, 100, 1, 0)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeValidation))

	_, err = s.svc.Grant(s.ctx, 100, 1, -5)
	s.Require().Error(err)
}

func (s *ServiceSuite) TestGrantUnknownUser() {
	_, err := s.svc.Grant(s.ctx, 999, 1, 10)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestBalanceUnknownUser() {
	balance, err := s.svc.Balance(s.ctx, 999)
	s.Require().NoError(err)
	s.Equal(int64(0), balance)
}
