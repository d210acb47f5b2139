package moderation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"infobroker/internal/catalog"
	"infobroker/internal/user"
	dErrors "infobroker/pkg/domainerrors"
)

type ServiceSuite struct {
	suite.Suite

	ctx   context.Context
	users *user.MemoryStore
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.users = user.NewMemoryStore()
	cat, err := catalog.Default()
	s.Require().NoError(err)
	s.svc = New(s.users, NewMemoryProtectedStore(), cat, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *ServiceSuite) seedUser(id int64) {
	_, err := s.users.GetOrCreate(s.ctx, &user.User{ID: id, FirstName: "U"}, 5)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestBanLifecycle() {
	s.seedUser(100)

	banned, err := s.svc.IsBanned(s.ctx, 100)
	s.Require().NoError(err)
	s.False(banned)

	s.Require().NoError(s.svc.Ban(s.ctx, 100, 1, "spam"))

	banned, err = s.svc.IsBanned(s.ctx, 100)
	s.Require().NoError(err)
	s.True(banned)

	list, err := s.svc.ListBanned(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(int64(100), list[0].ID)
	s.Equal("spam", list[0].BanReason)

	s.Require().NoError(s.svc.Unban(s.ctx, 100))

	banned, err = s.svc.IsBanned(s.ctx, 100)
	s.Require().NoError(err)
	s.False(banned)
}

func (s *ServiceSuite) TestBanDefaultReason() {
	s.seedUser(100)
	s.Require().NoError(s.svc.Ban(s.ctx, 100, 1, ""))

	list, err := s.svc.ListBanned(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("No reason provided", list[0].BanReason)
}

func (s *ServiceSuite) TestBanUnknownUser() {
	err := s.svc.Ban(s.ctx, 999, 1, "spam")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUnbanNotBanned() {
	s.seedUser(100)
	err := s.svc.Unban(s.ctx, 100)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestUnbanUnknownUser() {
	err := s.svc.Unban(s.ctx, 999)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestIsBannedUnknownUser() {
	banned, err := s.svc.IsBanned(s.ctx, 999)
	s.Require().NoError(err)
	s.False(banned)
}

func (s *ServiceSuite) TestProtectAndCheck() {
	outcome, err := s.svc.Protect(s.ctx, "9876543210", 1, "vip")
	s.Require().NoError(err)
	s.Equal(ProtectCreated, outcome)

	// phone is protectable
	protected, err := s.svc.IsProtected(s.ctx, "phone", "9876543210")
	s.Require().NoError(err)
	s.True(protected)

	// same value under a non-protectable service is not shielded
	protected, err = s.svc.IsProtected(s.ctx, "aadhaar", "9876543210")
	s.Require().NoError(err)
	s.False(protected)
}

func (s *ServiceSuite) TestProtectIdempotent() {
	_, err := s.svc.Protect(s.ctx, "9876543210", 1, "vip")
	s.Require().NoError(err)

	outcome, err := s.svc.Protect(s.ctx, "9876543210", 2, "again")
	s.Require().NoError(err)
	s.Equal(ProtectAlreadyProtected, outcome)

	records, err := s.svc.ListProtected(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(int64(1), records[0].ProtectedBy)
	s.Equal("vip", records[0].Reason)
}

func (s *ServiceSuite) TestUnprotect() {
	_, err := s.svc.Protect(s.ctx, "9876543210", 1, "")
	s.Require().NoError(err)

	removed, err := s.svc.Unprotect(s.ctx, "9876543210")
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.svc.Unprotect(s.ctx, "9876543210")
	s.Require().NoError(err)
	s.False(removed)

	protected, err := s.svc.IsProtected(s.ctx, "phone", "9876543210")
	s.Require().NoError(err)
	s.False(protected)
}
