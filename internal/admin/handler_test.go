package admin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"infobroker/internal/catalog"
	"infobroker/internal/history"
	"infobroker/internal/jwttoken"
	"infobroker/internal/ledger"
	"infobroker/internal/moderation"
	"infobroker/internal/user"
	"infobroker/pkg/audit"
	"infobroker/pkg/secrets"
	"infobroker/pkg/testutil"
)

const adminSecret = "correct-horse-battery-staple"

type HandlerSuite struct {
	suite.Suite

	router http.Handler
	users  *user.MemoryStore
	token  string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cat, err := catalog.Default()
	s.Require().NoError(err)

	s.users = user.NewMemoryStore()
	publisher := audit.NewMemoryPublisher()
	protected := moderation.NewMemoryProtectedStore()
	led := ledger.New(s.users, testMetrics, publisher, logger)
	mod := moderation.New(s.users, protected, cat, logger)
	controller := NewController(adminID, 1_000_000, s.users, led, mod, history.NewMemoryStore(), protected, cat, testMetrics, publisher, logger)

	hash, err := secrets.Hash(adminSecret)
	s.Require().NoError(err)

	tokens := jwttoken.NewService("test-signing-key-at-least-32-bytes", "infobroker")
	handler := NewHandler(controller, tokens, hash, time.Hour, adminID, logger)

	router := chi.NewRouter()
	handler.Register(router)
	s.router = router

	s.token, err = tokens.IssueAdminToken(time.Hour)
	s.Require().NoError(err)

	_, err = s.users.GetOrCreate(context.Background(), &user.User{ID: 100, FirstName: "U"}, 5)
	s.Require().NoError(err)
}

func (s *HandlerSuite) TestLoginIssuesToken() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/login", LoginRequest{Secret: adminSecret}))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[LoginResponse](s.T(), rr)
	s.NotEmpty(resp.Token)
	s.True(resp.ExpiresAt.After(time.Now()))
}

func (s *HandlerSuite) TestLoginRejectsWrongSecret() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/login", LoginRequest{Secret: "nope"}))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	testutil.AssertErrorCode(s.T(), rr, "unauthorized")
}

func (s *HandlerSuite) TestRoutesRequireToken() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/stats"))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)

	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/admin/stats"), "garbage"))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestGrantCredits() {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/users/100/credits", CreditsRequest{Amount: 10}), s.token)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[BalanceResponse](s.T(), rr)
	s.Equal(int64(15), resp.Balance)
}

func (s *HandlerSuite) TestDeductInsufficient() {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/users/100/credits/deduct", CreditsRequest{Amount: 99}), s.token)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	testutil.AssertErrorCode(s.T(), rr, "conflict")
}

func (s *HandlerSuite) TestBanAndListBanned() {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/users/100/ban", BanRequest{Reason: "abuse"}), s.token)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/admin/banned"), s.token))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	banned := testutil.UnmarshalResponse[[]moderation.UserRef](s.T(), rr)
	s.Require().Len(*banned, 1)
	s.Equal("abuse", (*banned)[0].BanReason)
}

func (s *HandlerSuite) TestProtectLifecycle() {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/protected", ProtectRequest{Value: "9876543210", Reason: "vip"}), s.token)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.True(testutil.UnmarshalResponse[ProtectResponse](s.T(), rr).Created)

	// second protect reports not created
	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/protected", ProtectRequest{Value: "9876543210"}), s.token))
	s.False(testutil.UnmarshalResponse[ProtectResponse](s.T(), rr).Created)

	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodDelete, "/admin/protected/9876543210"), s.token))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodDelete, "/admin/protected/9876543210"), s.token))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func (s *HandlerSuite) TestUnknownUser() {
	rr := testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/admin/users/999"), s.token))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func (s *HandlerSuite) TestStats() {
	rr := testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/admin/stats"), s.token))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[StatsResponse](s.T(), rr)
	s.Equal(int64(1), resp.TotalUsers)
}
