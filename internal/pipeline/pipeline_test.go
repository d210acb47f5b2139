package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"infobroker/internal/catalog"
	"infobroker/internal/history"
	"infobroker/internal/ledger"
	"infobroker/internal/moderation"
	"infobroker/internal/platform/metrics"
	"infobroker/internal/user"
	"infobroker/pkg/audit"
	dErrors "infobroker/pkg/domainerrors"
)

var testMetrics = metrics.New()

type fakeInvoker struct {
	result json.RawMessage
	err    error
	calls  int
}

func (f *fakeInvoker) Invoke(_ context.Context, _ catalog.Service, _ string) (json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type PipelineSuite struct {
	suite.Suite

	ctx       context.Context
	users     *user.MemoryStore
	history   *history.MemoryStore
	publisher *audit.MemoryPublisher
	invoker   *fakeInvoker
	ledger    *ledger.Service
	mod       *moderation.Service
	pipeline  *Pipeline
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cat, err := catalog.Default()
	s.Require().NoError(err)

	s.users = user.NewMemoryStore()
	s.history = history.NewMemoryStore()
	s.publisher = audit.NewMemoryPublisher()
	s.invoker = &fakeInvoker{result: json.RawMessage(`{"ok":true}`)}
	s.ledger = ledger.New(s.users, testMetrics, s.publisher, logger)
	s.mod = moderation.New(s.users, moderation.NewMemoryProtectedStore(), cat, logger)

	s.pipeline = New(cat, s.mod, s.ledger, s.history, s.users, s.invoker, testMetrics, s.publisher, logger)
}

func (s *PipelineSuite) seedUser(id, credits int64) {
	_, err := s.users.GetOrCreate(s.ctx, &user.User{ID: id, FirstName: "U"}, credits)
	s.Require().NoError(err)
}

func (s *PipelineSuite) balance(id int64) int64 {
	balance, err := s.users.Balance(s.ctx, id)
	s.Require().NoError(err)
	return balance
}

func (s *PipelineSuite) TestSuccessEndToEnd() {
	s.seedUser(100, 5)

	outcome, err := s.pipeline.Execute(s.ctx, 100, "", "8.8.8.8")
	s.Require().NoError(err)
	s.Equal(StatusSuccess, outcome.Status)
	s.Equal("ip", outcome.Service.Key)
	s.Equal("8.8.8.8", outcome.Query)
	s.JSONEq(`{"ok":true}`, string(outcome.Result))
	s.Equal(int64(4), outcome.Balance)

	s.Equal(int64(4), s.balance(100))

	entries := s.history.Entries()
	s.Require().Len(entries, 1)
	s.Equal("ip", entries[0].ServiceKey)
	s.Equal("8.8.8.8", entries[0].Query)

	u, err := s.users.Get(s.ctx, 100)
	s.Require().NoError(err)
	s.Equal(int64(1), u.TotalLookups)
}

func (s *PipelineSuite) TestBannedBeforeEverything() {
	s.seedUser(100, 5)
	s.Require().NoError(s.mod.Ban(s.ctx, 100, 1, "abuse"))

	outcome, err := s.pipeline.Execute(s.ctx, 100, "", "8.8.8.8")
	s.Require().NoError(err)
	s.Equal(StatusBanned, outcome.Status)
	s.Equal(0, s.invoker.calls)
	s.Equal(int64(5), s.balance(100))
}

func (s *PipelineSuite) TestNoMatchIsNotAnError() {
	s.seedUser(100, 5)

	outcome, err := s.pipeline.Execute(s.ctx, 100, "", "hello there")
	s.Require().NoError(err)
	s.Equal(StatusNoMatch, outcome.Status)
	s.Equal(int64(5), s.balance(100))
}

func (s *PipelineSuite) TestProtectedCostsNothing() {
	// zero balance on purpose: protection must win over the debit check
	s.seedUser(100, 0)
	_, err := s.mod.Protect(s.ctx, "9876543210", 1, "vip")
	s.Require().NoError(err)

	outcome, err := s.pipeline.Execute(s.ctx, 100, "", "9876543210")
	s.Require().NoError(err)
	s.Equal(StatusProtected, outcome.Status)
	s.Equal(0, s.invoker.calls)
	s.Equal(int64(0), s.balance(100))

	denied := s.publisher.ByAction(audit.ActionLookupDenied)
	s.Require().Len(denied, 1)
	s.Equal("protected", denied[0].Reason)
}

func (s *PipelineSuite) TestInsufficientCredits() {
	s.seedUser(100, 0)

	outcome, err := s.pipeline.Execute(s.ctx, 100, "", "9876543210")
	s.Require().NoError(err)
	s.Equal(StatusInsufficientCredits, outcome.Status)
	s.Equal(0, s.invoker.calls)
	s.Empty(s.history.Entries())
}

func (s *PipelineSuite) TestMalformedInputRefunded() {
	s.seedUser(100, 1)

	// explicit hint: the classifier would never route malformed text
	outcome, err := s.pipeline.Execute(s.ctx, 100, "aadhaar", "12345")
	s.Require().NoError(err)
	s.Equal(StatusInvalidFormat, outcome.Status)
	s.Equal(int64(1), outcome.Balance)
	s.Equal(int64(1), s.balance(100))
	s.Equal(0, s.invoker.calls)
	s.Empty(s.history.Entries())

	refunds := s.publisher.ByAction(audit.ActionCreditsRefunded)
	s.Require().Len(refunds, 1)
	s.Equal(ledger.ReasonInvalidFormat, refunds[0].Reason)
}

func (s *PipelineSuite) TestTimeoutRefunded() {
	s.seedUser(100, 3)
	s.invoker.err = dErrors.New(dErrors.CodeTimeout, "upstream timed out")

	outcome, err := s.pipeline.Execute(s.ctx, 100, "", "8.8.8.8")
	s.Require().NoError(err)
	s.Equal(StatusTimeout, outcome.Status)
	s.Equal(int64(3), outcome.Balance)
	s.Equal(int64(3), s.balance(100))
	s.Empty(s.history.Entries())
}

func (s *PipelineSuite) TestServiceErrorRefunded() {
	s.seedUser(100, 3)
	s.invoker.err = dErrors.New(dErrors.CodeUnavailable, "upstream returned 502")

	outcome, err := s.pipeline.Execute(s.ctx, 100, "", "8.8.8.8")
	s.Require().NoError(err)
	s.Equal(StatusServiceError, outcome.Status)
	s.Equal(int64(3), s.balance(100))

	refunds := s.publisher.ByAction(audit.ActionCreditsRefunded)
	s.Require().Len(refunds, 1)
	s.Equal(ledger.ReasonServiceError, refunds[0].Reason)
}

func (s *PipelineSuite) TestUnknownServiceHint() {
	s.seedUser(100, 5)

	_, err := s.pipeline.Execute(s.ctx, 100, "dns", "example.com")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *PipelineSuite) TestNormalizationUppercasesVehicle() {
	s.seedUser(100, 5)

	outcome, err := s.pipeline.Execute(s.ctx, 100, "", "mh12ab1234")
	s.Require().NoError(err)
	s.Equal(StatusSuccess, outcome.Status)
	s.Equal("vehicle", outcome.Service.Key)
	s.Equal("MH12AB1234", outcome.Query)
}

// TestCreditConservation drives a mixed sequence and checks the ledger
// identity: final balance == start - cost * successes.
func (s *PipelineSuite) TestCreditConservation() {
	s.seedUser(100, 10)

	run := func(hint, text string, invokerErr error) Outcome {
		s.invoker.err = invokerErr
		outcome, err := s.pipeline.Execute(s.ctx, 100, hint, text)
		s.Require().NoError(err)
		return outcome
	}

	var successes int64
	if run("", "8.8.8.8", nil).Status == StatusSuccess {
		successes++
	}
	run("", "8.8.8.8", dErrors.New(dErrors.CodeTimeout, "slow"))
	run("", "9876543210", dErrors.New(dErrors.CodeUnavailable, "bad gateway"))
	run("phone", "not-a-number", nil)
	if run("", "110006", nil).Status == StatusSuccess {
		successes++
	}

	s.Equal(int64(2), successes)
	s.Equal(int64(10)-successes, s.balance(100))

	debits := len(s.publisher.ByAction(audit.ActionCreditsDebited))
	refunds := len(s.publisher.ByAction(audit.ActionCreditsRefunded))
	performed := len(s.publisher.ByAction(audit.ActionLookupPerformed))
	s.Equal(debits, performed+refunds)
}
