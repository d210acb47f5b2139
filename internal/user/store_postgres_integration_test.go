//go:build integration

package user_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"infobroker/internal/user"
	"infobroker/pkg/sentinel"
	"infobroker/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *user.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "lookup_history", "protected_records", "users"))
}

func (s *PostgresStoreSuite) seed(id, credits int64) {
	ctx := context.Background()
	created, err := s.store.GetOrCreate(ctx, &user.User{ID: id, FirstName: "U"}, credits)
	s.Require().NoError(err)
	s.Require().True(created)
}

// TestConcurrentGetOrCreate verifies that concurrent first contact creates one
// row and grants the starting credits exactly once.
func (s *PostgresStoreSuite) TestConcurrentGetOrCreate() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var createdCount atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.store.GetOrCreate(ctx, &user.User{ID: 100, FirstName: "U"}, 5)
			s.NoError(err)
			if created {
				createdCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), createdCount.Load())

	balance, err := s.store.Balance(ctx, 100)
	s.Require().NoError(err)
	s.Equal(int64(5), balance)
}

// TestConcurrentDebitNoDoubleSpend verifies the conditional UPDATE admits
// exactly one debit when many racers contend for a balance of one.
func (s *PostgresStoreSuite) TestConcurrentDebitNoDoubleSpend() {
	ctx := context.Background()
	s.seed(100, 1)

	const goroutines = 50
	var wg sync.WaitGroup
	var successCount, insufficientCount atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.TryDebit(ctx, 100, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrInsufficientFunds):
				insufficientCount.Add(1)
			default:
				s.Failf("unexpected error", "%v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), insufficientCount.Load())

	balance, err := s.store.Balance(ctx, 100)
	s.Require().NoError(err)
	s.Equal(int64(0), balance)
}

// TestConcurrentDebitsAndCreditsConserve verifies no movement is lost under
// mixed concurrent debits and credits.
func (s *PostgresStoreSuite) TestConcurrentDebitsAndCreditsConserve() {
	ctx := context.Background()
	s.seed(100, 100)

	const pairs = 25
	var wg sync.WaitGroup
	for range pairs {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.NoError(s.store.TryDebit(ctx, 100, 2))
		}()
		go func() {
			defer wg.Done()
			s.NoError(s.store.Credit(ctx, 100, 1))
		}()
	}
	wg.Wait()

	balance, err := s.store.Balance(ctx, 100)
	s.Require().NoError(err)
	s.Equal(int64(100-pairs*2+pairs), balance)
}

func (s *PostgresStoreSuite) TestBanRoundTrip() {
	ctx := context.Background()
	s.seed(100, 5)

	banned, err := s.store.IsBanned(ctx, 100)
	s.Require().NoError(err)
	s.False(banned)

	u, err := s.store.Get(ctx, 100)
	s.Require().NoError(err)
	s.Require().NoError(s.store.SetBanned(ctx, 100, 1, "spam", u.JoinedAt))

	banned, err = s.store.IsBanned(ctx, 100)
	s.Require().NoError(err)
	s.True(banned)

	list, err := s.store.ListBanned(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("spam", list[0].BanReason)

	s.Require().NoError(s.store.ClearBan(ctx, 100))
	banned, err = s.store.IsBanned(ctx, 100)
	s.Require().NoError(err)
	s.False(banned)
}
