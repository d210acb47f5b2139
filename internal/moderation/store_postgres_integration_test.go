//go:build integration

package moderation_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"infobroker/internal/moderation"
	"infobroker/pkg/testutil/containers"
)

type ProtectedStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *moderation.PostgresProtectedStore
}

func TestProtectedStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProtectedStoreSuite))
}

func (s *ProtectedStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = moderation.NewPostgresProtectedStore(s.postgres.DB)
}

func (s *ProtectedStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "protected_records"))
}

// TestConcurrentProtectSameValue verifies the unique constraint admits exactly
// one creator; the rest observe already-protected without an error.
func (s *ProtectedStoreSuite) TestConcurrentProtectSameValue() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var createdCount atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func(admin int64) {
			defer wg.Done()
			created, err := s.store.Put(ctx, moderation.ProtectedRecord{
				Value:       "9876543210",
				ProtectedBy: admin,
				ProtectedAt: time.Now(),
				Reason:      "race",
			})
			s.NoError(err)
			if created {
				createdCount.Add(1)
			}
		}(int64(i))
	}
	wg.Wait()

	s.Equal(int32(1), createdCount.Load())

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *ProtectedStoreSuite) TestRemoveReportsPresence() {
	ctx := context.Background()

	created, err := s.store.Put(ctx, moderation.ProtectedRecord{
		Value: "9876543210", ProtectedBy: 1, ProtectedAt: time.Now(), Reason: "vip",
	})
	s.Require().NoError(err)
	s.True(created)

	removed, err := s.store.Remove(ctx, "9876543210")
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.store.Remove(ctx, "9876543210")
	s.Require().NoError(err)
	s.False(removed)
}
