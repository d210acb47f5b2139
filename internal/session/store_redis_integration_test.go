//go:build integration

package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"infobroker/internal/session"
	"infobroker/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = session.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	state, err := s.store.Get(ctx, 100)
	s.Require().NoError(err)
	s.True(state.Idle())

	pending := session.State{Pending: session.PendingServiceInput, ServiceKey: "phone"}
	s.Require().NoError(s.store.Put(ctx, 100, pending))

	state, err = s.store.Get(ctx, 100)
	s.Require().NoError(err)
	s.Equal(pending, state)

	s.Require().NoError(s.store.Clear(ctx, 100))

	state, err = s.store.Get(ctx, 100)
	s.Require().NoError(err)
	s.True(state.Idle())
}

func (s *RedisStoreSuite) TestAdminStateSurvivesReconnect() {
	ctx := context.Background()

	pending := session.State{Pending: session.PendingAdminInput, AdminAction: session.AdminActionAddCredits}
	s.Require().NoError(s.store.Put(ctx, 42, pending))

	// A fresh store over the same client must see the state.
	other := session.NewRedisStore(s.redis.Client)
	state, err := other.Get(ctx, 42)
	s.Require().NoError(err)
	s.Equal(pending, state)
}

func (s *RedisStoreSuite) TestCorruptStateFallsBackToIdle() {
	ctx := context.Background()

	s.Require().NoError(s.redis.Client.Set(ctx, "session:state:7", "not json", 0).Err())

	state, err := s.store.Get(ctx, 7)
	s.Require().NoError(err)
	s.True(state.Idle())
}
