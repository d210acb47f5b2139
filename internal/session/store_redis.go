package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "session:state:"

// stateTTL bounds how long an abandoned prompt stays pending.
const stateTTL = time.Hour

// RedisStore shares conversation state across instances. Values are JSON with
// a TTL so abandoned prompts expire back to Idle on their own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func stateKey(userID int64) string {
	return stateKeyPrefix + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (State, error) {
	raw, err := s.client.Get(ctx, stateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("get session state: %w", err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		// Corrupt state is dropped; the user falls back to Idle.
		return State{}, nil
	}
	return state, nil
}

func (s *RedisStore) Put(ctx context.Context, userID int64, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(userID), raw, stateTTL).Err(); err != nil {
		return fmt.Errorf("put session state: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}
