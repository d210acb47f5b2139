package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	state, err := store.Get(ctx, 100)
	require.NoError(t, err)
	assert.True(t, state.Idle())

	pending := State{Pending: PendingServiceInput, ServiceKey: "phone"}
	require.NoError(t, store.Put(ctx, 100, pending))

	state, err = store.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, pending, state)
	assert.False(t, state.Idle())

	require.NoError(t, store.Clear(ctx, 100))

	state, err = store.Get(ctx, 100)
	require.NoError(t, err)
	assert.True(t, state.Idle())
}

func TestMemoryStoreIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, 100, State{Pending: PendingServiceInput, ServiceKey: "ip"}))
	require.NoError(t, store.Put(ctx, 200, State{Pending: PendingAdminInput, AdminAction: AdminActionBan}))

	a, err := store.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "ip", a.ServiceKey)

	b, err := store.Get(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, AdminActionBan, b.AdminAction)

	require.NoError(t, store.Clear(ctx, 100))
	b, err = store.Get(ctx, 200)
	require.NoError(t, err)
	assert.False(t, b.Idle())
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = store.Put(ctx, id, State{Pending: PendingServiceInput, ServiceKey: "phone"})
			_, _ = store.Get(ctx, id)
			_ = store.Clear(ctx, id)
		}(int64(i))
	}
	wg.Wait()

	for i := range 50 {
		state, err := store.Get(ctx, int64(i))
		require.NoError(t, err)
		assert.True(t, state.Idle())
	}
}
