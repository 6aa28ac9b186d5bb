package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testActionStore(t *testing.T) (*ActionTokenStore, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewActionTokenStore(rdb, time.Second), m
}

func TestActionTokenRedeemedExactlyOnce(t *testing.T) {
	s, _ := testActionStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "activation", "tok-1", "user-1", time.Hour))

	uid, ok := s.Redeem(ctx, "activation", "tok-1")
	assert.True(t, ok)
	assert.Equal(t, "user-1", uid)

	// Redemption consumes the mapping atomically; a second attempt with the
	// same token loses.
	_, ok = s.Redeem(ctx, "activation", "tok-1")
	assert.False(t, ok)
}

func TestActionTokenKindsAreDistinct(t *testing.T) {
	s, _ := testActionStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "activation", "tok-1", "user-1", time.Hour))

	// The same token string under a different kind is a different key, and a
	// miss must not consume the real entry.
	_, ok := s.Redeem(ctx, "recovery", "tok-1")
	assert.False(t, ok)

	uid, ok := s.Redeem(ctx, "activation", "tok-1")
	assert.True(t, ok)
	assert.Equal(t, "user-1", uid)
}

func TestActionTokenExpires(t *testing.T) {
	s, m := testActionStore(t)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "recovery", "tok-1", "user-1", time.Minute))
	m.FastForward(2 * time.Minute)

	_, ok := s.Redeem(ctx, "recovery", "tok-1")
	assert.False(t, ok)
}

// Action tokens fail closed: with no reachable cache nothing can be recorded
// or redeemed.
func TestActionTokenStoreUnavailable(t *testing.T) {
	s := NewActionTokenStore(nil, time.Second)
	ctx := context.Background()

	err := s.Store(ctx, "activation", "tok-1", "user-1", time.Hour)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, ok := s.Redeem(ctx, "activation", "tok-1")
	assert.False(t, ok)
}
