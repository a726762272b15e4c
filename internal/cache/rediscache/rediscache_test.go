package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "session:abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "session:abc", []byte("delivery-1"), time.Minute))
	require.True(t, mr.Exists("dispatchbox:session:abc"))

	b, ok, err := c.Get(ctx, "session:abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("delivery-1"), b)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "session:abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_ErrorWhenDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	require.Error(t, c.Ping(context.Background()))
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "otp:a@x.com", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "otp:a@x.com", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "otp:a@x.com", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	// other keys are independent
	ok, _, _ = rl.Allow(ctx, "otp:b@x.com", 2, time.Minute)
	require.True(t, ok)
}

func TestRateLimiter_WindowNotExtended(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())
	ctx := context.Background()

	_, _, err := rl.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)
	ok, _, _ := rl.Allow(ctx, "k", 1, time.Minute)
	require.False(t, ok)

	mr.FastForward(30 * time.Second)
	ok, n, _ := rl.Allow(ctx, "k", 1, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}
