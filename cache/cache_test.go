package cache_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/time-tracking/cache"
	"github.com/warp/time-tracking/clock"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type result struct {
	Hours string `json:"hours"`
}

func TestMemory_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock(time.Date(2020, 9, 1, 9, 0, 0, 0, time.UTC))
	c := cache.NewMemory(clk)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))

	clk.Advance(59 * time.Minute)
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	clk.Advance(time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires exactly at TTL")
}

func TestMemory_SweepAndDelete(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock(time.Date(2020, 9, 1, 9, 0, 0, 0, time.UTC))
	c := cache.NewMemory(clk)

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "gone", []byte("3"), time.Hour))
	require.NoError(t, c.Delete(ctx, "gone"))

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestGetOrSet_ComputesOnceWithinTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock(time.Date(2020, 9, 1, 9, 0, 0, 0, time.UTC))
	c := cache.NewMemory(clk)

	calls := 0
	compute := func(context.Context) (result, error) {
		calls++
		return result{Hours: "37.50"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := cache.GetOrSet(ctx, c, quietLog(), "stats", time.Hour, compute)
		require.NoError(t, err)
		assert.Equal(t, "37.50", got.Hours)
	}
	assert.Equal(t, 1, calls)

	clk.Advance(time.Hour)
	_, err := cache.GetOrSet(ctx, c, quietLog(), "stats", time.Hour, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "recomputed after expiry")
}

func TestGetOrSet_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory(nil)
	boom := errors.New("boom")

	_, err := cache.GetOrSet(ctx, c, quietLog(), "k", time.Hour, func(context.Context) (result, error) {
		return result{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("down")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (brokenCache) Delete(context.Context, string) error { return errors.New("down") }
func (brokenCache) Ping(context.Context) error         { return errors.New("down") }

func TestGetOrSet_CacheFailureFallsBackToCompute(t *testing.T) {
	got, err := cache.GetOrSet(context.Background(), brokenCache{}, quietLog(), "k", time.Hour,
		func(context.Context) (result, error) { return result{Hours: "1.00"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "1.00", got.Hours)
}

func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping integration test. Set TEST_REDIS_ADDR to run.")
	}
	ctx := context.Background()
	cfg := cache.DefaultRedisConfig(addr)
	cfg.KeyPrefix = "time-tracking-test:"
	r, err := cache.NewRedis(ctx, cfg)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(v))

	require.NoError(t, r.Delete(ctx, "k"))
	_, ok, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
