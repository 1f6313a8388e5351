package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FixedWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	w := PerMinute(2)

	res, err := store.Increment(ctx, "k", w)
	require.NoError(t, err)
	require.Equal(t, Result{Count: 1, Exceeded: false, ResetIn: time.Minute}, res)

	now = now.Add(30 * time.Second)
	res, err = store.Increment(ctx, "k", w)
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	require.False(t, res.Exceeded)
	require.Equal(t, 30*time.Second, res.ResetIn)

	res, err = store.Increment(ctx, "k", w)
	require.NoError(t, err)
	require.True(t, res.Exceeded)

	now = now.Add(30 * time.Second)
	res, err = store.Increment(ctx, "k", w)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, 1, store.Len())
}

func TestMemoryStore_WindowsAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", PerHour(1))
	require.NoError(t, err)
	res, err := store.Increment(ctx, "k", PerDay(1))
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	res, err = store.Increment(ctx, "other", PerHour(1))
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
}

func TestMemoryStore_SubSecondIntervalsAreDistinct(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", Window{Limit: 5, Interval: 1500 * time.Millisecond})
	require.NoError(t, err)
	res, err := store.Increment(ctx, "k", Window{Limit: 5, Interval: time.Second})
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.Equal(t, 2, store.Len())
}

func TestMemoryStore_ManyCallersExpireAndSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	w := PerSecond(1)

	const callers = 5000
	for i := 0; i < callers; i++ {
		res, err := store.Increment(ctx, "10.0."+strconv.Itoa(i), w)
		require.NoError(t, err)
		require.Equal(t, 1, res.Count)
	}
	require.Equal(t, callers, store.Len())

	// expired but not swept yet: the touched counter starts over
	now = now.Add(2 * time.Second)
	res, err := store.Increment(ctx, "10.0.0", w)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.False(t, res.Exceeded)
	require.Equal(t, time.Second, res.ResetIn)
	require.Equal(t, callers, store.Len())

	// the next call after sweepInterval drops every expired counter
	now = now.Add(sweepInterval)
	_, err = store.Increment(ctx, "fresh", w)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	w := PerHour(50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Increment(ctx, "global", w)
			if err == nil && !res.Exceeded {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 50, allowed)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Increment(ctx, "k", PerHour(1))
	require.ErrorIs(t, err, context.Canceled)
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedisStore_FixedWindow(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	w := PerHour(2)

	res, err := store.Increment(ctx, "1.2.3.4", w)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	require.False(t, res.Exceeded)
	require.Equal(t, time.Hour, res.ResetIn)
	require.True(t, mr.Exists("test:1.2.3.4:3600000:2"))
	require.Equal(t, time.Hour, mr.TTL("test:1.2.3.4:3600000:2"))

	res, err = store.Increment(ctx, "1.2.3.4", w)
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	require.False(t, res.Exceeded)

	res, err = store.Increment(ctx, "1.2.3.4", w)
	require.NoError(t, err)
	require.Equal(t, 3, res.Count)
	require.True(t, res.Exceeded)

	mr.FastForward(time.Hour)
	res, err = store.Increment(ctx, "1.2.3.4", w)
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
}

func TestRedisStore_WithLimiter(t *testing.T) {
	store, _ := newTestRedisStore(t)
	l, err := New(store, []Window{PerHour(1)}, []Window{PerHour(2)})
	require.NoError(t, err)
	ctx := context.Background()

	allowed, err := l.Allow(ctx, "1.1.1.1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = l.Allow(ctx, "2.2.2.2")
	require.NoError(t, err)
	require.True(t, allowed)

	// third caller passes its own window but exhausts the global one
	allowed, err = l.Allow(ctx, "3.3.3.3")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, err := store.Increment(context.Background(), "k", PerHour(1))
	require.Error(t, err)
}

func TestNewRedisStore_RequiresAddr(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{})
	require.Error(t, err)
}
