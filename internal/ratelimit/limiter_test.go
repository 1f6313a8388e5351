package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedStore records increments and reports exhaustion for chosen
// key/window pairs.
type scriptedStore struct {
	mu        sync.Mutex
	calls     []string
	exhausted map[string]bool
	err       error
}

func (s *scriptedStore) Increment(ctx context.Context, key string, w Window) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := key + " " + w.String()
	s.calls = append(s.calls, call)
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Count: 1, Exceeded: s.exhausted[call]}, nil
}

func newTestLimiter(t *testing.T, store Store, opts ...Option) *Limiter {
	t.Helper()

	l, err := New(store,
		[]Window{PerDay(10), PerHour(1)},
		[]Window{PerDay(20), PerHour(10)},
		opts...,
	)
	require.NoError(t, err)
	return l
}

func TestLimiter_CallerWindowReached(t *testing.T) {
	store := &scriptedStore{exhausted: map[string]bool{"1.2.3.4 1/hour": true}}
	l := newTestLimiter(t, store)

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, []string{"1.2.3.4 1/hour"}, store.calls)
}

func TestLimiter_SecondCallerWindowReached(t *testing.T) {
	store := &scriptedStore{exhausted: map[string]bool{"1.2.3.4 10/day": true}}
	l := newTestLimiter(t, store)

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, []string{"1.2.3.4 1/hour", "1.2.3.4 10/day"}, store.calls)
}

func TestLimiter_GlobalWindowReached(t *testing.T) {
	store := &scriptedStore{exhausted: map[string]bool{"global 20/day": true}}
	l := newTestLimiter(t, store)

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, []string{
		"1.2.3.4 1/hour",
		"1.2.3.4 10/day",
		"global 10/hour",
		"global 20/day",
	}, store.calls)
}

func TestLimiter_NotReached(t *testing.T) {
	store := &scriptedStore{}
	l := newTestLimiter(t, store)

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	require.True(t, allowed)
	require.Len(t, store.calls, 4)
}

func TestLimiter_Check_ReportsWindow(t *testing.T) {
	store := &scriptedStore{exhausted: map[string]bool{"global 10/hour": true}}
	l := newTestLimiter(t, store)

	err := l.Check(context.Background(), "1.2.3.4")
	require.ErrorIs(t, err, ErrLimitExceeded)

	var exceeded *ExceededError
	require.True(t, errors.As(err, &exceeded))
	require.Equal(t, GlobalKey, exceeded.Key)
	require.Equal(t, PerHour(10), exceeded.Window)
}

func TestLimiter_MissingCaller(t *testing.T) {
	store := &scriptedStore{}
	l := newTestLimiter(t, store)

	allowed, err := l.Allow(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingCaller)
	require.False(t, allowed)
	require.Empty(t, store.calls)
}

func TestLimiter_StoreFailureFailsClosed(t *testing.T) {
	store := &scriptedStore{err: errors.New("connection refused")}
	l := newTestLimiter(t, store)

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.False(t, allowed)
	require.Len(t, store.calls, 1)
}

func TestLimiter_StoreFailureFailOpen(t *testing.T) {
	store := &scriptedStore{err: errors.New("connection refused")}
	l := newTestLimiter(t, store, WithFailOpen())

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.True(t, allowed)
}

type blockingStore struct{}

func (blockingStore) Increment(ctx context.Context, key string, w Window) (Result, error) {
	<-ctx.Done()
	return Result{}, ctx.Err()
}

func TestLimiter_StoreTimeout(t *testing.T) {
	l := newTestLimiter(t, blockingStore{}, WithStoreTimeout(10*time.Millisecond))

	allowed, err := l.Allow(context.Background(), "1.2.3.4")
	require.False(t, allowed)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_SortsWindowsAndRejectsInvalid(t *testing.T) {
	l, err := New(&scriptedStore{}, []Window{PerDay(10), PerMinute(3), PerHour(1)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Window{PerMinute(3), PerHour(1), PerDay(10)}, l.callerWindows)
	require.Empty(t, l.globalWindows)

	_, err = New(&scriptedStore{}, []Window{PerHour(0)}, nil)
	require.Error(t, err)

	_, err = New(nil, nil, nil)
	require.Error(t, err)
}

func TestLimiter_WithMemoryStore(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(WithClock(func() time.Time { return now }))
	l, err := New(store, []Window{PerHour(1), PerDay(10)}, []Window{PerHour(10), PerDay(20)})
	require.NoError(t, err)
	ctx := context.Background()

	allowed, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, allowed)

	// second request within the hour hits the caller's hourly window
	allowed, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, allowed)

	// other callers still pass
	allowed, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, allowed)

	now = now.Add(time.Hour)
	allowed, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, allowed)
}
