package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Result is the outcome of counting one event against a window.
type Result struct {
	// Count is the number of events in the current window including this one.
	Count int

	// Exceeded reports whether Count is above the window's limit.
	Exceeded bool

	// ResetIn is the time until the current window expires.
	ResetIn time.Duration
}

// Store counts events per key and window. Increment must be atomic with
// respect to other increments of the same key and window: two concurrent
// callers never observe the same count.
type Store interface {
	Increment(ctx context.Context, key string, w Window) (Result, error)
}

// sweepInterval is how often a MemoryStore drops expired counters.
const sweepInterval = time.Minute

// MemoryStore is a fixed-window Store kept in process memory. It is only
// shared between requests of a single process.
//
// A counter is reset when it is touched after its window expired. Expired
// counters of keys that are never touched again are dropped at most once
// per sweepInterval, so an increment does not scale with the number of
// callers.
type MemoryStore struct {
	mu        sync.Mutex
	counters  map[string]*memoryCounter
	now       func() time.Time
	lastSweep time.Time
}

type memoryCounter struct {
	count     int
	expiresAt time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastSweep = s.now()
	return s
}

// Increment implements Store.
func (s *MemoryStore) Increment(ctx context.Context, key string, w Window) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.evict(now)
	}

	id := counterKey(key, w)
	c, ok := s.counters[id]
	if !ok {
		c = &memoryCounter{}
		s.counters[id] = c
	}
	if !now.Before(c.expiresAt) {
		c.count = 0
		c.expiresAt = now.Add(w.Interval)
	}
	c.count++

	return Result{
		Count:    c.count,
		Exceeded: c.count > w.Limit,
		ResetIn:  c.expiresAt.Sub(now),
	}, nil
}

// Len returns the number of stored counters, including expired ones that
// have not been swept yet.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.counters)
}

// evict drops expired counters. Callers hold s.mu.
func (s *MemoryStore) evict(now time.Time) {
	for id, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, id)
		}
	}
	s.lastSweep = now
}

// counterKey names the counter of key within window w by interval in
// milliseconds and limit, e.g. "global:3600000:10"
func counterKey(key string, w Window) string {
	return key + ":" + strconv.FormatInt(w.Interval.Milliseconds(), 10) + ":" + strconv.Itoa(w.Limit)
}
