// Package ratelimit protects the report endpoint against anonymous abuse
// by counting submissions in several fixed windows, per caller and globally.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// GlobalKey is the counter key shared by all callers.
const GlobalKey = "global"

var (
	// ErrLimitExceeded is returned by Check when a window is exhausted.
	ErrLimitExceeded = errors.New("rate limit exceeded")

	// ErrMissingCaller is returned when no caller identifier is given. It is
	// a contract violation of the caller, not a denial.
	ErrMissingCaller = errors.New("missing caller identifier")

	// ErrStoreUnavailable wraps failures of the counting store.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)

// ExceededError names the window that denied a request.
type ExceededError struct {
	Key    string
	Window Window
	Result Result
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit %s exceeded for %q", e.Window, e.Key)
}

func (e *ExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// Limiter evaluates per-caller windows and then global windows against a
// shared Store. It is safe for concurrent use.
type Limiter struct {
	store         Store
	callerWindows []Window
	globalWindows []Window
	storeTimeout  time.Duration
	failOpen      bool
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStoreTimeout bounds every store call. Zero disables the bound.
func WithStoreTimeout(d time.Duration) Option {
	return func(l *Limiter) {
		l.storeTimeout = d
	}
}

// WithFailOpen allows requests when the store fails. By default such
// requests are denied.
func WithFailOpen() Option {
	return func(l *Limiter) {
		l.failOpen = true
	}
}

// New creates a Limiter. Both window lists are copied and sorted by
// ascending interval, so the shortest window is checked first.
func New(store Store, callerWindows, globalWindows []Window, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("rate limit store must not be nil")
	}
	for _, w := range append(append([]Window(nil), callerWindows...), globalWindows...) {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}

	l := &Limiter{
		store:         store,
		callerWindows: sortWindows(callerWindows),
		globalWindows: sortWindows(globalWindows),
		storeTimeout:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// FailOpen reports whether requests are allowed when the store fails.
func (l *Limiter) FailOpen() bool {
	return l.failOpen
}

// Allow counts one request of callerID and reports whether it may pass.
//
// The first exhausted window stops the evaluation; windows after it are
// not counted and windows before it stay counted. If the store fails, the
// returned error wraps ErrStoreUnavailable and the decision follows the
// fail-open setting.
func (l *Limiter) Allow(ctx context.Context, callerID string) (bool, error) {
	err := l.Check(ctx, callerID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrLimitExceeded):
		return false, nil
	case errors.Is(err, ErrStoreUnavailable):
		return l.failOpen, err
	default:
		return false, err
	}
}

// Check is Allow with the denial reported as an *ExceededError.
func (l *Limiter) Check(ctx context.Context, callerID string) error {
	if callerID == "" {
		return ErrMissingCaller
	}

	for _, w := range l.callerWindows {
		if err := l.increment(ctx, callerID, w); err != nil {
			return err
		}
	}
	for _, w := range l.globalWindows {
		if err := l.increment(ctx, GlobalKey, w); err != nil {
			return err
		}
	}
	return nil
}

func (l *Limiter) increment(ctx context.Context, key string, w Window) error {
	if l.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.storeTimeout)
		defer cancel()
	}

	res, err := l.store.Increment(ctx, key, w)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrStoreUnavailable, key, w, err)
	}
	if res.Exceeded {
		log.Debug().
			Str("key", key).
			Str("window", w.String()).
			Int("count", res.Count).
			Msg("Rate limit window exhausted")
		return &ExceededError{Key: key, Window: w, Result: res}
	}
	return nil
}
