package ingest

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/httprate"
	"github.com/luki-ev/synod-bug-report/internal/apperrors"
	"github.com/luki-ev/synod-bug-report/internal/metrics"
	"github.com/luki-ev/synod-bug-report/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

// Limiter decides whether a caller may submit another report.
// *ratelimit.Limiter implements it.
type Limiter interface {
	Check(ctx context.Context, callerID string) error

	// FailOpen reports whether requests pass when the store fails.
	FailOpen() bool
}

// RateLimitOption configures the RateLimit middleware.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	keyFunc httprate.KeyFunc
}

// WithCallerKey replaces httprate.KeyByIP as caller identification.
func WithCallerKey(fn httprate.KeyFunc) RateLimitOption {
	return func(c *rateLimitConfig) {
		c.keyFunc = fn
	}
}

// RateLimit counts every request against the limiter's windows before the
// report is parsed. The caller is identified by its IP address.
func RateLimit(limiter Limiter, opts ...RateLimitOption) func(http.Handler) http.Handler {
	cfg := rateLimitConfig{keyFunc: httprate.KeyByIP}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callerID, err := cfg.keyFunc(r)
			if err != nil {
				log.Error().
					Err(err).
					Str("request_id", apperrors.GetRequestID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Msg("Failed to identify caller for rate limiting")
				apperrors.WriteInternalError(w, r, "Failed to identify caller")
				return
			}

			err = limiter.Check(r.Context(), callerID)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			var exceeded *ratelimit.ExceededError
			switch {
			case errors.As(err, &exceeded):
				scope := "caller"
				if exceeded.Key == ratelimit.GlobalKey {
					scope = "global"
				}
				metrics.RateLimited.WithLabelValues(scope).Inc()

				log.Info().
					Str("request_id", apperrors.GetRequestID(r.Context())).
					Str("scope", scope).
					Str("window", exceeded.Window.String()).
					Msg("Bug report rate limited")

				apperrors.WriteTooManyRequests(w, r, "Too many bug reports. Try again later.", exceeded.Result.ResetIn)

			case errors.Is(err, ratelimit.ErrLimitExceeded):
				metrics.RateLimited.WithLabelValues("unknown").Inc()
				apperrors.WriteTooManyRequests(w, r, "Too many bug reports. Try again later.", 0)

			case errors.Is(err, ratelimit.ErrStoreUnavailable):
				metrics.RateLimitStoreErrors.Inc()
				log.Error().
					Err(err).
					Str("request_id", apperrors.GetRequestID(r.Context())).
					Bool("fail_open", limiter.FailOpen()).
					Msg("Rate limit store unavailable")

				if limiter.FailOpen() {
					next.ServeHTTP(w, r)
					return
				}
				apperrors.WriteServiceUnavailable(w, r, "Rate limiting temporarily unavailable")

			default:
				log.Error().
					Err(err).
					Str("request_id", apperrors.GetRequestID(r.Context())).
					Msg("Rate limit check failed")
				apperrors.WriteInternalError(w, r, "Rate limit check failed")
			}
		})
	}
}
