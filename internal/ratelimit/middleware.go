package ratelimit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-hq/meridian/internal/shared"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(r *http.Request) (string, error)

// Observer is notified when a request is denied by a budget. The purpose is
// the first segment of the limiter key.
type Observer interface {
	ObserveRateLimited(purpose string)
}

// Middleware enforces a fixed-window budget per derived key, emitting the
// standard X-RateLimit response headers on allowed and throttled requests
// alike.
func Middleware(logger *slog.Logger, limiter *Limiter, limit int, window time.Duration, key KeyFunc, observers ...Observer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k, err := key(r)
			if err != nil || k == "" {
				shared.RespondError(w, http.StatusBadRequest, shared.CodeInvalidRequest, "unable to identify request")
				return
			}
			result, err := limiter.Enforce(r.Context(), k, limit, window)
			if err != nil && !errors.Is(err, ErrExceeded) {
				if logger != nil {
					logger.Error("rate limit store", slog.Any("error", err))
				}
				shared.RespondError(w, http.StatusInternalServerError, shared.CodeInternal, "internal error")
				return
			}
			SetHeaders(w, result)
			if err != nil {
				purpose, _, _ := strings.Cut(k, ":")
				for _, obs := range observers {
					obs.ObserveRateLimited(purpose)
				}
				retry := time.Until(result.ResetAt)
				if retry < 0 {
					retry = 0
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)+1))
				shared.RespondError(w, http.StatusTooManyRequests, shared.CodeRateLimited, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes the rate-limit metadata contract onto the response.
func SetHeaders(w http.ResponseWriter, result Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
