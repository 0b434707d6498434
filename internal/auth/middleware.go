package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/token"
)

// AuthObserver counts authentication outcomes. The observability metrics
// satisfy it.
type AuthObserver interface {
	ObserveAuth(kind, outcome string)
}

// Middleware wires the authentication pipeline into HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Metrics AuthObserver
}

// Authenticate verifies the request's credential and attaches the auth
// context. The pipeline order is fixed: classification and verification run
// here, before any per-identity rate-limit budget is spent and before any
// permission gate.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, err := m.Service.AuthenticateRequest(r)
		if err != nil {
			m.observe(r, outcomeFor(err))
			m.reject(w, r, err)
			return
		}
		m.observe(r, "accepted")
		next.ServeHTTP(w, r.WithContext(shared.ContextWithAuth(r.Context(), ac)))
	})
}

// RequirePermission gates a route on one permission. It assumes Authenticate
// ran earlier in the chain.
func (m Middleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := shared.AuthFromContext(r.Context())
			if ac == nil {
				shared.RespondError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.ErrUnauthenticated.Error())
				return
			}
			if !ac.Can(permission) {
				shared.RespondError(w, http.StatusForbidden, shared.CodePermissionDenied, shared.ErrPermissionDenied.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route on role membership. The super-admin role passes
// every gate.
func (m Middleware) RequireRole(roles ...rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := shared.AuthFromContext(r.Context())
			if ac == nil {
				shared.RespondError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.ErrUnauthenticated.Error())
				return
			}
			if !rbac.HasRole(ac.Role, roles...) {
				shared.RespondError(w, http.StatusForbidden, shared.CodePermissionDenied, shared.ErrPermissionDenied.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) observe(r *http.Request, outcome string) {
	if m.Metrics == nil {
		return
	}
	m.Metrics.ObserveAuth(string(token.Classify(r).Kind), outcome)
}

func outcomeFor(err error) string {
	if errors.Is(err, shared.ErrNoMembership) {
		return "denied"
	}
	return "rejected"
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNoMembership):
		shared.RespondError(w, http.StatusForbidden, shared.CodePermissionDenied, shared.ErrNoMembership.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		shared.RespondError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.ErrUnauthenticated.Error())
	default:
		if m.Logger != nil {
			m.Logger.Error("authenticate request", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		shared.RespondError(w, http.StatusInternalServerError, shared.CodeInternal, "internal error")
	}
}
