package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers auth routes. ipLimiter is the pre-authentication
// stage keyed by hashed client IP; it must wrap the issuance endpoints so an
// anonymous caller's cost is bounded before any verification work runs.
func (h *Handler) MountRoutes(r chi.Router, ipLimiter func(http.Handler) http.Handler, authenticate func(http.Handler) http.Handler) {
	r.Group(func(gr chi.Router) {
		gr.Use(ipLimiter)
		gr.Post("/token", h.handleExchange)
		gr.Post("/refresh", h.handleRefresh)
		gr.Post("/logout", h.handleLogout)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(authenticate)
		gr.Get("/me", h.handleMe)
	})
}
