package reports

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the reporting endpoints. The chain order is fixed:
// authenticate, then the per-identity budget, then the permission gates —
// the budget is spent before any authorization decision. Permission gates
// are applied per route since viewing and exporting are granted separately.
func (h *Handler) MountRoutes(r chi.Router, authenticate func(http.Handler) http.Handler, requirePermission func(string) func(http.Handler) http.Handler) {
	r.Group(func(gr chi.Router) {
		gr.Use(authenticate)
		gr.Use(h.enforceBudget)
		gr.With(requirePermission("reports:view")).Get("/usage", h.handleUsage)
		gr.With(requirePermission("reports:export")).Get("/export.csv", h.handleExportCSV)
	})
}
