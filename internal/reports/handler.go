package reports

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/meridian-hq/meridian/internal/ratelimit"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/tenants"
)

// Per-identity budget for the reporting surface. Report queries fan out to
// several aggregate subqueries, so the budget is tighter than the global
// ceiling.
const (
	reportUserLimit  = 20
	reportUserWindow = time.Minute
)

// usageSource is the tenant-scoped slice of data a report needs. The scoped
// handle attached to the auth context satisfies it.
type usageSource interface {
	UsageTotals(ctx context.Context) (tenants.Usage, error)
}

// Handler serves tenant usage reports to authenticated members.
type Handler struct {
	logger  *slog.Logger
	limiter *ratelimit.Limiter
}

// NewHandler constructs a reports Handler.
func NewHandler(logger *slog.Logger, limiter *ratelimit.Limiter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, limiter: limiter}
}

func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	usage, ok := h.loadUsage(w, r)
	if !ok {
		return
	}
	shared.RespondJSON(w, http.StatusOK, usage)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	usage, ok := h.loadUsage(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="usage.csv"`)
	if err := writeUsageCSV(w, usage); err != nil {
		h.logger.Error("write usage csv", slog.Any("error", err))
	}
}

// enforceBudget spends the per-identity budget. It runs between Authenticate
// and the permission gates: the budget is charged before the route decides
// whether the caller may see anything, so a caller without the permission
// cannot hammer the surface for free.
func (h *Handler) enforceBudget(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac := shared.AuthFromContext(r.Context())
		if ac == nil {
			shared.RespondError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.ErrUnauthenticated.Error())
			return
		}

		result, err := h.limiter.Enforce(r.Context(), ratelimit.Key("admin_reports", ac.TenantID, ac.UserID), reportUserLimit, reportUserWindow)
		if err != nil && !errors.Is(err, ratelimit.ErrExceeded) {
			h.logger.Error("rate limit store", slog.Any("error", err))
			shared.RespondError(w, http.StatusInternalServerError, shared.CodeInternal, "internal error")
			return
		}
		ratelimit.SetHeaders(w, result)
		if err != nil {
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

// loadUsage fetches the caller's tenant usage. The budget was already spent
// by enforceBudget earlier in the chain. It writes the error response itself
// and reports ok=false when the request is already answered.
func (h *Handler) loadUsage(w http.ResponseWriter, r *http.Request) (tenants.Usage, bool) {
	ac := shared.AuthFromContext(r.Context())
	if ac == nil {
		shared.RespondError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.ErrUnauthenticated.Error())
		return tenants.Usage{}, false
	}

	source, ok := ac.Data.(usageSource)
	if !ok {
		h.logger.Error("auth context missing tenant data handle", slog.String("tenant_id", ac.TenantID))
		shared.RespondError(w, http.StatusInternalServerError, shared.CodeInternal, "internal error")
		return tenants.Usage{}, false
	}
	usage, err := source.UsageTotals(r.Context())
	if err != nil {
		h.logger.Error("load tenant usage", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, shared.CodeInternal, "internal error")
		return tenants.Usage{}, false
	}
	return usage, true
}

func writeUsageCSV(w http.ResponseWriter, usage tenants.Usage) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"Tenant", usage.TenantID},
		{"Members", strconv.FormatInt(usage.Members, 10)},
		{"Pages", strconv.FormatInt(usage.Pages, 10)},
		{"Domains", strconv.FormatInt(usage.Domains, 10)},
		{"Active Tokens", strconv.FormatInt(usage.ActiveTokens, 10)},
		{"Notifications", strconv.FormatInt(usage.Notifications, 10)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
