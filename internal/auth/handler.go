package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-hq/meridian/internal/ratelimit"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/token"
)

// Per-identity budgets for the issuance endpoints. The IP-keyed stage in
// front of these routes is configured in the router.
const (
	exchangeUserLimit  = 10
	exchangeUserWindow = time.Minute
	refreshUserLimit   = 30
	refreshUserWindow  = time.Minute
)

// Handler wires HTTP endpoints for token issuance and session introspection.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	limiter   *ratelimit.Limiter
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, limiter *ratelimit.Limiter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		limiter:   limiter,
		validator: validator.New(),
	}
}

type exchangeRequest struct {
	RememberMe bool `json:"remember_me"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	credential := token.BearerCredential(r)
	if credential == "" {
		shared.RespondError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.ErrUnauthenticated.Error())
		return
	}

	var req exchangeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.RespondError(w, http.StatusBadRequest, shared.CodeInvalidRequest, "malformed request body")
			return
		}
	}

	id, err := h.service.AuthenticateExchange(r.Context(), credential)
	if err != nil {
		h.respondServiceError(w, "token exchange", err)
		return
	}

	// Post-authentication budget keyed by tenant and user, spent before any
	// minting or persistence: a throttled request leaves no refresh-token
	// record behind. The IP stage already bounded the pre-auth work.
	result, err := h.limiter.Enforce(r.Context(), ratelimit.Key("token-exchange", id.TenantID, id.UserID), exchangeUserLimit, exchangeUserWindow)
	ratelimit.SetHeaders(w, result)
	if err != nil {
		h.respondServiceError(w, "token exchange", err)
		return
	}

	pair, _, err := h.service.IssuePair(r.Context(), id, req.RememberMe)
	if err != nil {
		h.respondServiceError(w, "token exchange", err)
		return
	}

	shared.RespondJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.CodeInvalidRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.CodeInvalidRequest, "refresh_token is required")
		return
	}

	id, err := h.service.AuthenticateRefresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondServiceError(w, "token refresh", err)
		return
	}

	result, err := h.limiter.Enforce(r.Context(), ratelimit.Key("token-refresh", id.TenantID, id.UserID), refreshUserLimit, refreshUserWindow)
	ratelimit.SetHeaders(w, result)
	if err != nil {
		h.respondServiceError(w, "token refresh", err)
		return
	}

	pair, _, err := h.service.IssueAccess(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "token refresh", err)
		return
	}

	shared.RespondJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.CodeInvalidRequest, "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, shared.CodeInvalidRequest, "refresh_token is required")
		return
	}
	if err := h.service.Logout(r.Context(), req.RefreshToken); err != nil {
		h.respondServiceError(w, "logout", err)
		return
	}
	shared.RespondJSON(w, http.StatusNoContent, nil)
}

type meResponse struct {
	UserID      string   `json:"user_id"`
	TenantID    string   `json:"tenant_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ac := shared.AuthFromContext(r.Context())
	if ac == nil {
		shared.RespondError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.ErrUnauthenticated.Error())
		return
	}
	shared.RespondJSON(w, http.StatusOK, meResponse{
		UserID:      ac.UserID,
		TenantID:    ac.TenantID,
		Email:       ac.Email,
		Role:        ac.Role.String(),
		Permissions: ac.Permissions,
	})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	var exceeded *ratelimit.ExceededError
	switch {
	case errors.Is(err, ErrNotFederated):
		shared.RespondError(w, http.StatusBadRequest, shared.CodeInvalidRequest, ErrNotFederated.Error())
	case errors.Is(err, shared.ErrNoMembership):
		shared.RespondError(w, http.StatusForbidden, shared.CodePermissionDenied, shared.ErrNoMembership.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		shared.RespondError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.ErrUnauthenticated.Error())
	case errors.As(err, &exceeded):
		retry := time.Until(exceeded.ResetAt)
		if retry < 0 {
			retry = 0
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)+1))
		shared.RespondError(w, http.StatusTooManyRequests, shared.CodeRateLimited, "rate limit exceeded")
	default:
		h.logger.Error(op, slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, shared.CodeInternal, "internal error")
	}
}
