package pages

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-hq/meridian/internal/shared"
)

// previewTTL bounds how long a shared preview link stays usable.
const previewTTL = 24 * time.Hour

// Handler serves preview-link creation and resolution.
type Handler struct {
	logger *slog.Logger
	signer *PreviewSigner
}

// NewHandler constructs a pages Handler.
func NewHandler(logger *slog.Logger, signer *PreviewSigner) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, signer: signer}
}

// MountRoutes registers the pages endpoints. Creating a link requires an
// authenticated editor; resolving one is anonymous since the link itself is
// the credential.
func (h *Handler) MountRoutes(r chi.Router, authenticate func(http.Handler) http.Handler, requirePermission func(string) func(http.Handler) http.Handler) {
	r.Group(func(gr chi.Router) {
		gr.Use(authenticate)
		gr.With(requirePermission("pages:update")).Post("/{pageID}/preview-link", h.handleCreatePreviewLink)
	})
	r.Get("/preview", h.handleResolvePreview)
}

type previewLinkResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

func (h *Handler) handleCreatePreviewLink(w http.ResponseWriter, r *http.Request) {
	ac := shared.AuthFromContext(r.Context())
	if ac == nil {
		shared.RespondError(w, http.StatusUnauthorized, shared.CodeUnauthenticated, shared.ErrUnauthenticated.Error())
		return
	}
	pageID := chi.URLParam(r, "pageID")
	if pageID == "" {
		shared.RespondError(w, http.StatusBadRequest, shared.CodeInvalidRequest, "page id is required")
		return
	}

	token, err := h.signer.Sign(ac.TenantID, pageID, previewTTL)
	if err != nil {
		h.logger.Error("sign preview link", slog.Any("error", err))
		shared.RespondError(w, http.StatusInternalServerError, shared.CodeInternal, "internal error")
		return
	}
	shared.RespondJSON(w, http.StatusCreated, previewLinkResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(previewTTL).UTC().Format(time.RFC3339),
	})
}

type previewResponse struct {
	TenantID string `json:"tenant_id"`
	PageID   string `json:"page_id"`
}

func (h *Handler) handleResolvePreview(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		shared.RespondError(w, http.StatusBadRequest, shared.CodeInvalidRequest, "token is required")
		return
	}
	tenantID, pageID, err := h.signer.Verify(token)
	if err != nil {
		shared.RespondError(w, http.StatusNotFound, shared.CodeNotFound, "preview link is invalid or expired")
		return
	}
	shared.RespondJSON(w, http.StatusOK, previewResponse{TenantID: tenantID, PageID: pageID})
}
