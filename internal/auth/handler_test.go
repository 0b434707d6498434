package auth_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/meridian/internal/auth"
	"github.com/meridian-hq/meridian/internal/ratelimit"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/tenants"
	"github.com/meridian-hq/meridian/internal/token"
)

type httpFixture struct {
	*fixture
	router chi.Router
}

func newHTTPFixture(t *testing.T, identity *stubIdentity, tenantRepo *stubTenantRepo) *httpFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens, err := token.NewService("handler-test-secret")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newMemoryAuthRepo()
	notifier := &recordingNotifier{}
	svc := auth.NewService(logger, tokens, identity, tenants.NewService(tenantRepo), repo, auth.NewRedisRevocations(client), notifier)

	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(client, "test"))
	handler := auth.NewHandler(logger, svc, limiter)
	mw := auth.Middleware{Service: svc, Logger: logger}

	ipStage := ratelimit.Middleware(logger, limiter, 100, time.Minute, func(r *http.Request) (string, error) {
		return ratelimit.Key("ip", "stub"), nil
	})

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		handler.MountRoutes(r, ipStage, mw.Authenticate)
	})
	return &httpFixture{
		fixture: &fixture{service: svc, tokens: tokens, identity: identity, repo: repo, notifier: notifier},
		router:  router,
	}
}

func (f *httpFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func decodePair(t *testing.T, w *httptest.ResponseRecorder) auth.TokenPair {
	t.Helper()
	var pair auth.TokenPair
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pair))
	return pair
}

func TestHandlerExchange(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())

	w := f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	pair := decodePair(t, w)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)

	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
}

func TestHandlerExchangeRememberMe(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())

	w := f.do(t, http.MethodPost, "/auth/token", federatedToken(t), map[string]bool{"remember_me": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	pair := decodePair(t, w)
	claims, err := f.tokens.Verify(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, string(token.TierRememberMe), claims.TokenType)
}

func TestHandlerExchangeErrors(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		f := newHTTPFixture(t, federatedStub(), editorMembership())
		w := f.do(t, http.MethodPost, "/auth/token", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
	t.Run("platform credential", func(t *testing.T) {
		f := newHTTPFixture(t, federatedStub(), editorMembership())
		signed, err := f.tokens.Sign(platformIdentity(), token.TierAccess)
		require.NoError(t, err)
		w := f.do(t, http.MethodPost, "/auth/token", signed.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
	t.Run("identity backend rejects", func(t *testing.T) {
		f := newHTTPFixture(t, &stubIdentity{err: auth.ErrFederatedRejected}, editorMembership())
		w := f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
	t.Run("no membership", func(t *testing.T) {
		f := newHTTPFixture(t, federatedStub(), &stubTenantRepo{err: shared.ErrNoMembership})
		w := f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandlerExchangeUserBudget(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())

	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil)
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code, last.Body.String())
	assert.NotEmpty(t, last.Header().Get("Retry-After"))

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(last.Body).Decode(&envelope))
	assert.Equal(t, shared.CodeRateLimited, envelope.Error.Code)
}

func TestHandlerExchangeThrottledLeavesNoTokenBehind(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())

	for i := 0; i < 10; i++ {
		w := f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())

	// The budget is spent before minting: the throttled request must not
	// persist a live refresh token the client never received, and it must
	// not raise a security alert for an issuance that never happened.
	assert.Len(t, f.repo.records, 10)
	assert.Len(t, f.notifier.events, 10)
}

func TestHandlerRefresh(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())
	pair := decodePair(t, f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil))

	w := f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	refreshed := decodePair(t, w)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Empty(t, refreshed.RefreshToken)
}

func TestHandlerRefreshValidation(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())
	w := f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerLogoutThenRefresh(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())
	pair := decodePair(t, f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil))

	w := f.do(t, http.MethodPost, "/auth/logout", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerMe(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())
	pair := decodePair(t, f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil))

	w := f.do(t, http.MethodGet, "/auth/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me struct {
		UserID      string   `json:"user_id"`
		TenantID    string   `json:"tenant_id"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&me))
	assert.Equal(t, "usr_42", me.UserID)
	assert.Equal(t, "ten_7", me.TenantID)
	assert.Equal(t, "editor", me.Role)
	assert.NotEmpty(t, me.Permissions)
}

func TestHandlerMeUnauthenticated(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())

	w := f.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/auth/me", "definitely-not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerMeRequiresAccessTier(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())
	pair := decodePair(t, f.do(t, http.MethodPost, "/auth/token", federatedToken(t), nil))

	w := f.do(t, http.MethodGet, "/auth/me", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlerIPStageBoundsAnonymousCost(t *testing.T) {
	f := newHTTPFixture(t, federatedStub(), editorMembership())

	// The stub IP key funnels every request through one bucket; after the
	// budget runs out even garbage credentials get a 429 without touching
	// verification.
	var code int
	for i := 0; i < 105; i++ {
		w := f.do(t, http.MethodPost, "/auth/token", "garbage", nil)
		code = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func platformIdentity() token.Identity {
	return token.Identity{
		UserID:      "usr_42",
		TenantID:    "ten_7",
		Email:       "ana@example.test",
		Role:        "editor",
		Permissions: []string{"pages:*"},
	}
}
