package token_test

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/meridian/internal/token"
)

// foreignToken mints a structurally valid JWT with a non-platform issuer and
// audience, the shape a federated identity backend would produce.
func foreignToken(t *testing.T, secret string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":   "https://id.example.test",
		"aud":   "example-app",
		"sub":   "usr_42",
		"email": "ana@example.test",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func requestWithAuthorization(value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/reports/usage", nil)
	if value != "" {
		r.Header.Set("Authorization", value)
	}
	return r
}

func TestClassifyPlatformToken(t *testing.T) {
	svc := newService(t, "detector-secret")
	signed, err := svc.Sign(testIdentity(), token.TierAccess)
	require.NoError(t, err)

	got := token.Classify(requestWithAuthorization("Bearer " + signed.Token))
	assert.Equal(t, token.KindPlatform, got.Kind)
	assert.Equal(t, signed.Token, got.Token)
}

func TestClassifyFederatedToken(t *testing.T) {
	got := token.Classify(requestWithAuthorization("Bearer " + foreignToken(t, "whatever")))
	assert.Equal(t, token.KindFederated, got.Kind)
	assert.NotEmpty(t, got.Token)
}

func TestClassifyForgedIssuerIsHintOnly(t *testing.T) {
	// A forged payload claiming the platform issuer classifies as platform,
	// but verification with the real secret must still reject it.
	svc := newService(t, "real-secret")
	forged := foreignPlatformLookalike(t)

	got := token.ClassifyCredential(forged)
	assert.Equal(t, token.KindPlatform, got.Kind)

	_, err := svc.Verify(forged)
	assert.ErrorIs(t, err, token.ErrTokenInvalid)
}

func foreignPlatformLookalike(t *testing.T) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":       token.Issuer,
		"aud":       token.Audience,
		"sub":       "usr_42",
		"tenant_id": "ten_7",
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("attacker-secret"))
	require.NoError(t, err)
	return raw
}

func TestClassifyDegradesToNone(t *testing.T) {
	cases := map[string]string{
		"no header":          "",
		"empty bearer":       "Bearer ",
		"basic scheme":       "Basic abc123",
		"bare credential":    "abc123",
		"two segments":       "Bearer aaa.bbb",
		"four segments":      "Bearer a.b.c.d",
		"non-base64 payload": "Bearer aaa.!!!.ccc",
		"non-json payload":   "Bearer aaa." + base64.RawURLEncoding.EncodeToString([]byte("plain text")) + ".ccc",
		"binary payload":     "Bearer aaa." + base64.RawURLEncoding.EncodeToString([]byte{0xff, 0xfe, 0x00}) + ".ccc",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			got := token.Classify(requestWithAuthorization(header))
			assert.Equal(t, token.KindNone, got.Kind)
			assert.Empty(t, got.Token)
		})
	}
}

func TestClassifyCredentialIsTotal(t *testing.T) {
	inputs := []string{
		"", ".", "..", "...", "a..b", string([]byte{0x00, 0xff, 0x80}),
		"ey.ey.ey", "Bearer nested.in.value",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			got := token.ClassifyCredential(in)
			assert.Contains(t, []token.Kind{token.KindPlatform, token.KindFederated, token.KindNone}, got.Kind)
		})
	}
}

func TestClassifyAudienceArray(t *testing.T) {
	claims := jwt.MapClaims{
		"iss": token.Issuer,
		"aud": []string{"other", token.Audience},
		"sub": "usr_42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)
	got := token.ClassifyCredential(raw)
	assert.Equal(t, token.KindPlatform, got.Kind)
}
