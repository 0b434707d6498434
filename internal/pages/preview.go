package pages

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrPreviewInvalid covers every way a preview link can fail verification.
// Callers cannot distinguish tampering from expiry.
var ErrPreviewInvalid = errors.New("pages: invalid preview link")

// PreviewSigner mints and verifies shareable preview links for unpublished
// pages. Links are bearer credentials scoped to one page, signed with the
// site-content secret. That secret is distinct from the auth token secret,
// so a leaked preview link can never be replayed against the auth surface.
type PreviewSigner struct {
	key []byte
	now func() time.Time
}

// NewPreviewSigner derives the signer's MAC key from the site secret.
func NewPreviewSigner(secret string) (*PreviewSigner, error) {
	if secret == "" {
		return nil, errors.New("pages: preview signing secret is required")
	}
	key := blake2b.Sum256([]byte(secret))
	return &PreviewSigner{key: key[:], now: time.Now}, nil
}

// WithClock overrides the signer's clock for tests.
func (s *PreviewSigner) WithClock(now func() time.Time) *PreviewSigner {
	s.now = now
	return s
}

// Sign produces a preview token for pageID that stays valid for ttl.
func (s *PreviewSigner) Sign(tenantID, pageID string, ttl time.Duration) (string, error) {
	if tenantID == "" || pageID == "" {
		return "", errors.New("pages: tenant and page are required")
	}
	if ttl <= 0 {
		return "", errors.New("pages: ttl must be positive")
	}
	payload := fmt.Sprintf("%s.%s.%d", tenantID, pageID, s.now().Add(ttl).Unix())
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.mac(payload), nil
}

// Verify checks a preview token and returns the tenant and page it grants
// access to.
func (s *PreviewSigner) Verify(token string) (tenantID, pageID string, err error) {
	encoded, mac, ok := strings.Cut(token, ".")
	if !ok {
		return "", "", ErrPreviewInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", ErrPreviewInvalid
	}
	payload := string(raw)
	if subtle.ConstantTimeCompare([]byte(s.mac(payload)), []byte(mac)) != 1 {
		return "", "", ErrPreviewInvalid
	}

	parts := strings.Split(payload, ".")
	if len(parts) != 3 {
		return "", "", ErrPreviewInvalid
	}
	exp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || s.now().Unix() >= exp {
		return "", "", ErrPreviewInvalid
	}
	return parts[0], parts[1], nil
}

func (s *PreviewSigner) mac(payload string) string {
	h, err := blake2b.New256(s.key)
	if err != nil {
		// blake2b only errors on oversized keys; ours is fixed at 32 bytes.
		panic(err)
	}
	h.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
