package auth

import (
	"context"
	"errors"
	"time"
)

// ErrNotFederated indicates a token-exchange attempt with a credential that
// is not a federated identity token.
var ErrNotFederated = errors.New("auth: exchange requires a federated credential")

// TokenPair is the wire artifact returned on issuance; clients present the
// access token as a bearer credential on subsequent requests.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    string `json:"expires_at"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// RefreshTokenRecord is the audit row kept for each issued refresh token.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	TenantID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Repository persists refresh-token audit records.
type Repository interface {
	InsertRefreshToken(ctx context.Context, rec RefreshTokenRecord) error
	DeleteRefreshToken(ctx context.Context, id string) error
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

// RevocationStore remembers revoked refresh-token IDs until they would have
// expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// FederatedIdentity is what the external identity backend vouches for.
type FederatedIdentity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// IdentityVerifier verifies federated session tokens with the external
// identity backend.
type IdentityVerifier interface {
	VerifyFederatedSession(ctx context.Context, token string) (FederatedIdentity, error)
}

// Notifier delivers security notifications out of band.
type Notifier interface {
	SecurityAlert(ctx context.Context, tenantID, email, event string) error
}
