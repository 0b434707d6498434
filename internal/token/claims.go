package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridian-hq/meridian/internal/rbac"
)

// Fixed issuer and audience for platform-minted tokens. The detector relies
// on these to tell a platform token apart from a federated credential.
const (
	Issuer   = "meridian"
	Audience = "meridian-clients"
)

// Tier selects a fixed token lifetime.
type Tier string

const (
	TierAccess     Tier = "access"
	TierRefresh    Tier = "refresh"
	TierRememberMe Tier = "remember_me"
)

const (
	accessTTL     = 15 * time.Minute
	refreshTTL    = 7 * 24 * time.Hour
	rememberMeTTL = 30 * 24 * time.Hour
)

// Duration returns the fixed lifetime for the tier, or false for an
// unrecognized tier.
func (t Tier) Duration() (time.Duration, bool) {
	switch t {
	case TierAccess:
		return accessTTL, true
	case TierRefresh:
		return refreshTTL, true
	case TierRememberMe:
		return rememberMeTTL, true
	default:
		return 0, false
	}
}

// Claims is the platform session token payload. Email, role and permissions
// are denormalized at issuance for hot-path authorization; they are a cache
// of the system of record, never an authority for destructive operations.
type Claims struct {
	jwt.RegisteredClaims
	TenantID    string   `json:"tenant_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	TokenType   string   `json:"token_type"`
}

// Identity is the application-facing claim set used to request a signature
// and returned by verification.
type Identity struct {
	UserID      string
	TenantID    string
	Email       string
	Role        rbac.Role
	Permissions []string
}

// Signed is the result of minting a token. ID is the jti claim, used for
// audit records and revocation.
type Signed struct {
	Token     string
	ID        string
	ExpiresAt time.Time
	ExpiresIn int64
}
