package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/meridian-hq/meridian/internal/rbac"
)

// ErrTokenInvalid covers every verification failure: bad signature, expiry,
// wrong issuer or audience, malformed claims. Callers surface it as a single
// generic authentication failure so the response does not reveal which check
// tripped.
var ErrTokenInvalid = errors.New("token: invalid")

// Service signs and verifies platform session tokens. It is stateless; the
// only inputs are the signing secret and a clock.
type Service struct {
	secret []byte
	now    func() time.Time
}

// NewService constructs a Service. The secret must be dedicated to session
// tokens; reusing another trust boundary's secret would let tokens minted
// there replay here.
func NewService(secret string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret required")
	}
	return &Service{secret: []byte(secret), now: time.Now}, nil
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Sign mints a token for the identity at the given lifetime tier.
func (s *Service) Sign(id Identity, tier Tier) (Signed, error) {
	ttl, ok := tier.Duration()
	if !ok {
		return Signed{}, fmt.Errorf("token: unknown tier %q", tier)
	}
	if id.UserID == "" || id.TenantID == "" {
		return Signed{}, errors.New("token: subject and tenant required")
	}
	if !id.Role.Valid() {
		return Signed{}, fmt.Errorf("token: role %q outside closed set", id.Role)
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	perms := id.Permissions
	if perms == nil {
		perms = []string{}
	}
	jti := uuid.NewString()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			Subject:   id.UserID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID:    id.TenantID,
		Email:       id.Email,
		Role:        id.Role.String(),
		Permissions: perms,
		TokenType:   string(tier),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Signed{}, fmt.Errorf("token: sign: %w", err)
	}
	return Signed{
		Token:     signed,
		ID:        jti,
		ExpiresAt: expiresAt,
		ExpiresIn: int64(ttl / time.Second),
	}, nil
}

// Verify parses and validates a platform token. Every failure collapses into
// ErrTokenInvalid. Expiry is strict; there is no skew allowance.
func (s *Service) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(0),
	)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if err := validateShape(claims); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *Service) keyFunc(*jwt.Token) (any, error) {
	return s.secret, nil
}

// validateShape enforces the structural claim contract beyond what the JWT
// library checks: non-empty subject and tenant, a role from the closed set,
// a present (possibly empty) permission list, and a known lifetime tier.
func validateShape(c *Claims) error {
	if c.Subject == "" {
		return errors.New("missing sub")
	}
	if c.TenantID == "" {
		return errors.New("missing tenant_id")
	}
	if _, ok := rbac.ParseRole(c.Role); !ok {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	if c.Permissions == nil {
		return errors.New("missing permissions")
	}
	if _, ok := Tier(c.TokenType).Duration(); !ok {
		return fmt.Errorf("unknown token type %q", c.TokenType)
	}
	if c.IssuedAt == nil || c.ExpiresAt == nil || !c.ExpiresAt.After(c.IssuedAt.Time) {
		return errors.New("inconsistent iat/exp")
	}
	return nil
}

// Identity rebuilds the application-facing identity from verified claims.
func (c *Claims) Identity() Identity {
	role, _ := rbac.ParseRole(c.Role)
	return Identity{
		UserID:      c.Subject,
		TenantID:    c.TenantID,
		Email:       c.Email,
		Role:        role,
		Permissions: c.Permissions,
	}
}
