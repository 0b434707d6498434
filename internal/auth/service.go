package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/tenants"
	"github.com/meridian-hq/meridian/internal/token"
)

// Service orchestrates the per-request authentication pipeline: classify the
// credential, verify it, resolve tenant membership, and build the request's
// auth context. It is also the issuer-side counterpart: exchange, refresh,
// logout.
type Service struct {
	logger      *slog.Logger
	tokens      *token.Service
	identity    IdentityVerifier
	memberships *tenants.Service
	repo        Repository
	revocations RevocationStore
	notifier    Notifier
}

// NewService constructs a Service. notifier may be nil when out-of-band
// alerts are not configured.
func NewService(logger *slog.Logger, tokens *token.Service, identity IdentityVerifier, memberships *tenants.Service, repo Repository, revocations RevocationStore, notifier Notifier) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:      logger,
		tokens:      tokens,
		identity:    identity,
		memberships: memberships,
		repo:        repo,
		revocations: revocations,
		notifier:    notifier,
	}
}

// AuthenticateRequest classifies and verifies the request's credential and
// returns the per-request auth context. Every verification failure collapses
// into shared.ErrUnauthenticated; a valid principal without membership
// surfaces shared.ErrNoMembership.
func (s *Service) AuthenticateRequest(r *http.Request) (*shared.AuthContext, error) {
	ctx := r.Context()
	switch cls := token.Classify(r); cls.Kind {
	case token.KindPlatform:
		claims, err := s.tokens.Verify(cls.Token)
		if err != nil {
			return nil, shared.ErrUnauthenticated
		}
		// Only access-tier tokens authenticate requests; refresh tokens are
		// usable solely at the refresh endpoint.
		if token.Tier(claims.TokenType) != token.TierAccess {
			return nil, shared.ErrUnauthenticated
		}
		id := claims.Identity()
		return s.buildContext(id), nil

	case token.KindFederated:
		fid, err := s.identity.VerifyFederatedSession(ctx, cls.Token)
		if err != nil {
			if errors.Is(err, ErrFederatedRejected) {
				return nil, shared.ErrUnauthenticated
			}
			// An identity-backend outage is not an invalid session.
			return nil, err
		}
		m, err := s.memberships.LookupMembership(ctx, fid.UserID)
		if err != nil {
			if errors.Is(err, shared.ErrNoMembership) {
				return nil, shared.ErrNoMembership
			}
			return nil, err
		}
		return s.buildContext(token.Identity{
			UserID:      fid.UserID,
			TenantID:    m.TenantID,
			Email:       normalizeEmail(fid.Email),
			Role:        m.Role,
			Permissions: rbac.PermissionsForRole(m.Role),
		}), nil

	default:
		return nil, shared.ErrUnauthenticated
	}
}

func (s *Service) buildContext(id token.Identity) *shared.AuthContext {
	return &shared.AuthContext{
		UserID:      id.UserID,
		TenantID:    id.TenantID,
		Email:       id.Email,
		Role:        id.Role,
		Permissions: id.Permissions,
		Data:        s.memberships.Scoped(id.TenantID),
	}
}

// AuthenticateExchange verifies a federated credential and resolves the
// caller's tenant membership. It mints and persists nothing, so the caller
// can spend the per-user budget between verification and issuance: a
// throttled request must leave no token behind.
func (s *Service) AuthenticateExchange(ctx context.Context, credential string) (token.Identity, error) {
	cls := token.ClassifyCredential(credential)
	switch cls.Kind {
	case token.KindFederated:
	case token.KindPlatform:
		return token.Identity{}, ErrNotFederated
	default:
		return token.Identity{}, shared.ErrUnauthenticated
	}

	fid, err := s.identity.VerifyFederatedSession(ctx, cls.Token)
	if err != nil {
		if errors.Is(err, ErrFederatedRejected) {
			return token.Identity{}, shared.ErrUnauthenticated
		}
		return token.Identity{}, err
	}
	m, err := s.memberships.LookupMembership(ctx, fid.UserID)
	if err != nil {
		return token.Identity{}, err
	}

	return token.Identity{
		UserID:      fid.UserID,
		TenantID:    m.TenantID,
		Email:       normalizeEmail(fid.Email),
		Role:        m.Role,
		Permissions: rbac.PermissionsForRole(m.Role),
	}, nil
}

// IssuePair mints the access/refresh pair for an identity that
// AuthenticateExchange already verified, records the refresh token, and
// enqueues the security alert.
func (s *Service) IssuePair(ctx context.Context, id token.Identity, rememberMe bool) (TokenPair, *shared.AuthContext, error) {
	refreshTier := token.TierRefresh
	if rememberMe {
		refreshTier = token.TierRememberMe
	}
	pair, err := s.issue(ctx, id, refreshTier)
	if err != nil {
		return TokenPair{}, nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.SecurityAlert(ctx, id.TenantID, id.Email, "token_exchange"); err != nil {
			s.logger.Warn("enqueue security alert", slog.Any("error", err))
		}
	}
	return pair, s.buildContext(id), nil
}

// Exchange turns a federated credential into platform tokens in one call.
// HTTP issuance goes through the two-step form so the budget lands between
// verification and minting; Exchange composes the same steps for callers
// that bring their own throttling.
func (s *Service) Exchange(ctx context.Context, credential string, rememberMe bool) (TokenPair, *shared.AuthContext, error) {
	id, err := s.AuthenticateExchange(ctx, credential)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return s.IssuePair(ctx, id, rememberMe)
}

// AuthenticateRefresh verifies a refresh token against signature, tier, and
// the revocation list, then re-reads membership. Role and permissions come
// from the store: the claims in the old token are a cache, not the system of
// record. Like AuthenticateExchange it mints nothing.
func (s *Service) AuthenticateRefresh(ctx context.Context, refreshToken string) (token.Identity, error) {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return token.Identity{}, err
	}

	m, err := s.memberships.LookupMembership(ctx, claims.Subject)
	if err != nil {
		return token.Identity{}, err
	}
	if m.TenantID != claims.TenantID {
		// Membership moved since issuance; the old session does not carry
		// over to another tenant.
		return token.Identity{}, shared.ErrUnauthenticated
	}

	return token.Identity{
		UserID:      claims.Subject,
		TenantID:    m.TenantID,
		Email:       claims.Email,
		Role:        m.Role,
		Permissions: rbac.PermissionsForRole(m.Role),
	}, nil
}

// IssueAccess mints a fresh access token for an already verified identity.
func (s *Service) IssueAccess(ctx context.Context, id token.Identity) (TokenPair, *shared.AuthContext, error) {
	access, err := s.tokens.Sign(id, token.TierAccess)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return TokenPair{
		AccessToken: access.Token,
		ExpiresAt:   access.ExpiresAt.Format(time.RFC3339),
		ExpiresIn:   access.ExpiresIn,
		TokenType:   "Bearer",
	}, s.buildContext(id), nil
}

// Refresh composes AuthenticateRefresh and IssueAccess for callers that
// bring their own throttling.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, *shared.AuthContext, error) {
	id, err := s.AuthenticateRefresh(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, nil, err
	}
	return s.IssueAccess(ctx, id)
}

// Logout revokes a refresh token for its remaining lifetime and drops its
// audit record.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	if err := s.repo.DeleteRefreshToken(ctx, claims.ID); err != nil {
		s.logger.Warn("delete refresh token record", slog.Any("error", err))
	}
	return nil
}

func (s *Service) verifyRefresh(ctx context.Context, raw string) (*token.Claims, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, shared.ErrUnauthenticated
	}
	tier := token.Tier(claims.TokenType)
	if tier != token.TierRefresh && tier != token.TierRememberMe {
		return nil, shared.ErrUnauthenticated
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, shared.ErrUnauthenticated
	}
	return claims, nil
}

func (s *Service) issue(ctx context.Context, id token.Identity, refreshTier token.Tier) (TokenPair, error) {
	access, err := s.tokens.Sign(id, token.TierAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.Sign(id, refreshTier)
	if err != nil {
		return TokenPair{}, err
	}
	now := time.Now().UTC()
	if err := s.repo.InsertRefreshToken(ctx, RefreshTokenRecord{
		ID:        refresh.ID,
		UserID:    id.UserID,
		TenantID:  id.TenantID,
		IssuedAt:  now,
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresAt:    access.ExpiresAt.Format(time.RFC3339),
		ExpiresIn:    access.ExpiresIn,
		TokenType:    "Bearer",
	}, nil
}

// normalizeEmail canonicalizes an address before it is compared or stored.
func normalizeEmail(email string) string {
	return norm.NFC.String(email)
}
