package tenants

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Service resolves tenant memberships and hands out tenant-scoped data
// handles.
type Service struct {
	repo  Repository
	group singleflight.Group
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// LookupMembership resolves the tenant and role for a user. Concurrent
// lookups for the same user collapse into one store round trip.
func (s *Service) LookupMembership(ctx context.Context, userID string) (Membership, error) {
	resultChan := s.group.DoChan("membership:"+userID, func() (any, error) {
		return s.repo.FindMembership(context.WithoutCancel(ctx), userID)
	})
	select {
	case <-ctx.Done():
		return Membership{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Membership{}, res.Err
		}
		return res.Val.(Membership), nil
	}
}

// CreateTenant provisions a tenant with its first owner. The repository
// performs both writes atomically.
func (s *Service) CreateTenant(ctx context.Context, name, slug, ownerUserID string) (Tenant, error) {
	if name == "" || slug == "" || ownerUserID == "" {
		return Tenant{}, errors.New("tenants: name, slug and owner are required")
	}
	return s.repo.CreateTenant(ctx, name, slug, ownerUserID)
}

// AddMember attaches an additional user to a tenant with the given role.
func (s *Service) AddMember(ctx context.Context, m Membership) error {
	if !m.Role.Valid() {
		return fmt.Errorf("tenants: invalid role %q", m.Role)
	}
	return s.repo.AddMember(ctx, m)
}

// Scoped returns a data handle bound to one tenant for the request lifetime.
func (s *Service) Scoped(tenantID string) *Scoped {
	return &Scoped{repo: s.repo, tenantID: tenantID}
}

// Scoped is the per-request tenant data handle carried in the auth context.
type Scoped struct {
	repo     Repository
	tenantID string
}

// TenantID returns the tenant this handle is bound to.
func (s *Scoped) TenantID() string {
	return s.tenantID
}

// UsageTotals aggregates activity counters for the bound tenant.
func (s *Scoped) UsageTotals(ctx context.Context) (Usage, error) {
	return s.repo.UsageTotals(ctx, s.tenantID)
}
