package tenants_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/internal/tenants"
)

type stubRepo struct {
	membership tenants.Membership
	err        error
	lookups    atomic.Int64
	delay      time.Duration
}

func (s *stubRepo) FindMembership(ctx context.Context, userID string) (tenants.Membership, error) {
	s.lookups.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return tenants.Membership{}, s.err
	}
	return s.membership, nil
}

func (s *stubRepo) CreateTenant(ctx context.Context, name, slug, ownerUserID string) (tenants.Tenant, error) {
	return tenants.Tenant{ID: "ten_new", Name: name, Slug: slug}, nil
}

func (s *stubRepo) AddMember(ctx context.Context, m tenants.Membership) error { return nil }

func (s *stubRepo) UsageTotals(ctx context.Context, tenantID string) (tenants.Usage, error) {
	return tenants.Usage{TenantID: tenantID, Members: 3}, nil
}

func TestLookupMembership(t *testing.T) {
	repo := &stubRepo{membership: tenants.Membership{UserID: "usr_42", TenantID: "ten_7", Role: rbac.RoleEditor}}
	svc := tenants.NewService(repo)

	m, err := svc.LookupMembership(context.Background(), "usr_42")
	require.NoError(t, err)
	assert.Equal(t, "ten_7", m.TenantID)
	assert.Equal(t, rbac.RoleEditor, m.Role)
}

func TestLookupMembershipMissing(t *testing.T) {
	repo := &stubRepo{err: shared.ErrNoMembership}
	svc := tenants.NewService(repo)

	_, err := svc.LookupMembership(context.Background(), "usr_missing")
	assert.ErrorIs(t, err, shared.ErrNoMembership)
}

func TestLookupMembershipDeduplicates(t *testing.T) {
	repo := &stubRepo{
		membership: tenants.Membership{UserID: "usr_42", TenantID: "ten_7", Role: rbac.RoleEditor},
		delay:      20 * time.Millisecond,
	}
	svc := tenants.NewService(repo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.LookupMembership(context.Background(), "usr_42")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, repo.lookups.Load(), int64(8))
}

func TestLookupMembershipCancelled(t *testing.T) {
	repo := &stubRepo{
		membership: tenants.Membership{UserID: "usr_42", TenantID: "ten_7", Role: rbac.RoleEditor},
		delay:      100 * time.Millisecond,
	}
	svc := tenants.NewService(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.LookupMembership(ctx, "usr_42")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateTenant(t *testing.T) {
	svc := tenants.NewService(&stubRepo{})

	tenant, err := svc.CreateTenant(context.Background(), "Acme", "acme", "usr_1")
	require.NoError(t, err)
	assert.Equal(t, "ten_new", tenant.ID)

	for _, tc := range [][3]string{
		{"", "acme", "usr_1"},
		{"Acme", "", "usr_1"},
		{"Acme", "acme", ""},
	} {
		_, err := svc.CreateTenant(context.Background(), tc[0], tc[1], tc[2])
		assert.Error(t, err)
	}
}

func TestAddMemberRejectsUnknownRole(t *testing.T) {
	svc := tenants.NewService(&stubRepo{})

	err := svc.AddMember(context.Background(), tenants.Membership{UserID: "usr_2", TenantID: "ten_7", Role: rbac.Role("ghost")})
	assert.Error(t, err)

	err = svc.AddMember(context.Background(), tenants.Membership{UserID: "usr_2", TenantID: "ten_7", Role: rbac.RoleViewer})
	assert.NoError(t, err)
}

func TestScopedHandle(t *testing.T) {
	svc := tenants.NewService(&stubRepo{})
	scoped := svc.Scoped("ten_7")
	assert.Equal(t, "ten_7", scoped.TenantID())

	usage, err := scoped.UsageTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ten_7", usage.TenantID)
	assert.Equal(t, int64(3), usage.Members)

	var _ shared.TenantData = scoped
}
