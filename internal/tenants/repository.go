package tenants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-hq/meridian/internal/platform/db"
	"github.com/meridian-hq/meridian/internal/rbac"
	"github.com/meridian-hq/meridian/internal/shared"
)

// ErrMemberExists indicates the user already belongs to a tenant.
var ErrMemberExists = errors.New("tenants: membership already exists")

// Repository defines persistence operations for tenants and memberships.
type Repository interface {
	FindMembership(ctx context.Context, userID string) (Membership, error)
	CreateTenant(ctx context.Context, name, slug, ownerUserID string) (Tenant, error)
	AddMember(ctx context.Context, m Membership) error
	UsageTotals(ctx context.Context, tenantID string) (Usage, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindMembership resolves the tenant and role for a user.
func (r *PGRepository) FindMembership(ctx context.Context, userID string) (Membership, error) {
	const query = `SELECT user_id, tenant_id, role FROM tenant_members WHERE user_id = $1`
	var m Membership
	var role string
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&m.UserID, &m.TenantID, &role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, shared.ErrNoMembership
		}
		return Membership{}, err
	}
	// Role is a closed enum; a record outside it is a data problem and must
	// not pass through as a free string.
	parsed, ok := rbac.ParseRole(role)
	if !ok {
		return Membership{}, fmt.Errorf("tenants: unknown role %q for user %s", role, userID)
	}
	m.Role = parsed
	return m, nil
}

// CreateTenant inserts a new tenant together with its owner membership. The
// two writes share a transaction: a tenant must never exist without an owner.
func (r *PGRepository) CreateTenant(ctx context.Context, name, slug, ownerUserID string) (Tenant, error) {
	const insertTenant = `INSERT INTO tenants (name, slug, created_at) VALUES ($1, $2, $3) RETURNING id, name, slug, created_at`
	const insertOwner = `INSERT INTO tenant_members (user_id, tenant_id, role, created_at) VALUES ($1, $2, $3, $4)`

	var t Tenant
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if err := tx.QueryRow(ctx, insertTenant, name, slug, now).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertOwner, ownerUserID, t.ID, rbac.RoleOwner.String(), now); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrMemberExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Tenant{}, err
	}
	return t, nil
}

// AddMember attaches a user to a tenant. A user belongs to exactly one
// tenant; the unique constraint on user_id enforces that.
func (r *PGRepository) AddMember(ctx context.Context, m Membership) error {
	const query = `INSERT INTO tenant_members (user_id, tenant_id, role, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, m.UserID, m.TenantID, m.Role.String(), time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrMemberExists
		}
		return err
	}
	return nil
}

// UsageTotals aggregates tenant activity counters.
func (r *PGRepository) UsageTotals(ctx context.Context, tenantID string) (Usage, error) {
	const query = `
SELECT
  (SELECT COUNT(*) FROM tenant_members WHERE tenant_id = $1),
  (SELECT COUNT(*) FROM pages WHERE tenant_id = $1),
  (SELECT COUNT(*) FROM domains WHERE tenant_id = $1),
  (SELECT COUNT(*) FROM refresh_tokens WHERE tenant_id = $1 AND expires_at > NOW()),
  (SELECT COUNT(*) FROM notifications WHERE tenant_id = $1)`
	usage := Usage{TenantID: tenantID}
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&usage.Members, &usage.Pages, &usage.Domains, &usage.ActiveTokens, &usage.Notifications)
	if err != nil {
		return Usage{}, err
	}
	return usage, nil
}

var _ Repository = (*PGRepository)(nil)
