package tenants

import (
	"time"

	"github.com/meridian-hq/meridian/internal/rbac"
)

// Tenant is an isolated customer account.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Membership ties a user to exactly one tenant with one role.
type Membership struct {
	UserID   string
	TenantID string
	Role     rbac.Role
}

// Usage summarizes per-tenant activity for the reports surface.
type Usage struct {
	TenantID      string `json:"tenant_id"`
	Members       int64  `json:"members"`
	Pages         int64  `json:"pages"`
	Domains       int64  `json:"domains"`
	ActiveTokens  int64  `json:"active_tokens"`
	Notifications int64  `json:"notifications"`
}
