package shared

import (
	"context"

	"github.com/meridian-hq/meridian/internal/rbac"
)

// TenantData is the tenant-scoped data-access handle resolved for a request.
// internal/tenants provides the implementation; consumers narrow it to the
// queries they need.
type TenantData interface {
	TenantID() string
}

// AuthContext identifies the authenticated principal for one request. It is
// owned by the request lifetime and never cached or shared across requests.
type AuthContext struct {
	UserID      string
	TenantID    string
	Email       string
	Role        rbac.Role
	Permissions []string
	Data        TenantData
}

// Can reports whether the request's resolved permission set grants the
// requested permission. The super-admin role is always granted.
func (a *AuthContext) Can(permission string) bool {
	if a == nil {
		return false
	}
	if a.Role == rbac.RoleSuperAdmin {
		return true
	}
	return rbac.GrantedBy(a.Permissions, permission)
}

type authContextKey struct{}

// ContextWithAuth stores the auth context in ctx.
func ContextWithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthFromContext extracts the auth context, or nil for an unauthenticated
// request.
func AuthFromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return ac
}
