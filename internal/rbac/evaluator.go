package rbac

import (
	"fmt"
	"strings"
)

// Wildcard grants every permission.
const Wildcard = "*"

// rolePermissions is the static catalog. Permission strings follow the
// resource:action grammar: a literal "resource:action", a scoped wildcard
// "resource:*", or a comma-joined action list "resource:a,b,c".
var rolePermissions = map[Role][]string{
	RoleSuperAdmin: {Wildcard},
	RoleOwner: {
		"tenant:*",
		"users:*",
		"domains:*",
		"pages:*",
		"layouts:*",
		"reports:*",
		"notifications:*",
	},
	RoleAdmin: {
		"users:create,update,list",
		"domains:*",
		"pages:*",
		"layouts:*",
		"reports:view,export",
		"notifications:*",
	},
	RoleEditor: {
		"pages:*",
		"layouts:read,update",
		"reports:view",
		"notifications:read",
	},
	RoleViewer: {
		"pages:read",
		"layouts:read",
		"reports:view",
	},
}

// PermissionsForRole resolves the permission set granted to a role. It is
// total: unknown roles yield an empty set, never an error. The returned slice
// is a copy and safe for the caller to retain.
func PermissionsForRole(role Role) []string {
	perms, ok := rolePermissions[role]
	if !ok {
		return []string{}
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// HasPermission reports whether the role grants the requested
// "resource:action" permission. The super-admin role is authorized for
// arbitrary pairs, including ones absent from any catalog. Unknown roles and
// malformed requests fail closed.
func HasPermission(role Role, permission string) bool {
	if role == RoleSuperAdmin {
		return true
	}
	return permissionSetGrants(rolePermissions[role], permission)
}

// GrantedBy evaluates a requested permission against an already-resolved
// permission set, e.g. the denormalized set carried in a session token.
func GrantedBy(granted []string, permission string) bool {
	return permissionSetGrants(granted, permission)
}

// HasRole reports whether role is one of allowed. The super-admin role
// matches every non-empty allowed set; this bypass is hard-coded, not
// data-driven. Unknown roles never match.
func HasRole(role Role, allowed ...Role) bool {
	if !role.Valid() {
		return false
	}
	if role == RoleSuperAdmin {
		return true
	}
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// ValidateCatalog checks every catalog entry against the permission grammar
// and rejects duplicates. It runs at startup and in tests so that per-request
// evaluation can assume well-formed grants.
func ValidateCatalog() error {
	for role, perms := range rolePermissions {
		seen := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			if _, dup := seen[p]; dup {
				return fmt.Errorf("rbac: duplicate permission %q for role %q", p, role)
			}
			seen[p] = struct{}{}
			if p == Wildcard {
				continue
			}
			_, action, ok := splitPermission(p)
			if !ok {
				return fmt.Errorf("rbac: malformed permission %q for role %q", p, role)
			}
			if action != Wildcard {
				for _, a := range strings.Split(action, ",") {
					if a == "" || a == Wildcard {
						return fmt.Errorf("rbac: malformed action list in %q for role %q", p, role)
					}
				}
			}
		}
	}
	return nil
}

func permissionSetGrants(granted []string, permission string) bool {
	resource, action, ok := splitPermission(permission)
	if !ok {
		// A bare request can still match the universal wildcard.
		for _, g := range granted {
			if g == Wildcard {
				return true
			}
		}
		return false
	}
	for _, g := range granted {
		if g == Wildcard || g == permission {
			return true
		}
		gResource, gAction, ok := splitPermission(g)
		if !ok || gResource != resource {
			continue
		}
		if gAction == Wildcard {
			return true
		}
		for _, a := range strings.Split(gAction, ",") {
			if a == action {
				return true
			}
		}
	}
	return false
}

func splitPermission(p string) (resource, action string, ok bool) {
	resource, action, ok = strings.Cut(p, ":")
	if !ok || resource == "" || action == "" {
		return "", "", false
	}
	return resource, action, true
}
