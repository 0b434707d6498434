package rbac

import "strings"

// Role is a closed set of account roles. Anything outside the set is treated
// as RoleUnknown and carries no permissions.
type Role string

const (
	// RoleSuperAdmin is the platform operator role. It bypasses permission
	// checks entirely and is implicitly a member of every allowed-role set.
	RoleSuperAdmin Role = "super_admin"
	// RoleOwner owns a tenant.
	RoleOwner Role = "owner"
	// RoleAdmin administers users and settings within a tenant.
	RoleAdmin Role = "admin"
	// RoleEditor edits tenant content.
	RoleEditor Role = "editor"
	// RoleViewer has read-only access.
	RoleViewer Role = "viewer"

	// RoleUnknown marks a value outside the closed set.
	RoleUnknown Role = ""
)

// Roles lists every member of the closed set, ordered by privilege.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleOwner, RoleAdmin, RoleEditor, RoleViewer}
}

// ParseRole maps external input onto the closed set. Unrecognized values
// return RoleUnknown and false; callers at the boundary must reject them
// rather than pass them through.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	case RoleOwner:
		return RoleOwner, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleEditor:
		return RoleEditor, true
	case RoleViewer:
		return RoleViewer, true
	default:
		return RoleUnknown, false
	}
}

// String returns the wire representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}
