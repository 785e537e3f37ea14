package auth

// Role scopes what a user token may do with the provider API
type Role string

const (
	// RoleOwner may read and change the user's providers
	RoleOwner Role = "owner"

	// RoleViewer may only read providers and configs
	RoleViewer Role = "viewer"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleViewer:
		return true
	default:
		return false
	}
}

// HasPermission checks if a role has permission for a required role.
// Owner has all permissions.
func (r Role) HasPermission(required Role) bool {
	if r == RoleOwner {
		return true
	}
	return r == required
}
