package accounts

import "strings"

// Role is the application role stored on a profile record. The store keeps
// whatever value it was given; only the three roles below are recognized.
type Role string

const (
	// RoleAdmin may use the admin console
	RoleAdmin Role = "admin"
	// RoleEditor is a content editor
	RoleEditor Role = "editor"
	// RoleUser is the default role
	RoleUser Role = "user"
)

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleUser:
		return true
	default:
		return false
	}
}

// IsAdmin is true only for the exact admin role.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Effective returns the role used for authorization decisions. Unknown
// values behave like RoleUser.
func (r Role) Effective() Role {
	if r.IsValid() {
		return r
	}
	return RoleUser
}

func (r Role) String() string {
	return string(r)
}

// ParseRole normalizes s and reports whether it names a known role
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	return role, role.IsValid()
}

// GetAllRoles returns the recognized roles
func GetAllRoles() []Role {
	return []Role{RoleAdmin, RoleEditor, RoleUser}
}
