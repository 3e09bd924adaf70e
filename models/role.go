package models

import "fmt"

// Role is the authorization tier of a user. Stored and serialized as its
// numeric value (0 standard, 1 admin).
type Role int

const (
	RoleStandard Role = 0
	RoleAdmin    Role = 1
)

// IsAdmin is the single admin predicate used by authorization checks.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleStandard || r == RoleAdmin }

func (r Role) String() string {
	switch r {
	case RoleStandard:
		return "standard"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}
