package models

import "fmt"

// Role is the authorization role stored on an account. It is persisted as a
// smallint and published in access tokens by name.
type Role int16

const (
	RoleUser Role = iota
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAdmin:
		return "Admin"
	default:
		return fmt.Sprintf("Role(%d)", int16(r))
	}
}
