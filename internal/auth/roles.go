package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of roles the authorization policy understands.
// Values are stored lower-case; ParseRole is the only way raw input becomes
// a Role, so free-text role strings never reach the persistence layer.
type Role string

const (
	RoleSystemAdmin    Role = "system_admin"
	RoleAuditManager   Role = "audit_manager"
	RoleAuditor        Role = "auditor"
	RoleDepartmentHead Role = "department_head"
)

// Roles lists every valid role in a stable order.
var Roles = []Role{RoleSystemAdmin, RoleAuditManager, RoleAuditor, RoleDepartmentHead}

// ParseRole canonicalises raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
	return role, nil
}

// Valid reports whether the role is one of the declared constants.
func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleAuditManager, RoleAuditor, RoleDepartmentHead:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
