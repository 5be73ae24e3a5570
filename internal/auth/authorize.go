package auth

import "fmt"

// Authorize allows the claims iff their role is in the required set.
// Pure function: no I/O, no side effects.
func Authorize(claims *Claims, required ...Role) error {
	if claims == nil {
		return ErrForbidden
	}
	for _, role := range required {
		if claims.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s may not perform this operation", ErrForbidden, claims.Role)
}

// AuthorizeDepartment allows the claims iff their role is in the required set
// AND their department matches the resource's department. A system admin
// bypasses department scoping entirely.
func AuthorizeDepartment(claims *Claims, departmentID string, required ...Role) error {
	if claims == nil {
		return ErrForbidden
	}
	if claims.Role == RoleSystemAdmin {
		return nil
	}
	if err := Authorize(claims, required...); err != nil {
		return err
	}
	if claims.DepartmentID == "" || claims.DepartmentID != departmentID {
		return fmt.Errorf("%w: operation is scoped to department %s", ErrForbidden, departmentID)
	}
	return nil
}
