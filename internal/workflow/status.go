package workflow

import (
	"fmt"
	"strings"

	"github.com/wolethescientist/audit-system-sub001/internal/auth"
)

// Status is the closed set of audit lifecycle states. Values are stored
// upper-case canonically and check-constrained at the persistence boundary;
// free-text status storage is rejected by ParseStatus.
type Status string

const (
	StatusPlanned          Status = "PLANNED"
	StatusExecuting        Status = "EXECUTING"
	StatusReporting        Status = "REPORTING"
	StatusAwaitingApproval Status = "AWAITING_APPROVAL"
	StatusClosed           Status = "CLOSED"
)

// ParseStatus canonicalises raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.TrimSpace(strings.ToUpper(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
	return status, nil
}

// Valid reports whether the status is one of the declared constants.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusExecuting, StatusReporting, StatusAwaitingApproval, StatusClosed:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

type transition struct {
	from, to Status
}

// transitionRoles gates each lifecycle edge by acting role. A system admin
// is allowed on every edge; the CLOSED reopen path is admin-only. Edges not
// listed here do not exist.
var transitionRoles = map[transition][]auth.Role{
	{StatusPlanned, StatusExecuting}:          {auth.RoleAuditManager, auth.RoleSystemAdmin},
	{StatusExecuting, StatusReporting}:        {auth.RoleAuditor, auth.RoleAuditManager, auth.RoleSystemAdmin},
	{StatusReporting, StatusAwaitingApproval}: {auth.RoleAuditManager, auth.RoleSystemAdmin},
	{StatusAwaitingApproval, StatusClosed}:    {auth.RoleAuditManager, auth.RoleSystemAdmin},
	{StatusAwaitingApproval, StatusReporting}: {auth.RoleDepartmentHead, auth.RoleSystemAdmin},
	{StatusClosed, StatusExecuting}:           {auth.RoleSystemAdmin},
}

// allowedRoles returns the roles permitted to perform the edge, or false if
// the edge does not exist in the lifecycle.
func allowedRoles(from, to Status) ([]auth.Role, bool) {
	roles, ok := transitionRoles[transition{from, to}]
	return roles, ok
}
