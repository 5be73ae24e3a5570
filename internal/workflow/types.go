package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("workflow: not found")
	// ErrConflict is returned when a concurrent transition won the
	// compare-and-swap on the audit's status.
	ErrConflict = errors.New("workflow: concurrent status change")
	// ErrInvalidTransition is returned for lifecycle edges that do not exist.
	ErrInvalidTransition = errors.New("workflow: invalid status transition")
	// ErrPreconditionNotMet is returned when a transition's completeness gate
	// fails (e.g. moving to REPORTING with no recorded artifacts).
	ErrPreconditionNotMet = errors.New("workflow: precondition not met")
	ErrInvalidInput       = errors.New("workflow: invalid input")
)

// Severity classifies a finding.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity canonicalises raw input into a Severity.
func ParseSeverity(raw string) (Severity, error) {
	sev := Severity(strings.TrimSpace(strings.ToUpper(raw)))
	switch sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	}
	return "", fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, raw)
}

// FollowupStatus tracks remediation progress.
type FollowupStatus string

const (
	FollowupOpen       FollowupStatus = "open"
	FollowupInProgress FollowupStatus = "in_progress"
	FollowupCompleted  FollowupStatus = "completed"
)

// ParseFollowupStatus canonicalises raw input into a FollowupStatus.
func ParseFollowupStatus(raw string) (FollowupStatus, error) {
	st := FollowupStatus(strings.TrimSpace(strings.ToLower(raw)))
	switch st {
	case FollowupOpen, FollowupInProgress, FollowupCompleted:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown followup status %q", ErrInvalidInput, raw)
}

// Audit is a lifecycle-tracked engagement scoped to one or more departments.
// Status changes only via Service.Transition.
type Audit struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Status        Status    `json:"status"`
	DepartmentIDs []string  `json:"department_ids"`
	AuditorIDs    []string  `json:"auditor_ids"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasAuditor reports whether the user is assigned to the audit.
func (a *Audit) HasAuditor(userID string) bool {
	for _, id := range a.AuditorIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// HasDepartment reports whether the department is in the audit's scope.
func (a *Audit) HasDepartment(departmentID string) bool {
	for _, id := range a.DepartmentIDs {
		if id == departmentID {
			return true
		}
	}
	return false
}

// Finding belongs to exactly one audit and is recorded during EXECUTING.
type Finding struct {
	ID          string    `json:"id"`
	AuditID     string    `json:"audit_id"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Followup is a remediation item tied to a finding with a due date.
type Followup struct {
	ID          string         `json:"id"`
	FindingID   string         `json:"finding_id"`
	AuditID     string         `json:"audit_id"`
	Description string         `json:"description"`
	DueDate     time.Time      `json:"due_date"`
	Status      FollowupStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Overdue reports whether the followup is past due and not completed.
// A completed followup is never overdue regardless of its due date.
func (f *Followup) Overdue(now time.Time) bool {
	return f.Status != FollowupCompleted && f.DueDate.Before(now)
}

// ArtifactKind enumerates the evidence types that gate the move to REPORTING.
type ArtifactKind string

const (
	ArtifactEvidence    ArtifactKind = "evidence"
	ArtifactObservation ArtifactKind = "observation"
	ArtifactInterview   ArtifactKind = "interview"
)

// ArtifactCounts aggregates recorded artifacts for one audit.
type ArtifactCounts struct {
	Evidence     int `json:"evidence"`
	Observations int `json:"observations"`
	Interviews   int `json:"interviews"`
}

// Any reports whether at least one artifact of any kind was recorded.
func (c ArtifactCounts) Any() bool {
	return c.Evidence > 0 || c.Observations > 0 || c.Interviews > 0
}
