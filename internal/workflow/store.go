package workflow

import (
	"context"
	"time"
)

// Store describes persistence operations required by the workflow.
// UpdateStatus is the serialization point for concurrent transitions: it
// must apply the change iff the stored status equals expected, and return
// ErrConflict otherwise. No partial application is possible.
type Store interface {
	CreateAudit(ctx context.Context, a *Audit) error
	GetAudit(ctx context.Context, id string) (*Audit, error)
	UpdateStatus(ctx context.Context, auditID string, expected, next Status) error

	AddFinding(ctx context.Context, f *Finding) error
	ListFindings(ctx context.Context, auditID string) ([]Finding, error)

	AddFollowup(ctx context.Context, f *Followup) error
	SetFollowupStatus(ctx context.Context, followupID string, status FollowupStatus) error
	ListOverdueFollowups(ctx context.Context, now time.Time) ([]Followup, error)

	IncrementArtifact(ctx context.Context, auditID string, kind ArtifactKind) error
	ArtifactCounts(ctx context.Context, auditID string) (ArtifactCounts, error)

	RecordApproval(ctx context.Context, auditID, departmentID, approverID string) error
	ApprovedDepartments(ctx context.Context, auditID string) (map[string]bool, error)
	ClearApprovals(ctx context.Context, auditID string) error
}
