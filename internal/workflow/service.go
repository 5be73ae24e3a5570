package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolethescientist/audit-system-sub001/internal/auth"
	"github.com/wolethescientist/audit-system-sub001/internal/ids"
)

// Service governs the audit lifecycle: which role may perform which
// transition, which completeness preconditions gate it, and the atomic
// per-audit status swap. Authorization is checked before preconditions,
// preconditions before the write; nothing is ever applied partially.
type Service struct {
	store Store
	now   func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the workflow service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateAuditInput carries the planning payload.
type CreateAuditInput struct {
	Title         string
	DepartmentIDs []string
	AuditorIDs    []string
}

// CreateAudit plans a new audit. Audit managers only (admin bypass).
// New audits always start in PLANNED.
func (s *Service) CreateAudit(ctx context.Context, claims *auth.Claims, in CreateAuditInput) (*Audit, error) {
	if err := auth.Authorize(claims, auth.RoleAuditManager, auth.RoleSystemAdmin); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(in.DepartmentIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one department is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	audit := &Audit{
		ID:            ids.New(),
		Title:         title,
		Status:        StatusPlanned,
		DepartmentIDs: dedupe(in.DepartmentIDs),
		AuditorIDs:    dedupe(in.AuditorIDs),
		CreatedBy:     claims.UserID(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateAudit(ctx, audit); err != nil {
		return nil, err
	}
	return audit, nil
}

// GetAudit loads an audit by id.
func (s *Service) GetAudit(ctx context.Context, id string) (*Audit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: audit id is required", ErrInvalidInput)
	}
	return s.store.GetAudit(ctx, id)
}

// Transition moves an audit from its current status to target.
// Order of checks: edge existence, acting-role authorization, completeness
// precondition, then the conditional swap keyed on the status read at the
// start. Two concurrent attempts on the same audit can never both succeed:
// the loser of the swap gets ErrConflict.
func (s *Service) Transition(ctx context.Context, claims *auth.Claims, auditID string, target Status) (*Audit, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}
	audit, err := s.GetAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	current := audit.Status

	roles, ok := allowedRoles(current, target)
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}
	if err := auth.Authorize(claims, roles...); err != nil {
		return nil, err
	}
	// An auditor may only advance audits they are assigned to.
	if claims.Role == auth.RoleAuditor && !audit.HasAuditor(claims.UserID()) {
		return nil, fmt.Errorf("%w: auditor is not assigned to this audit", auth.ErrForbidden)
	}
	// A department head may only send audits back within their own scope.
	if claims.Role == auth.RoleDepartmentHead && !audit.HasDepartment(claims.DepartmentID) {
		return nil, fmt.Errorf("%w: audit is not scoped to the head's department", auth.ErrForbidden)
	}

	if err := s.checkPrecondition(ctx, audit, target); err != nil {
		return nil, err
	}

	if err := s.store.UpdateStatus(ctx, audit.ID, current, target); err != nil {
		return nil, err
	}

	// Leaving the approval stage invalidates collected approvals.
	if (current == StatusAwaitingApproval && target != StatusClosed) || current == StatusClosed {
		if err := s.store.ClearApprovals(ctx, audit.ID); err != nil {
			return nil, err
		}
	}

	audit.Status = target
	audit.UpdatedAt = s.now().UTC()
	return audit, nil
}

func (s *Service) checkPrecondition(ctx context.Context, audit *Audit, target Status) error {
	switch {
	case audit.Status == StatusExecuting && target == StatusReporting:
		counts, err := s.store.ArtifactCounts(ctx, audit.ID)
		if err != nil {
			return err
		}
		if !counts.Any() {
			return fmt.Errorf("%w: no evidence, observations or interviews recorded", ErrPreconditionNotMet)
		}
	case audit.Status == StatusAwaitingApproval && target == StatusClosed:
		approved, err := s.store.ApprovedDepartments(ctx, audit.ID)
		if err != nil {
			return err
		}
		for _, dept := range audit.DepartmentIDs {
			if !approved[dept] {
				return fmt.Errorf("%w: department %s has not approved", ErrPreconditionNotMet, dept)
			}
		}
	}
	return nil
}

// Approve records a department head's sign-off while the audit is awaiting
// approval. The head's department must be in the audit's scope (admin
// bypass). Approving twice is idempotent.
func (s *Service) Approve(ctx context.Context, claims *auth.Claims, auditID string) error {
	audit, err := s.GetAudit(ctx, auditID)
	if err != nil {
		return err
	}
	if audit.Status != StatusAwaitingApproval {
		return fmt.Errorf("%w: audit is %s, not awaiting approval", ErrPreconditionNotMet, audit.Status)
	}

	if claims != nil && claims.Role == auth.RoleSystemAdmin {
		// Admin approval counts for the first unapproved department.
		approved, err := s.store.ApprovedDepartments(ctx, audit.ID)
		if err != nil {
			return err
		}
		for _, dept := range audit.DepartmentIDs {
			if !approved[dept] {
				return s.store.RecordApproval(ctx, audit.ID, dept, claims.UserID())
			}
		}
		return nil
	}

	if err := auth.Authorize(claims, auth.RoleDepartmentHead); err != nil {
		return err
	}
	if !audit.HasDepartment(claims.DepartmentID) {
		return fmt.Errorf("%w: audit is not scoped to the head's department", auth.ErrForbidden)
	}
	return s.store.RecordApproval(ctx, audit.ID, claims.DepartmentID, claims.UserID())
}

// AddFindingInput carries a new finding.
type AddFindingInput struct {
	AuditID     string
	Severity    string
	Title       string
	Description string
}

// AddFinding records a finding. Findings are created during EXECUTING only,
// by an assigned auditor or the audit manager (admin bypass).
func (s *Service) AddFinding(ctx context.Context, claims *auth.Claims, in AddFindingInput) (*Finding, error) {
	if err := auth.Authorize(claims, auth.RoleAuditor, auth.RoleAuditManager, auth.RoleSystemAdmin); err != nil {
		return nil, err
	}
	severity, err := ParseSeverity(in.Severity)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	audit, err := s.GetAudit(ctx, in.AuditID)
	if err != nil {
		return nil, err
	}
	if audit.Status != StatusExecuting {
		return nil, fmt.Errorf("%w: findings are recorded while executing, audit is %s", ErrPreconditionNotMet, audit.Status)
	}
	if claims.Role == auth.RoleAuditor && !audit.HasAuditor(claims.UserID()) {
		return nil, fmt.Errorf("%w: auditor is not assigned to this audit", auth.ErrForbidden)
	}

	finding := &Finding{
		ID:          ids.New(),
		AuditID:     audit.ID,
		Severity:    severity,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		CreatedBy:   claims.UserID(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.AddFinding(ctx, finding); err != nil {
		return nil, err
	}
	return finding, nil
}

// ListFindings returns the findings recorded for an audit.
func (s *Service) ListFindings(ctx context.Context, auditID string) ([]Finding, error) {
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	return s.store.ListFindings(ctx, auditID)
}

// AddFollowupInput carries a new followup.
type AddFollowupInput struct {
	FindingID   string
	Description string
	DueDate     time.Time
}

// AddFollowup attaches a remediation item to a finding.
func (s *Service) AddFollowup(ctx context.Context, claims *auth.Claims, auditID string, in AddFollowupInput) (*Followup, error) {
	if err := auth.Authorize(claims, auth.RoleAuditor, auth.RoleAuditManager, auth.RoleSystemAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FindingID) == "" {
		return nil, fmt.Errorf("%w: finding id is required", ErrInvalidInput)
	}
	if in.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", ErrInvalidInput)
	}
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}

	followup := &Followup{
		ID:          ids.New(),
		FindingID:   strings.TrimSpace(in.FindingID),
		AuditID:     auditID,
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate.UTC(),
		Status:      FollowupOpen,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.AddFollowup(ctx, followup); err != nil {
		return nil, err
	}
	return followup, nil
}

// CompleteFollowup marks a followup completed.
func (s *Service) CompleteFollowup(ctx context.Context, claims *auth.Claims, followupID string) error {
	if err := auth.Authorize(claims, auth.RoleAuditor, auth.RoleAuditManager, auth.RoleSystemAdmin); err != nil {
		return err
	}
	followupID = strings.TrimSpace(followupID)
	if followupID == "" {
		return fmt.Errorf("%w: followup id is required", ErrInvalidInput)
	}
	return s.store.SetFollowupStatus(ctx, followupID, FollowupCompleted)
}

// OverdueFollowups returns followups with due_date before now and status
// other than completed.
func (s *Service) OverdueFollowups(ctx context.Context) ([]Followup, error) {
	return s.store.ListOverdueFollowups(ctx, s.now().UTC())
}

// RecordObservation counts an observation artifact during EXECUTING.
func (s *Service) RecordObservation(ctx context.Context, claims *auth.Claims, auditID string) error {
	return s.recordArtifact(ctx, claims, auditID, ArtifactObservation)
}

// RecordInterview counts an interview artifact during EXECUTING.
func (s *Service) RecordInterview(ctx context.Context, claims *auth.Claims, auditID string) error {
	return s.recordArtifact(ctx, claims, auditID, ArtifactInterview)
}

// RecordEvidence counts an evidence artifact during EXECUTING. The file
// itself lives in the evidence store; the workflow only tracks the count.
func (s *Service) RecordEvidence(ctx context.Context, claims *auth.Claims, auditID string) error {
	return s.recordArtifact(ctx, claims, auditID, ArtifactEvidence)
}

func (s *Service) recordArtifact(ctx context.Context, claims *auth.Claims, auditID string, kind ArtifactKind) error {
	if err := auth.Authorize(claims, auth.RoleAuditor, auth.RoleAuditManager, auth.RoleSystemAdmin); err != nil {
		return err
	}
	audit, err := s.GetAudit(ctx, auditID)
	if err != nil {
		return err
	}
	if audit.Status != StatusExecuting {
		return fmt.Errorf("%w: artifacts are recorded while executing, audit is %s", ErrPreconditionNotMet, audit.Status)
	}
	if claims.Role == auth.RoleAuditor && !audit.HasAuditor(claims.UserID()) {
		return fmt.Errorf("%w: auditor is not assigned to this audit", auth.ErrForbidden)
	}
	return s.store.IncrementArtifact(ctx, audit.ID, kind)
}

// ArtifactCounts returns the recorded artifact counters for an audit.
func (s *Service) ArtifactCounts(ctx context.Context, auditID string) (ArtifactCounts, error) {
	if _, err := s.GetAudit(ctx, auditID); err != nil {
		return ArtifactCounts{}, err
	}
	return s.store.ArtifactCounts(ctx, auditID)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
