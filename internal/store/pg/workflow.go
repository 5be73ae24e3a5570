package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wolethescientist/audit-system-sub001/internal/workflow"
)

// Workflow implements workflow.Store on Postgres. The status swap is a
// conditional UPDATE keyed on the expected status, so concurrent transitions
// on the same audit serialize at the database without explicit locks.
type Workflow struct {
	store *Store
}

var _ workflow.Store = (*Workflow)(nil)

// NewWorkflow returns the Postgres-backed workflow store.
func NewWorkflow(store *Store) *Workflow {
	return &Workflow{store: store}
}

func (w *Workflow) CreateAudit(ctx context.Context, a *workflow.Audit) error {
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into audits (id, title, status, created_by, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.Title, string(a.Status), a.CreatedBy, a.CreatedAt, a.UpdatedAt); err != nil {
		return err
	}
	for _, dept := range a.DepartmentIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into audit_departments (audit_id, department_id)
			values ($1, $2)
		`, a.ID, dept); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return workflow.ErrNotFound
			}
			return err
		}
	}
	for _, auditor := range a.AuditorIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into audit_auditors (audit_id, user_id)
			values ($1, $2)
		`, a.ID, auditor); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return workflow.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

func (w *Workflow) GetAudit(ctx context.Context, id string) (*workflow.Audit, error) {
	var (
		a      workflow.Audit
		status string
	)
	err := w.store.db.QueryRowContext(ctx, `
		select id, title, status, created_by, created_at, updated_at
		from audits
		where id = $1
	`, id).Scan(&a.ID, &a.Title, &status, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = workflow.Status(status)

	a.DepartmentIDs, err = w.listIDs(ctx, `select department_id from audit_departments where audit_id = $1 order by department_id`, id)
	if err != nil {
		return nil, err
	}
	a.AuditorIDs, err = w.listIDs(ctx, `select user_id from audit_auditors where audit_id = $1 order by user_id`, id)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateStatus applies the transition iff the stored status still equals
// expected. Zero rows affected means either a concurrent winner or a missing
// audit; the follow-up existence check tells them apart.
func (w *Workflow) UpdateStatus(ctx context.Context, auditID string, expected, next workflow.Status) error {
	res, err := w.store.db.ExecContext(ctx, `
		update audits
		set status = $3, updated_at = now()
		where id = $1 and status = $2
	`, auditID, string(expected), string(next))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff > 0 {
		return nil
	}
	var exists int
	err = w.store.db.QueryRowContext(ctx, `select 1 from audits where id = $1`, auditID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.ErrNotFound
	}
	if err != nil {
		return err
	}
	return workflow.ErrConflict
}

func (w *Workflow) AddFinding(ctx context.Context, f *workflow.Finding) error {
	_, err := w.store.db.ExecContext(ctx, `
		insert into findings (id, audit_id, severity, title, description, created_by, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.AuditID, string(f.Severity), f.Title, f.Description, f.CreatedBy, f.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return workflow.ErrNotFound
		}
		return err
	}
	return nil
}

func (w *Workflow) ListFindings(ctx context.Context, auditID string) ([]workflow.Finding, error) {
	rows, err := w.store.db.QueryContext(ctx, `
		select id, audit_id, severity, title, description, created_by, created_at
		from findings
		where audit_id = $1
		order by created_at asc
	`, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []workflow.Finding
	for rows.Next() {
		var (
			f        workflow.Finding
			severity string
		)
		if err := rows.Scan(&f.ID, &f.AuditID, &severity, &f.Title, &f.Description, &f.CreatedBy, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Severity = workflow.Severity(severity)
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (w *Workflow) AddFollowup(ctx context.Context, f *workflow.Followup) error {
	_, err := w.store.db.ExecContext(ctx, `
		insert into followups (id, finding_id, audit_id, description, due_date, status, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.FindingID, f.AuditID, f.Description, f.DueDate, string(f.Status), f.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return workflow.ErrNotFound
		}
		return err
	}
	return nil
}

func (w *Workflow) SetFollowupStatus(ctx context.Context, followupID string, status workflow.FollowupStatus) error {
	res, err := w.store.db.ExecContext(ctx, `
		update followups set status = $2 where id = $1
	`, followupID, string(status))
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return workflow.ErrNotFound
	}
	return nil
}

func (w *Workflow) ListOverdueFollowups(ctx context.Context, now time.Time) ([]workflow.Followup, error) {
	rows, err := w.store.db.QueryContext(ctx, `
		select id, finding_id, audit_id, description, due_date, status, created_at
		from followups
		where due_date < $1 and status <> $2
		order by due_date asc
	`, now, string(workflow.FollowupCompleted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []workflow.Followup
	for rows.Next() {
		var (
			f      workflow.Followup
			status string
		)
		if err := rows.Scan(&f.ID, &f.FindingID, &f.AuditID, &f.Description, &f.DueDate, &status, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Status = workflow.FollowupStatus(status)
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (w *Workflow) IncrementArtifact(ctx context.Context, auditID string, kind workflow.ArtifactKind) error {
	var column string
	switch kind {
	case workflow.ArtifactEvidence:
		column = "evidence"
	case workflow.ArtifactObservation:
		column = "observations"
	case workflow.ArtifactInterview:
		column = "interviews"
	default:
		return workflow.ErrInvalidInput
	}
	_, err := w.store.db.ExecContext(ctx, `
		insert into audit_artifacts (audit_id, `+column+`)
		values ($1, 1)
		on conflict (audit_id) do update
		set `+column+` = audit_artifacts.`+column+` + 1
	`, auditID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return workflow.ErrNotFound
		}
		return err
	}
	return nil
}

func (w *Workflow) ArtifactCounts(ctx context.Context, auditID string) (workflow.ArtifactCounts, error) {
	var counts workflow.ArtifactCounts
	err := w.store.db.QueryRowContext(ctx, `
		select evidence, observations, interviews
		from audit_artifacts
		where audit_id = $1
	`, auditID).Scan(&counts.Evidence, &counts.Observations, &counts.Interviews)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.ArtifactCounts{}, nil
	}
	if err != nil {
		return workflow.ArtifactCounts{}, err
	}
	return counts, nil
}

func (w *Workflow) RecordApproval(ctx context.Context, auditID, departmentID, approverID string) error {
	_, err := w.store.db.ExecContext(ctx, `
		insert into audit_approvals (audit_id, department_id, approver_id, created_at)
		values ($1, $2, $3, now())
		on conflict (audit_id, department_id) do nothing
	`, auditID, departmentID, approverID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return workflow.ErrNotFound
		}
		return err
	}
	return nil
}

func (w *Workflow) ApprovedDepartments(ctx context.Context, auditID string) (map[string]bool, error) {
	rows, err := w.store.db.QueryContext(ctx, `
		select department_id from audit_approvals where audit_id = $1
	`, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	approved := make(map[string]bool)
	for rows.Next() {
		var dept string
		if err := rows.Scan(&dept); err != nil {
			return nil, err
		}
		approved[dept] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return approved, nil
}

func (w *Workflow) ClearApprovals(ctx context.Context, auditID string) error {
	_, err := w.store.db.ExecContext(ctx, `delete from audit_approvals where audit_id = $1`, auditID)
	return err
}

func (w *Workflow) listIDs(ctx context.Context, query, auditID string) ([]string, error) {
	rows, err := w.store.db.QueryContext(ctx, query, auditID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
