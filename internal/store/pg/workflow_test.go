package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/wolethescientist/audit-system-sub001/internal/workflow"
)

func TestWorkflowUpdateStatusCAS(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update audits").
		WithArgs("audit-1", "PLANNED", "EXECUTING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	wf := NewWorkflow(NewStore(db))
	if err := wf.UpdateStatus(context.Background(), "audit-1", workflow.StatusPlanned, workflow.StatusExecuting); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWorkflowUpdateStatusConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update audits").
		WithArgs("audit-1", "PLANNED", "EXECUTING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select 1 from audits").
		WithArgs("audit-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	wf := NewWorkflow(NewStore(db))
	err = wf.UpdateStatus(context.Background(), "audit-1", workflow.StatusPlanned, workflow.StatusExecuting)
	if !errors.Is(err, workflow.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWorkflowUpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update audits").
		WithArgs("missing", "PLANNED", "EXECUTING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select 1 from audits").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	wf := NewWorkflow(NewStore(db))
	err = wf.UpdateStatus(context.Background(), "missing", workflow.StatusPlanned, workflow.StatusExecuting)
	if !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWorkflowCreateAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("insert into audits").
		WithArgs("audit-1", "Quarterly review", "PLANNED", "mgr-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into audit_departments").
		WithArgs("audit-1", "dept-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into audit_auditors").
		WithArgs("audit-1", "aud-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	now := time.Now().UTC()
	wf := NewWorkflow(NewStore(db))
	err = wf.CreateAudit(context.Background(), &workflow.Audit{
		ID:            "audit-1",
		Title:         "Quarterly review",
		Status:        workflow.StatusPlanned,
		DepartmentIDs: []string{"dept-1"},
		AuditorIDs:    []string{"aud-1"},
		CreatedBy:     "mgr-1",
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateAudit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWorkflowArtifactCountsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select evidence, observations, interviews").
		WithArgs("audit-1").
		WillReturnRows(sqlmock.NewRows([]string{"evidence", "observations", "interviews"}))

	wf := NewWorkflow(NewStore(db))
	counts, err := wf.ArtifactCounts(context.Background(), "audit-1")
	if err != nil {
		t.Fatalf("ArtifactCounts: %v", err)
	}
	if counts.Any() {
		t.Fatalf("expected zero counts, got %+v", counts)
	}
}

func TestWorkflowListOverdueFollowups(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	due := now.Add(-24 * time.Hour)
	mock.ExpectQuery("select id, finding_id, audit_id, description, due_date, status, created_at").
		WithArgs(now, "completed").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "finding_id", "audit_id", "description", "due_date", "status", "created_at"}).
			AddRow("fu-1", "f-1", "audit-1", "revoke access", due, "open", due))

	wf := NewWorkflow(NewStore(db))
	overdue, err := wf.ListOverdueFollowups(context.Background(), now)
	if err != nil {
		t.Fatalf("ListOverdueFollowups: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != "fu-1" || overdue[0].Status != workflow.FollowupOpen {
		t.Fatalf("unexpected result: %+v", overdue)
	}
}
