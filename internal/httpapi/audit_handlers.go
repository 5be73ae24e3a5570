package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolethescientist/audit-system-sub001/internal/actionlog"
	"github.com/wolethescientist/audit-system-sub001/internal/auth"
	"github.com/wolethescientist/audit-system-sub001/internal/workflow"
)

type createAuditRequest struct {
	Title         string   `json:"title"`
	DepartmentIDs []string `json:"department_ids"`
	AuditorIDs    []string `json:"auditor_ids"`
}

type transitionRequest struct {
	Target string `json:"target"`
}

type addFindingRequest struct {
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type addFollowupRequest struct {
	FindingID   string    `json:"finding_id"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
}

func (a *API) handleAudits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createAuditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	audit, err := a.audits.CreateAudit(r.Context(), claims, workflow.CreateAuditInput{
		Title:         req.Title,
		DepartmentIDs: req.DepartmentIDs,
		AuditorIDs:    req.AuditorIDs,
	})
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = actionlog.Record(r.Context(), "audit.create", map[string]any{
		"audit_id": audit.ID,
		"title":    audit.Title,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/audits/%s", audit.ID))
	writeJSON(w, http.StatusCreated, audit)
}

func (a *API) handleAuditScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/audits/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	auditID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		audit, err := a.audits.GetAudit(r.Context(), auditID)
		if err != nil {
			handleWorkflowError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, audit)
		return
	}
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch parts[1] {
	case "transition":
		a.handleTransition(w, r, auditID)
	case "approve":
		a.handleApprove(w, r, auditID)
	case "reject":
		a.handleReject(w, r, auditID)
	case "findings":
		a.handleFindings(w, r, auditID)
	case "followups":
		a.handleFollowups(w, r, auditID)
	case "observations":
		a.handleArtifact(w, r, auditID, workflow.ArtifactObservation)
	case "interviews":
		a.handleArtifact(w, r, auditID, workflow.ArtifactInterview)
	case "evidence":
		a.handleEvidence(w, r, auditID)
	case "artifacts":
		a.handleArtifactCounts(w, r, auditID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleTransition(w http.ResponseWriter, r *http.Request, auditID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target, err := workflow.ParseStatus(req.Target)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	audit, err := a.audits.Transition(r.Context(), claims, auditID, target)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = actionlog.Record(r.Context(), "audit.transition", map[string]any{
		"audit_id": audit.ID,
		"status":   string(audit.Status),
	})
	writeJSON(w, http.StatusOK, audit)
}

func (a *API) handleApprove(w http.ResponseWriter, r *http.Request, auditID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	if err := a.audits.Approve(r.Context(), claims, auditID); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = actionlog.Record(r.Context(), "audit.approve", map[string]any{
		"audit_id": auditID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "approved"})
}

// handleReject is the department head's rejection: the audit goes back to
// REPORTING and collected approvals are discarded.
func (a *API) handleReject(w http.ResponseWriter, r *http.Request, auditID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	audit, err := a.audits.Transition(r.Context(), claims, auditID, workflow.StatusReporting)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = actionlog.Record(r.Context(), "audit.reject", map[string]any{
		"audit_id": audit.ID,
	})
	writeJSON(w, http.StatusOK, audit)
}

func (a *API) handleFindings(w http.ResponseWriter, r *http.Request, auditID string) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		findings, err := a.audits.ListFindings(r.Context(), auditID)
		if err != nil {
			handleWorkflowError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"findings": findings})
	case http.MethodPost:
		var req addFindingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		finding, err := a.audits.AddFinding(r.Context(), claims, workflow.AddFindingInput{
			AuditID:     auditID,
			Severity:    req.Severity,
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			handleWorkflowError(w, r, err)
			return
		}
		_ = actionlog.Record(r.Context(), "audit.finding.add", map[string]any{
			"audit_id":   auditID,
			"finding_id": finding.ID,
			"severity":   string(finding.Severity),
		})
		writeJSON(w, http.StatusCreated, finding)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleFollowups(w http.ResponseWriter, r *http.Request, auditID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req addFollowupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	followup, err := a.audits.AddFollowup(r.Context(), claims, auditID, workflow.AddFollowupInput{
		FindingID:   req.FindingID,
		Description: req.Description,
		DueDate:     req.DueDate,
	})
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = actionlog.Record(r.Context(), "audit.followup.add", map[string]any{
		"audit_id":    auditID,
		"followup_id": followup.ID,
	})
	writeJSON(w, http.StatusCreated, followup)
}

func (a *API) handleArtifact(w http.ResponseWriter, r *http.Request, auditID string, kind workflow.ArtifactKind) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	var err error
	switch kind {
	case workflow.ArtifactObservation:
		err = a.audits.RecordObservation(r.Context(), claims, auditID)
	case workflow.ArtifactInterview:
		err = a.audits.RecordInterview(r.Context(), claims, auditID)
	}
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = actionlog.Record(r.Context(), "audit.artifact.record", map[string]any{
		"audit_id": auditID,
		"kind":     string(kind),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"recorded": string(kind)})
}

// handleEvidence accepts a multipart upload, stores the file, then counts it
// toward the audit's evidence artifacts.
func (a *API) handleEvidence(w http.ResponseWriter, r *http.Request, auditID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.evidence == nil {
		writeError(w, r, http.StatusServiceUnavailable, "evidence storage unavailable")
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	var userID string
	if claims != nil {
		userID = claims.UserID()
	}
	artifact, err := a.evidence.Upload(r.Context(), file, header.Filename, auditID, userID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.audits.RecordEvidence(r.Context(), claims, auditID); err != nil {
		// The workflow refused the artifact, so the stored file is orphaned.
		a.evidence.Delete(r.Context(), artifact.URL)
		handleWorkflowError(w, r, err)
		return
	}
	_ = actionlog.Record(r.Context(), "audit.evidence.upload", map[string]any{
		"audit_id": auditID,
		"sha256":   artifact.SHA256,
		"size":     artifact.Size,
	})
	writeJSON(w, http.StatusCreated, artifact)
}

func (a *API) handleArtifactCounts(w http.ResponseWriter, r *http.Request, auditID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	counts, err := a.audits.ArtifactCounts(r.Context(), auditID)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) handleFollowupScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/followups/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "complete" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	if err := a.audits.CompleteFollowup(r.Context(), claims, parts[0]); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	_ = actionlog.Record(r.Context(), "audit.followup.complete", map[string]any{
		"followup_id": parts[0],
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "completed"})
}

func (a *API) handleOverdueFollowups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	overdue, err := a.audits.OverdueFollowups(r.Context())
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"followups": overdue})
}

func handleWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, workflow.ErrPreconditionNotMet), errors.Is(err, workflow.ErrInvalidTransition):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, workflow.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "workflow operation failed")
	}
}
