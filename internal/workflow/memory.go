package workflow

import (
	"context"
	"sync"
	"time"
)

// InMemory implements Store with in-process concurrency safety. The status
// swap is the same compare-and-swap the Postgres store performs with a
// conditional UPDATE.
type InMemory struct {
	mu        sync.RWMutex
	audits    map[string]*Audit
	findings  map[string][]Finding // audit id -> findings
	followups map[string]*Followup
	artifacts map[string]ArtifactCounts
	approvals map[string]map[string]bool // audit id -> dept id -> approved
}

// NewInMemory creates an empty workflow store.
func NewInMemory() *InMemory {
	return &InMemory{
		audits:    make(map[string]*Audit),
		findings:  make(map[string][]Finding),
		followups: make(map[string]*Followup),
		artifacts: make(map[string]ArtifactCounts),
		approvals: make(map[string]map[string]bool),
	}
}

func (s *InMemory) CreateAudit(ctx context.Context, a *Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.audits[a.ID] = &cp
	return nil
}

func (s *InMemory) GetAudit(ctx context.Context, id string) (*Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.audits[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	cp.DepartmentIDs = append([]string(nil), a.DepartmentIDs...)
	cp.AuditorIDs = append([]string(nil), a.AuditorIDs...)
	return &cp, nil
}

func (s *InMemory) UpdateStatus(ctx context.Context, auditID string, expected, next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[auditID]
	if !ok {
		return ErrNotFound
	}
	if a.Status != expected {
		return ErrConflict
	}
	a.Status = next
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemory) AddFinding(ctx context.Context, f *Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.audits[f.AuditID]; !ok {
		return ErrNotFound
	}
	s.findings[f.AuditID] = append(s.findings[f.AuditID], *f)
	return nil
}

func (s *InMemory) ListFindings(ctx context.Context, auditID string) ([]Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Finding(nil), s.findings[auditID]...), nil
}

func (s *InMemory) AddFollowup(ctx context.Context, f *Followup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.followups[f.ID] = &cp
	return nil
}

func (s *InMemory) SetFollowupStatus(ctx context.Context, followupID string, status FollowupStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.followups[followupID]
	if !ok {
		return ErrNotFound
	}
	f.Status = status
	return nil
}

func (s *InMemory) ListOverdueFollowups(ctx context.Context, now time.Time) ([]Followup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Followup
	for _, f := range s.followups {
		if f.Overdue(now) {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *InMemory) IncrementArtifact(ctx context.Context, auditID string, kind ArtifactKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.audits[auditID]; !ok {
		return ErrNotFound
	}
	counts := s.artifacts[auditID]
	switch kind {
	case ArtifactEvidence:
		counts.Evidence++
	case ArtifactObservation:
		counts.Observations++
	case ArtifactInterview:
		counts.Interviews++
	}
	s.artifacts[auditID] = counts
	return nil
}

func (s *InMemory) ArtifactCounts(ctx context.Context, auditID string) (ArtifactCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifacts[auditID], nil
}

func (s *InMemory) RecordApproval(ctx context.Context, auditID, departmentID, approverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.audits[auditID]; !ok {
		return ErrNotFound
	}
	if s.approvals[auditID] == nil {
		s.approvals[auditID] = make(map[string]bool)
	}
	s.approvals[auditID][departmentID] = true
	return nil
}

func (s *InMemory) ApprovedDepartments(ctx context.Context, auditID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.approvals[auditID]))
	for dept, ok := range s.approvals[auditID] {
		out[dept] = ok
	}
	return out, nil
}

func (s *InMemory) ClearApprovals(ctx context.Context, auditID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.approvals, auditID)
	return nil
}
