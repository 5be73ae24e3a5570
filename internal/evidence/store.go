package evidence

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrInvalidInput = errors.New("evidence: invalid input")
	ErrNotFound     = errors.New("evidence: not found")
)

// Artifact describes one stored evidence file. The workflow records only the
// existence of the upload; callers keep the returned URL to retrieve it.
type Artifact struct {
	URL        string    `json:"url"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	Name       string    `json:"name"`
	AuditID    string    `json:"audit_id"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Store persists evidence files. Content is opaque: it is hashed and sized on
// the way in but never inspected.
type Store interface {
	Upload(ctx context.Context, content io.Reader, name, auditID, userID string) (*Artifact, error)
	Delete(ctx context.Context, url string) bool
}
