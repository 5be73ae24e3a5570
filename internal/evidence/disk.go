package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wolethescientist/audit-system-sub001/internal/ids"
)

// Disk stores evidence files on the local filesystem under one root
// directory, grouped per audit. File names are prefixed with a fresh id so
// repeated uploads of the same name never collide.
type Disk struct {
	root string
	now  func() time.Time
}

// NewDisk creates a disk store rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("%w: directory is required", ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("evidence: create root: %w", err)
	}
	return &Disk{root: dir, now: time.Now}, nil
}

func (d *Disk) Upload(ctx context.Context, content io.Reader, name, auditID, userID string) (*Artifact, error) {
	if content == nil {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	name = sanitizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	auditID = strings.TrimSpace(auditID)
	if auditID == "" {
		return nil, fmt.Errorf("%w: audit id is required", ErrInvalidInput)
	}

	dir := filepath.Join(d.root, auditID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("evidence: create audit dir: %w", err)
	}

	path := filepath.Join(dir, ids.New()+"-"+name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("evidence: create file: %w", err)
	}

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hash), content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("evidence: write file: %w", err)
	}

	return &Artifact{
		URL:        path,
		SHA256:     hex.EncodeToString(hash.Sum(nil)),
		Size:       size,
		Name:       name,
		AuditID:    auditID,
		UploadedBy: strings.TrimSpace(userID),
		UploadedAt: d.now().UTC(),
	}, nil
}

// Delete removes a stored file. Paths outside the store's root are refused.
func (d *Disk) Delete(ctx context.Context, url string) bool {
	path := filepath.Clean(url)
	rel, err := filepath.Rel(d.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return os.Remove(path) == nil
}

// sanitizeName strips any directory components from a client-supplied name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}
