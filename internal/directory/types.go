package directory

import (
	"errors"
	"time"

	"github.com/wolethescientist/audit-system-sub001/internal/auth"
)

var (
	ErrNotFound       = errors.New("directory: not found")
	ErrDuplicateEmail = errors.New("directory: email already registered")
	ErrInvalidInput   = errors.New("directory: invalid input")
	ErrUnauthorized   = errors.New("directory: unauthorized")
)

// User is the canonical directory record. Users are never physically
// deleted; deactivation clears the Active flag and blocks future logins.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Role         auth.Role `json:"role"`
	DepartmentID string    `json:"department_id,omitempty"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Department groups users and scopes audits.
type Department struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
