package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolethescientist/audit-system-sub001/internal/auth"
	"github.com/wolethescientist/audit-system-sub001/internal/ids"
)

// Service owns user and department records. It is the single source of truth
// for role and department membership; the token service only snapshots it at
// issuance time.
type Service struct {
	store      Store
	now        func() time.Time
	bcryptCost int
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

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// NewService constructs the directory service.
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

// CreateUserInput carries the signup payload.
type CreateUserInput struct {
	Email        string
	FullName     string
	Password     string
	Role         string
	DepartmentID string
}

// CreateUser registers a new user. Email matching is case-sensitive exact
// match: "A@x" and "a@x" are distinct registrations.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	departmentID := strings.TrimSpace(in.DepartmentID)
	if departmentID != "" {
		if _, err := s.store.GetDepartment(ctx, departmentID); err != nil {
			return nil, err
		}
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &User{
		ID:           ids.New(),
		Email:        email,
		FullName:     fullName,
		Role:         role,
		DepartmentID: departmentID,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and returns the active user record.
// Inactive users and unknown emails both surface ErrUnauthorized so the
// login endpoint never leaks which part failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if !user.Active {
		return nil, ErrUnauthorized
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// FindUserByEmail returns the user registered under the exact email.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.FindUserByEmail(ctx, email)
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.GetUser(ctx, id)
}

// DeactivateUser soft-deactivates a user. System admin only. The user's
// outstanding tokens remain valid until expiry; only future logins are
// blocked.
func (s *Service) DeactivateUser(ctx context.Context, claims *auth.Claims, userID string) (*User, error) {
	if err := auth.Authorize(claims, auth.RoleSystemAdmin); err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return user, nil
	}
	user.Active = false
	user.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetUserRole is the explicit admin operation that changes a role after
// creation. System admin only.
func (s *Service) SetUserRole(ctx context.Context, claims *auth.Claims, userID, rawRole string) (*User, error) {
	if err := auth.Authorize(claims, auth.RoleSystemAdmin); err != nil {
		return nil, err
	}
	role, err := auth.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Role = role
	user.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateDepartment registers a department. System admin only. Identical
// names do not merge: every call creates a distinct record.
func (s *Service) CreateDepartment(ctx context.Context, claims *auth.Claims, name string, metadata map[string]string) (*Department, error) {
	if err := auth.Authorize(claims, auth.RoleSystemAdmin); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: department name is required", ErrInvalidInput)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	now := s.now().UTC()
	dept := &Department{
		ID:        ids.New(),
		Name:      name,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateDepartment(ctx, dept); err != nil {
		return nil, err
	}
	return dept, nil
}

// GetDepartment loads a department by id.
func (s *Service) GetDepartment(ctx context.Context, id string) (*Department, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: department id is required", ErrInvalidInput)
	}
	return s.store.GetDepartment(ctx, id)
}

// ListDepartments returns all departments.
func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.store.ListDepartments(ctx)
}
