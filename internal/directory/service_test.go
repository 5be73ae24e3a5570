package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/wolethescientist/audit-system-sub001/internal/auth"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	// Cost 4 keeps bcrypt cheap in tests.
	svc, err := NewService(NewInMemory(), WithBcryptCost(4))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func adminClaims() *auth.Claims {
	return &auth.Claims{Role: auth.RoleSystemAdmin}
}

func TestCreateUserAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserInput{
		Email:    "lead@example.com",
		FullName: "Lead Auditor",
		Password: "s3cret",
		Role:     "auditor",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Role != auth.RoleAuditor || !user.Active {
		t.Fatalf("unexpected user record: %+v", user)
	}

	got, err := svc.Authenticate(ctx, "lead@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("unexpected user: %s", got.ID)
	}

	if _, err := svc.Authenticate(ctx, "lead@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	in := CreateUserInput{
		Email:    "dup@example.com",
		FullName: "First",
		Password: "pw",
		Role:     "auditor",
	}
	if _, err := svc.CreateUser(ctx, in); err != nil {
		t.Fatalf("first CreateUser: %v", err)
	}
	if _, err := svc.CreateUser(ctx, in); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreateUserEmailCaseSensitive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, CreateUserInput{
		Email: "Case@example.com", FullName: "Upper", Password: "pw", Role: "auditor",
	}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	// Exact-match semantics: a different casing is a distinct registration.
	if _, err := svc.CreateUser(ctx, CreateUserInput{
		Email: "case@example.com", FullName: "Lower", Password: "pw", Role: "auditor",
	}); err != nil {
		t.Fatalf("case-variant CreateUser: %v", err)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email: "x@example.com", FullName: "X", Password: "pw", Role: "superuser",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateUserUnknownDepartment(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateUser(context.Background(), CreateUserInput{
		Email: "x@example.com", FullName: "X", Password: "pw", Role: "auditor",
		DepartmentID: "missing",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivateUserBlocksLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserInput{
		Email: "gone@example.com", FullName: "Gone", Password: "pw", Role: "auditor",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, err := svc.DeactivateUser(ctx, &auth.Claims{Role: auth.RoleAuditor}, user.ID); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("non-admin deactivation must be forbidden, got %v", err)
	}

	updated, err := svc.DeactivateUser(ctx, adminClaims(), user.ID)
	if err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if updated.Active {
		t.Fatalf("user still active")
	}
	if _, err := svc.Authenticate(ctx, "gone@example.com", "pw"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("deactivated user must not authenticate, got %v", err)
	}

	// Record survives deactivation: soft delete only.
	if _, err := svc.GetUser(ctx, user.ID); err != nil {
		t.Fatalf("deactivated user disappeared: %v", err)
	}
}

func TestSetUserRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserInput{
		Email: "promote@example.com", FullName: "P", Password: "pw", Role: "auditor",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	updated, err := svc.SetUserRole(ctx, adminClaims(), user.ID, "audit_manager")
	if err != nil {
		t.Fatalf("SetUserRole: %v", err)
	}
	if updated.Role != auth.RoleAuditManager {
		t.Fatalf("role not updated: %s", updated.Role)
	}
}

func TestCreateDepartmentDoesNotMerge(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateDepartment(ctx, adminClaims(), "Finance", nil)
	if err != nil {
		t.Fatalf("CreateDepartment: %v", err)
	}
	b, err := svc.CreateDepartment(ctx, adminClaims(), "Finance", nil)
	if err != nil {
		t.Fatalf("second CreateDepartment: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("identical departments merged")
	}

	depts, err := svc.ListDepartments(ctx)
	if err != nil {
		t.Fatalf("ListDepartments: %v", err)
	}
	if len(depts) != 2 {
		t.Fatalf("expected 2 departments, got %d", len(depts))
	}
}

func TestCreateDepartmentRequiresAdmin(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateDepartment(context.Background(), &auth.Claims{Role: auth.RoleAuditManager}, "Ops", nil)
	if !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
