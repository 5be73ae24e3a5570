package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolethescientist/audit-system-sub001/internal/auth"
	"github.com/wolethescientist/audit-system-sub001/internal/directory"
)

func TestDirectoryCreateUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec("insert into users").
		WithArgs("u-1", "a@corp.local", "Ada", "auditor", "dept-1", "hash", true, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	dir := NewDirectory(NewStore(db))
	err = dir.CreateUser(context.Background(), &directory.User{
		ID:           "u-1",
		Email:        "a@corp.local",
		FullName:     "Ada",
		Role:         auth.RoleAuditor,
		DepartmentID: "dept-1",
		PasswordHash: "hash",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDirectoryCreateUserDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	dir := NewDirectory(NewStore(db))
	err = dir.CreateUser(context.Background(), &directory.User{ID: "u-1", Email: "a@corp.local"})
	if !errors.Is(err, directory.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestDirectoryGetUserNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, email, full_name, role").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "role", "department_id", "password_hash", "active", "created_at", "updated_at"}))

	dir := NewDirectory(NewStore(db))
	if _, err := dir.GetUser(context.Background(), "missing"); !errors.Is(err, directory.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectoryFindUserByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("select id, email, full_name, role").
		WithArgs("a@corp.local").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "email", "full_name", "role", "department_id", "password_hash", "active", "created_at", "updated_at"}).
			AddRow("u-1", "a@corp.local", "Ada", "department_head", "dept-1", "hash", true, now, now))

	dir := NewDirectory(NewStore(db))
	user, err := dir.FindUserByEmail(context.Background(), "a@corp.local")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if user.Role != auth.RoleDepartmentHead || user.DepartmentID != "dept-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestDirectoryListDepartments(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("select id, name, metadata").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "metadata", "created_at", "updated_at"}).
			AddRow("d-1", "Finance", []byte(`{"floor":"3"}`), now, now).
			AddRow("d-2", "IT", []byte(`{}`), now, now))

	dir := NewDirectory(NewStore(db))
	depts, err := dir.ListDepartments(context.Background())
	if err != nil {
		t.Fatalf("ListDepartments: %v", err)
	}
	if len(depts) != 2 {
		t.Fatalf("expected 2 departments, got %d", len(depts))
	}
	if depts[0].Metadata["floor"] != "3" {
		t.Fatalf("metadata not decoded: %+v", depts[0].Metadata)
	}
}
