package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolethescientist/audit-system-sub001/internal/auth"
	"github.com/wolethescientist/audit-system-sub001/internal/directory"
)

// Directory implements directory.Store on Postgres. Email uniqueness is
// enforced by the unique index on users.email; the 23505 violation maps to
// ErrDuplicateEmail so concurrent registrations fail cleanly.
type Directory struct {
	store *Store
}

var _ directory.Store = (*Directory)(nil)

// NewDirectory returns the Postgres-backed directory store.
func NewDirectory(store *Store) *Directory {
	return &Directory{store: store}
}

func (d *Directory) CreateUser(ctx context.Context, u *directory.User) error {
	_, err := d.store.db.ExecContext(ctx, `
		insert into users (id, email, full_name, role, department_id, password_hash, active, created_at, updated_at)
		values ($1, $2, $3, $4, nullif($5,''), $6, $7, $8, $9)
	`, u.ID, u.Email, u.FullName, string(u.Role), u.DepartmentID, u.PasswordHash, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return directory.ErrDuplicateEmail
			case pgErrForeignKeyViolation:
				return directory.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (d *Directory) GetUser(ctx context.Context, id string) (*directory.User, error) {
	return d.scanUser(d.store.db.QueryRowContext(ctx, `
		select id, email, full_name, role, coalesce(department_id,''), password_hash, active, created_at, updated_at
		from users
		where id = $1
	`, id))
}

func (d *Directory) FindUserByEmail(ctx context.Context, email string) (*directory.User, error) {
	return d.scanUser(d.store.db.QueryRowContext(ctx, `
		select id, email, full_name, role, coalesce(department_id,''), password_hash, active, created_at, updated_at
		from users
		where email = $1
	`, email))
}

func (d *Directory) UpdateUser(ctx context.Context, u *directory.User) error {
	res, err := d.store.db.ExecContext(ctx, `
		update users
		set email = $2, full_name = $3, role = $4, department_id = nullif($5,''),
		    password_hash = $6, active = $7, updated_at = $8
		where id = $1
	`, u.ID, u.Email, u.FullName, string(u.Role), u.DepartmentID, u.PasswordHash, u.Active, u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return directory.ErrDuplicateEmail
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return directory.ErrNotFound
	}
	return nil
}

func (d *Directory) CreateDepartment(ctx context.Context, dep *directory.Department) error {
	metaJSON := []byte("{}")
	if len(dep.Metadata) > 0 {
		bytes, err := json.Marshal(dep.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = bytes
	}
	_, err := d.store.db.ExecContext(ctx, `
		insert into departments (id, name, metadata, created_at, updated_at)
		values ($1, $2, $3, $4, $5)
	`, dep.ID, dep.Name, metaJSON, dep.CreatedAt, dep.UpdatedAt)
	return err
}

func (d *Directory) GetDepartment(ctx context.Context, id string) (*directory.Department, error) {
	var (
		dep    directory.Department
		rawMet []byte
	)
	err := d.store.db.QueryRowContext(ctx, `
		select id, name, metadata, created_at, updated_at
		from departments
		where id = $1
	`, id).Scan(&dep.ID, &dep.Name, &rawMet, &dep.CreatedAt, &dep.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rawMet) > 0 {
		if err := json.Unmarshal(rawMet, &dep.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &dep, nil
}

func (d *Directory) ListDepartments(ctx context.Context) ([]directory.Department, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		select id, name, metadata, created_at, updated_at
		from departments
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []directory.Department
	for rows.Next() {
		var (
			dep    directory.Department
			rawMet []byte
		)
		if err := rows.Scan(&dep.ID, &dep.Name, &rawMet, &dep.CreatedAt, &dep.UpdatedAt); err != nil {
			return nil, err
		}
		if len(rawMet) > 0 {
			if err := json.Unmarshal(rawMet, &dep.Metadata); err != nil {
				return nil, err
			}
		}
		result = append(result, dep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Directory) scanUser(row *sql.Row) (*directory.User, error) {
	var (
		u    directory.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.DepartmentID, &u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// The role column is check-constrained to the closed set.
	u.Role = auth.Role(role)
	return &u, nil
}
