package directory

import "context"

// Store describes persistence operations required by the directory.
// Implementations must enforce email uniqueness atomically: concurrent
// CreateUser calls with the same email yield exactly one success and
// ErrDuplicateEmail for the rest.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error

	CreateDepartment(ctx context.Context, d *Department) error
	GetDepartment(ctx context.Context, id string) (*Department, error)
	ListDepartments(ctx context.Context) ([]Department, error)
}
