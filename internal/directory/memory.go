package directory

import (
	"context"
	"sync"
)

// InMemory implements Store with in-process concurrency safety. Used in
// tests and local development; production runs the Postgres store.
type InMemory struct {
	mu      sync.RWMutex
	users   map[string]*User
	byEmail map[string]string // exact-case email -> user id
	depts   map[string]*Department
	order   []string // department insertion order
}

// NewInMemory creates an empty directory store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:   make(map[string]*User),
		byEmail: make(map[string]string),
		depts:   make(map[string]*Department),
	}
}

func (s *InMemory) CreateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return ErrDuplicateEmail
	}
	cp := *u
	s.users[u.ID] = &cp
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *InMemory) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *InMemory) UpdateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *InMemory) CreateDepartment(ctx context.Context, d *Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.depts[d.ID] = &cp
	s.order = append(s.order, d.ID)
	return nil
}

func (s *InMemory) GetDepartment(ctx context.Context, id string) (*Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.depts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *InMemory) ListDepartments(ctx context.Context) ([]Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Department, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.depts[id])
	}
	return out, nil
}
