package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory UserStore with a unique email index.
type memStore struct {
	mu       sync.Mutex
	users    map[string]User
	grants   map[string][]RoleGrant
	lookups  int
	findErr  error
	grantErr error
	insErr   error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]User{}, grants: map[string][]RoleGrant{}}
}

func (m *memStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memStore) InsertUser(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insErr != nil {
		return User{}, m.insErr
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) ListRoleGrants(ctx context.Context, userID string) ([]RoleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grantErr != nil {
		return nil, m.grantErr
	}
	return m.grants[userID], nil
}

var errBoom = errors.New("boom")
