package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/natours/api/internal/store"
	"github.com/natours/api/types"
)

// memoryUsers is an in-memory UserStore.
type memoryUsers struct {
	mu    sync.Mutex
	users map[int64]types.User
}

func newMemoryUsers(users ...types.User) *memoryUsers {
	m := &memoryUsers{users: make(map[int64]types.User)}
	for _, u := range users {
		if !u.Active {
			u.Active = true
		}
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Active && strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) GetByResetTokenHash(_ context.Context, hash string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Active && hash != "" && u.PasswordResetToken == hash {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) SetPasswordResetToken(_ context.Context, id int64, hash string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordResetToken = hash
	u.PasswordResetExpires = &expires
	m.users[id] = u
	return nil
}

func (m *memoryUsers) ClearPasswordResetToken(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	m.users[id] = u
	return nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id int64, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &changedAt
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	m.users[id] = u
	return nil
}

func (m *memoryUsers) ResetPassword(_ context.Context, id int64, tokenHash, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active || u.PasswordResetToken == "" || u.PasswordResetToken != tokenHash ||
		u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(changedAt) {
		return store.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &changedAt
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	m.users[id] = u
	return nil
}

func (m *memoryUsers) get(id int64) types.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

// racingUsers runs beforeReset between the token lookup and the
// conditional write of a reset.
type racingUsers struct {
	*memoryUsers
	beforeReset func()
}

func (r *racingUsers) ResetPassword(ctx context.Context, id int64, tokenHash, passwordHash string, changedAt time.Time) error {
	r.beforeReset()
	return r.memoryUsers.ResetPassword(ctx, id, tokenHash, passwordHash, changedAt)
}

// plainHasher keeps tests fast; bcrypt is covered separately.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (plainHasher) Compare(plain, hash string) bool { return hash == "hashed:"+plain }

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
