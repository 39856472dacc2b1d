// Package auth issues and verifies access tokens, authenticates requests,
// enforces role restrictions and drives the password reset lifecycle.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/natours/api/internal/store"
	"github.com/natours/api/types"
)

const (
	defaultTokenTTL      = 90 * 24 * time.Hour
	defaultResetTokenTTL = 10 * time.Minute
)

// Config is fixed at startup.
type Config struct {
	Secret        []byte
	TokenTTL      time.Duration
	ResetTokenTTL time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// UserStore is the persistence AccessControl needs. Lookups return
// store.ErrNotFound for missing or deactivated users.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByResetTokenHash(ctx context.Context, hash string) (types.User, error)
	SetPasswordResetToken(ctx context.Context, id int64, hash string, expires time.Time) error
	ClearPasswordResetToken(ctx context.Context, id int64) error
	// UpdatePassword stores a new hash, records changedAt and clears any
	// pending reset token.
	UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error
	// ResetPassword is UpdatePassword guarded by tokenHash still being the
	// user's reset token, unexpired at changedAt. It returns
	// store.ErrNotFound when the guard fails.
	ResetPassword(ctx context.Context, id int64, tokenHash, passwordHash string, changedAt time.Time) error
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID                int64
	Name              string
	Email             string
	Role              string
	PasswordChangedAt *time.Time
}

func PrincipalFromUser(user types.User) Principal {
	return Principal{
		ID:                user.ID,
		Name:              user.Name,
		Email:             user.Email,
		Role:              user.Role,
		PasswordChangedAt: user.PasswordChangedAt,
	}
}

// ChangedPasswordAfter reports whether the password changed after t.
// Both sides are compared at tokenTimePrecision.
func (p Principal) ChangedPasswordAfter(t time.Time) bool {
	if p.PasswordChangedAt == nil {
		return false
	}
	return p.PasswordChangedAt.Truncate(tokenTimePrecision).After(t.Truncate(tokenTimePrecision))
}

// AccessControl holds no per-request state and is safe for concurrent use.
type AccessControl struct {
	secret        []byte
	tokenTTL      time.Duration
	resetTokenTTL time.Duration
	now           func() time.Time
	users         UserStore
	hasher        Hasher
}

func New(cfg Config, users UserStore, hasher Hasher) (*AccessControl, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: token secret is required")
	}
	if users == nil || hasher == nil {
		return nil, errors.New("auth: user store and hasher are required")
	}
	ac := &AccessControl{
		secret:        cfg.Secret,
		tokenTTL:      cfg.TokenTTL,
		resetTokenTTL: cfg.ResetTokenTTL,
		now:           cfg.Now,
		users:         users,
		hasher:        hasher,
	}
	if ac.tokenTTL <= 0 {
		ac.tokenTTL = defaultTokenTTL
	}
	if ac.resetTokenTTL <= 0 {
		ac.resetTokenTTL = defaultResetTokenTTL
	}
	if ac.now == nil {
		ac.now = time.Now
	}
	return ac, nil
}

// Login checks an email and password pair.
func (a *AccessControl) Login(ctx context.Context, email, password string) (Principal, error) {
	if email == "" || password == "" {
		return Principal{}, ErrMissingCredentials
	}
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrIncorrectCredentials
		}
		return Principal{}, err
	}
	if !a.hasher.Compare(password, user.PasswordHash) {
		return Principal{}, ErrIncorrectCredentials
	}
	return PrincipalFromUser(user), nil
}

// HashPassword exposes the configured hasher for account creation.
func (a *AccessControl) HashPassword(plain string) (string, error) {
	return a.hasher.Hash(plain)
}
