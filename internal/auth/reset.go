package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/natours/api/internal/store"
)

const resetTokenBytes = 32

// HashResetToken returns the digest under which a reset token is stored.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// CreatePasswordResetToken stores the digest of a fresh random token on
// the principal's record and returns the plaintext for out-of-band
// delivery.
func (a *AccessControl) CreatePasswordResetToken(ctx context.Context, principal Principal) (string, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	plain := hex.EncodeToString(buf)

	expires := a.now().Add(a.resetTokenTTL)
	if err := a.users.SetPasswordResetToken(ctx, principal.ID, HashResetToken(plain), expires); err != nil {
		return "", err
	}
	return plain, nil
}

// ClearPasswordResetToken drops any outstanding reset token, used when the
// token could not be delivered.
func (a *AccessControl) ClearPasswordResetToken(ctx context.Context, principal Principal) error {
	return a.users.ClearPasswordResetToken(ctx, principal.ID)
}

// ConsumeResetToken finds the principal owning an unexpired reset token.
// It does not clear the token; ResetPassword does.
func (a *AccessControl) ConsumeResetToken(ctx context.Context, plain string) (Principal, error) {
	if plain == "" {
		return Principal{}, ErrResetTokenInvalid
	}
	user, err := a.users.GetByResetTokenHash(ctx, HashResetToken(plain))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrResetTokenInvalid
		}
		return Principal{}, err
	}
	if user.PasswordResetExpires == nil || !a.now().Before(*user.PasswordResetExpires) {
		return Principal{}, ErrResetTokenInvalid
	}
	return PrincipalFromUser(user), nil
}

// ResetPassword sets a new password for the owner of a valid reset token.
// The write is conditional on the token, so of two concurrent resets with
// the same token only one succeeds.
func (a *AccessControl) ResetPassword(ctx context.Context, plain, newPassword string) (Principal, error) {
	principal, err := a.ConsumeResetToken(ctx, plain)
	if err != nil {
		return Principal{}, err
	}
	hashed, err := a.hasher.Hash(newPassword)
	if err != nil {
		return Principal{}, fmt.Errorf("hash password: %w", err)
	}
	changedAt := a.changeTime()
	if err := a.users.ResetPassword(ctx, principal.ID, HashResetToken(plain), hashed, changedAt); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrResetTokenInvalid
		}
		return Principal{}, err
	}
	principal.PasswordChangedAt = &changedAt
	return principal, nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one. Tokens issued before the change stop working.
func (a *AccessControl) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) (Principal, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrUserGone
		}
		return Principal{}, err
	}
	if !a.hasher.Compare(currentPassword, user.PasswordHash) {
		return Principal{}, ErrWrongCurrentPassword
	}
	return a.setPassword(ctx, PrincipalFromUser(user), newPassword)
}

func (a *AccessControl) setPassword(ctx context.Context, principal Principal, newPassword string) (Principal, error) {
	hashed, err := a.hasher.Hash(newPassword)
	if err != nil {
		return Principal{}, fmt.Errorf("hash password: %w", err)
	}
	changedAt := a.changeTime()
	if err := a.users.UpdatePassword(ctx, principal.ID, hashed, changedAt); err != nil {
		return Principal{}, err
	}
	principal.PasswordChangedAt = &changedAt
	return principal, nil
}

// changeTime is the recorded time of a password change, at the resolution
// tokens carry so a token issued right after it compares as later.
func (a *AccessControl) changeTime() time.Time {
	return a.now().Truncate(tokenTimePrecision)
}
