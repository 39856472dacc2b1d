package types

import "time"

// Roles a user account can hold.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// DefaultPhoto is assigned to accounts that never uploaded a photo.
const DefaultPhoto = "default.jpg"

// User represents an account in the system.
// It contains identity, role, credential and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's login address, stored lowercased.
	Email string `json:"email" db:"email"`

	// Photo is the object key or file name of the user's picture.
	Photo string `json:"photo" db:"photo"`

	// Role indicates the user's authorization level
	// (user, guide, lead-guide, admin).
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt digest of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// PasswordChangedAt is set whenever the password changes; tokens
	// issued before it are rejected.
	PasswordChangedAt *time.Time `json:"-" db:"password_changed_at"`

	// PasswordResetToken is the SHA-256 hex digest of the outstanding
	// reset token, empty when none is pending.
	PasswordResetToken string `json:"-" db:"password_reset_token"`

	// PasswordResetExpires is when the pending reset token stops working.
	PasswordResetExpires *time.Time `json:"-" db:"password_reset_expires"`

	// Active is false once the user deleted their account.
	Active bool `json:"-" db:"active"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
