package auth

import (
	"errors"

	"github.com/natours/api/internal/apperr"
)

var (
	ErrMissingToken         = apperr.Unauthenticated("You are not logged in! Please log in to get access.")
	ErrInvalidToken         = apperr.Unauthenticated("Invalid token. Please log in again!")
	ErrTokenExpired         = apperr.Unauthenticated("Your token has expired! Please log in again.")
	ErrUserGone             = apperr.Unauthenticated("The user belonging to this token does no longer exist.")
	ErrPasswordChanged      = apperr.Unauthenticated("User recently changed password! Please log in again.")
	ErrForbidden            = apperr.Forbidden("You do not have permission to perform this action")
	ErrWrongCurrentPassword = apperr.Unauthenticated("Your current password is wrong.")
	ErrResetTokenInvalid    = apperr.Validation("Token is invalid or has expired")
	ErrMissingCredentials   = apperr.Validation("Please provide email and password!")
	ErrIncorrectCredentials = apperr.Unauthenticated("Incorrect email or password")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrMissingToken, "missing_token"},
	{ErrInvalidToken, "invalid_token"},
	{ErrTokenExpired, "token_expired"},
	{ErrUserGone, "user_gone"},
	{ErrPasswordChanged, "password_changed"},
	{ErrForbidden, "forbidden"},
	{ErrWrongCurrentPassword, "wrong_current_password"},
	{ErrResetTokenInvalid, "reset_token_invalid"},
	{ErrMissingCredentials, "missing_credentials"},
	{ErrIncorrectCredentials, "incorrect_credentials"},
}

// Reason names an access control failure for logs and metrics labels.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "other"
}
