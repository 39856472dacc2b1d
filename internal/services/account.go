package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/natours/api/internal/apperr"
	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/logging"
	"github.com/natours/api/internal/mailer"
	"github.com/natours/api/internal/store"
)

// ResetTokenIssuer creates and revokes password reset tokens.
type ResetTokenIssuer interface {
	CreatePasswordResetToken(ctx context.Context, principal auth.Principal) (string, error)
	ClearPasswordResetToken(ctx context.Context, principal auth.Principal) error
}

// AccountService runs the forgotten password flow.
type AccountService struct {
	users  UserRepository
	tokens ResetTokenIssuer
	mail   mailer.Sender
}

func NewAccountService(users UserRepository, tokens ResetTokenIssuer, mail mailer.Sender) *AccountService {
	return &AccountService{users: users, tokens: tokens, mail: mail}
}

var (
	ErrEmailRequired = apperr.Validation("Please provide your email address.")
	ErrNoSuchEmail   = apperr.NotFound("There is no user with that email address.")
	ErrResetDelivery = apperr.Internal("There was an error sending the email. Try again later!", nil)
)

// ForgotPassword issues a reset token for email and sends the reset link
// rooted at baseURL. If the message cannot be handed off the token is
// revoked so that no undeliverable token stays valid.
func (s *AccountService) ForgotPassword(ctx context.Context, email, baseURL string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoSuchEmail
	}
	if err != nil {
		return err
	}

	principal := auth.PrincipalFromUser(user)
	token, err := s.tokens.CreatePasswordResetToken(ctx, principal)
	if err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s/api/v1/users/resetPassword/%s", strings.TrimRight(baseURL, "/"), token)
	msg := mailer.Message{
		To:      user.Email,
		Subject: "Your password reset token (valid for 10 min)",
		Body: fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s.\n"+
			"If you didn't forget your password, please ignore this email!", resetURL),
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		if clearErr := s.tokens.ClearPasswordResetToken(ctx, principal); clearErr != nil {
			logging.Ctx(ctx).Error().Err(clearErr).Int64("user_id", user.ID).Msg("failed to revoke undelivered reset token")
		}
		return ErrResetDelivery.Wrap(err)
	}
	return nil
}
