package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/natours/api/internal/store"
)

// Authenticate resolves the Principal behind the request's bearer token.
func (a *AccessControl) Authenticate(r *http.Request) (Principal, error) {
	tokenString, err := bearerToken(r)
	if err != nil {
		return Principal{}, err
	}

	claims, err := a.VerifyToken(tokenString)
	if err != nil {
		return Principal{}, err
	}

	user, err := a.users.GetByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrUserGone
		}
		return Principal{}, err
	}

	principal := PrincipalFromUser(user)
	if principal.ChangedPasswordAfter(claims.IssuedAt) {
		return Principal{}, ErrPasswordChanged
	}
	return principal, nil
}

// Authorize succeeds when the principal holds one of roles.
func Authorize(principal Principal, roles ...string) error {
	for _, role := range roles {
		if principal.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
