package auth

import (
	"context"
	"net/http"

	"github.com/natours/api/internal/logging"
)

type principalKey struct{}

// WithPrincipal attaches principal to ctx.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom returns the principal attached by the Protect step.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(Principal)
	return principal, ok
}

// Step is one stage of a request guard. It returns the request to continue
// with, possibly carrying an enriched context, or an error that ends the
// request.
type Step func(r *http.Request) (*http.Request, error)

// ErrorWriter renders a failed step.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Pipeline runs steps in order before the wrapped handler and stops at the
// first failure.
func Pipeline(onError ErrorWriter, steps ...Step) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, step := range steps {
				var err error
				r, err = step(r)
				if err != nil {
					logging.Ctx(r.Context()).Debug().
						Str("reason", Reason(err)).
						Err(err).
						Msg("access denied")
					onError(w, r, err)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Protect authenticates the request and attaches the Principal.
func (a *AccessControl) Protect() Step {
	return func(r *http.Request) (*http.Request, error) {
		principal, err := a.Authenticate(r)
		if err != nil {
			return r, err
		}
		return r.WithContext(WithPrincipal(r.Context(), principal)), nil
	}
}

// RestrictTo allows only principals holding one of roles. It must follow
// Protect.
func RestrictTo(roles ...string) Step {
	allowed := append([]string(nil), roles...)
	return func(r *http.Request) (*http.Request, error) {
		principal, ok := PrincipalFrom(r.Context())
		if !ok {
			return r, ErrMissingToken
		}
		return r, Authorize(principal, allowed...)
	}
}
