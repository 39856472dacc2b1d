package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindUnauthenticated: http.StatusUnauthorized,
		KindForbidden:       http.StatusForbidden,
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, status := range cases {
		require.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("No tour found with that ID"))
	require.Equal(t, KindNotFound, KindOf(err))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.Equal(t, KindInternal, KindOf(nil))
}

func TestWrapKeepsSentinelIdentity(t *testing.T) {
	sentinel := Unauthenticated("Invalid token. Please log in again!")
	cause := errors.New("signature is invalid")

	err := sentinel.Wrap(cause)

	require.ErrorIs(t, err, sentinel)
	require.ErrorIs(t, err, cause)
	require.Equal(t, KindUnauthenticated, KindOf(err))
	require.Contains(t, err.Error(), "signature is invalid")
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "bad input", Validation("bad input").Error())
	require.Equal(t, "price must be positive", Validationf("%s must be positive", "price").Error())
	require.Equal(t, "failed to load: db down", Internal("failed to load", errors.New("db down")).Error())
}
