package services

import (
	"errors"

	"github.com/natours/api/internal/apperr"
	"github.com/natours/api/internal/store"
)

// fromStore turns repository errors into client errors. notFound is the
// message used for store.ErrNotFound.
func fromStore(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &apperr.Error{Kind: apperr.KindNotFound, Message: notFound, Err: err}
	case errors.Is(err, store.ErrDuplicate):
		return &apperr.Error{Kind: apperr.KindConflict, Message: "Duplicate field value. Please use another value!", Err: err}
	case errors.Is(err, store.ErrInvalidInput):
		return &apperr.Error{Kind: apperr.KindValidation, Message: "Invalid input data.", Err: err}
	default:
		return err
	}
}
