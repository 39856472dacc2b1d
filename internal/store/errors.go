package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique
// constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrInvalidInput is returned when a filter or field value cannot be cast
// to its column type.
var ErrInvalidInput = errors.New("invalid input value")

// ErrMissingReference is returned when a row points at a parent that does
// not exist.
var ErrMissingReference = errors.New("referenced record does not exist")

const (
	pqUniqueViolation     pq.ErrorCode = "23505"
	pqForeignKeyViolation pq.ErrorCode = "23503"
	pqCheckViolation      pq.ErrorCode = "23514"
)

// translateError maps driver errors onto the package's sentinel errors.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch {
	case pqErr.Code == pqUniqueViolation:
		return ErrDuplicate
	case pqErr.Code == pqForeignKeyViolation:
		return ErrMissingReference
	case pqErr.Code == pqCheckViolation:
		return errors.Join(ErrInvalidInput, err)
	case pqErr.Code.Class() == "22":
		// data exceptions: bad text representation, datetime format, range
		return errors.Join(ErrInvalidInput, err)
	}
	return err
}
