// Package domain provides shared domain-level sentinel errors and
// Brazilian document validation shared by several entities.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the write collides with existing data
// (duplicate unique key, or a row still referenced elsewhere).
var ErrConflict = errors.New("conflict")

// ErrValidation marks input rejected by domain rules.
var ErrValidation = errors.New("validation")

// ErrForbidden indicates the caller's role does not permit the operation on
// this particular resource.
var ErrForbidden = errors.New("forbidden")

// Invalid wraps err as a validation error.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
