package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a write would violate the unique
// constraint on users.email.
var ErrDuplicateEmail = errors.New("email already taken")

const uniqueViolationCode = "23505"

// mapWriteError translates driver-level constraint violations into store
// sentinel errors.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return ErrDuplicateEmail
	}
	return err
}
