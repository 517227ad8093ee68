// Package errs holds the sentinel errors shared across packages. Wrap them
// with github.com/cockroachdb/errors to add context and check with errors.Is.
package errs

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound indicates the requested run or review does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConflict indicates the resource is in a state that forbids the operation.
	ErrConflict = errors.New("conflict")
)

func NotFoundf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

func InvalidRequestf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidRequest)
}
