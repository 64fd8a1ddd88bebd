package db

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when creating a document whose ID is taken.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrUnavailable is returned when Firestore cannot be reached in time.
	ErrUnavailable = errors.New("document store unavailable")
)

// classify wraps a Firestore error with context, mapping gRPC status codes
// onto the package sentinels. Errors that are not Firestore errors (for
// example a domain error returned from a MutateFunc) pass through wrapped.
func classify(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", msg, ErrUnavailable)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrUnavailable):
		return fmt.Errorf("%s: %w", msg, err)
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", msg, ErrAlreadyExists)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w (%v)", msg, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
