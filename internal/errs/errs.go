package errs

import "errors"

// Domain sentinel errors. Services wrap them with fmt.Errorf("%w: ...") and
// handlers map them to HTTP status codes with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrCapacityExceeded = errors.New("session is full")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrInvalid          = errors.New("invalid request")

	// ErrConditionFailed is returned by stores when a conditional update
	// matched no document. Callers re-read to find out why.
	ErrConditionFailed = errors.New("conditional update did not apply")
)
