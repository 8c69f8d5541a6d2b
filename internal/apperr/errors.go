// Package apperr defines the error taxonomy shared across tagtrack.
//
// Validation errors mean the input never reached the day state. State
// errors mean the request conflicts with the current day state. Range
// errors are time values inconsistent with the day boundaries or the
// wall clock and may be overridden with a force flag.
package apperr

import "errors"

// Validation errors.
var (
	ErrBadSyntax  = errors.New("tag does not match the letters-then-digits pattern")
	ErrUnknownTag = errors.New("tag is not in today's tag context")
	ErrRetiredTag = errors.New("tag is retired")
	ErrBadTime    = errors.New("unrecognized or out-of-range time")
)

// State errors.
var (
	ErrAlreadyOpen      = errors.New("tag already has an open stay")
	ErrNotOpen          = errors.New("tag has no open stay")
	ErrNotFound         = errors.New("no matching stay")
	ErrNegativeDuration = errors.New("check-out earlier than check-in")
)

// Range errors, overridable via force.
var (
	ErrOutsideHours = errors.New("time is before the day's opening")
	ErrFutureTime   = errors.New("time is later than the current time")
)

// ErrConfirmRequired is not a true failure: the caller must re-invoke the
// operation with explicit confirmation to destroy a meaningful record.
var ErrConfirmRequired = errors.New("confirmation required")

// ErrPersistence means the durable write failed after retries. The
// in-memory mutation is rolled back so the failure is never silent.
var ErrPersistence = errors.New("persistence failed")

// Overridable reports whether err is a range error that a force flag
// would have bypassed.
func Overridable(err error) bool {
	return errors.Is(err, ErrOutsideHours) || errors.Is(err, ErrFutureTime)
}
