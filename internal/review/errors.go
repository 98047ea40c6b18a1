package review

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the acting identity may not delete a review.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned for unknown stations or reviews.
	ErrNotFound = errors.New("not found")

	// ErrStaleResult marks a fetch result rejected by the fence. Never user-visible.
	ErrStaleResult = errors.New("stale result discarded")

	// ErrNoCapability is returned when a delete is attempted without a
	// capability covering the review. No request is made.
	ErrNoCapability = errors.New("no delete capability for review")

	// ErrNoStation is returned by operations that need a focused station.
	ErrNoStation = errors.New("no station selected")
)

// ValidationError reports bad input to a review submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid review: " + e.Reason
	}
	return fmt.Sprintf("invalid review: %s %s", e.Field, e.Reason)
}

// TransportError is a network or server failure. Status is the HTTP status
// when one was received, 0 otherwise.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
