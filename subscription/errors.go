package subscription

import (
	"errors"
	"fmt"

	"github.com/amonks/taskmirror/cache"
)

var (
	// ErrClosed is returned after the manager is closed.
	ErrClosed = errors.New("subscription manager is closed")

	// ErrSuperseded is returned when a newer subscribe for the same key won
	// while this one was still opening.
	ErrSuperseded = errors.New("subscription superseded")

	// ErrMissingUserID is returned when subscribing without a user id.
	ErrMissingUserID = errors.New("user id is required")
)

// Error is a subscription-level failure for one key.
type Error struct {
	Key cache.Key
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
