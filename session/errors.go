package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoUser indicates no user has been loaded yet.
	ErrNoUser = errors.New("no user loaded")

	// ErrClosed indicates the manager has been closed.
	ErrClosed = errors.New("session is closed")

	// ErrTaskNotFound indicates an id or prefix matched no loaded task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAmbiguousTaskID indicates a prefix matched more than one task.
	ErrAmbiguousTaskID = errors.New("ambiguous task id prefix")
)

// MutationError reports a failed write to the remote store.
type MutationError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *MutationError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("%s task: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s task %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
