// Package age computes how long a task has been open, or how long it took
// to finish.
package age

import "time"

// Span is a task's lifetime as of some instant.
type Span struct {
	Duration time.Duration

	// Finished is true when Duration runs from creation to completion.
	Finished bool
}

// Of returns the lifetime of a task created at createdAt. Completed tasks
// measure up to completedAt; open tasks measure up to now. Negative spans
// from clock skew clamp to zero. ok is false when createdAt is unset.
func Of(createdAt time.Time, completedAt *time.Time, now time.Time) (span Span, ok bool) {
	if createdAt.IsZero() {
		return Span{}, false
	}

	end := now
	if completedAt != nil && !completedAt.IsZero() {
		end = *completedAt
		span.Finished = true
	}
	span.Duration = max(end.Sub(createdAt), 0)
	return span, true
}
