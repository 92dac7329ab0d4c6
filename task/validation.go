package task

import (
	"errors"
	"fmt"

	"github.com/amonks/taskmirror/internal/validation"
)

var (
	// ErrEmptyTitle is returned when a task title is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrTitleTooLong is returned when a task title exceeds MaxTitleLength.
	ErrTitleTooLong = errors.New("title exceeds maximum length")

	// ErrMissingUserID is returned when a task has no owner.
	ErrMissingUserID = errors.New("user id is required")

	// ErrInvalidStatus is returned when an invalid status is provided.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidPriority is returned when an invalid priority is provided.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidRepeatRule is returned when an invalid repeat rule is provided.
	ErrInvalidRepeatRule = errors.New("invalid repeat rule")

	// ErrInvalidProgress is returned when progress is outside [0, 1].
	ErrInvalidProgress = errors.New("progress must be between 0 and 1")

	// ErrSubtaskNotFound is returned when a subtask id doesn't exist on the task.
	ErrSubtaskNotFound = errors.New("subtask not found")

	// ErrCompletedTaskMissingCompletedAt is returned when a completed task has no completedAt.
	ErrCompletedTaskMissingCompletedAt = errors.New("completed task must have completedAt timestamp")

	// ErrOpenTaskHasCompletedAt is returned when a non-completed task has a completedAt.
	ErrOpenTaskHasCompletedAt = errors.New("non-completed task cannot have completedAt timestamp")
)

// ValidateTitle checks if the title is valid.
func ValidateTitle(title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: %d > %d", ErrTitleTooLong, len(title), MaxTitleLength)
	}
	return nil
}

// ParseStatusInput parses a user-supplied status strictly.
func ParseStatusInput(value string) (Status, error) {
	status, ok := ParseStatus(value)
	if !ok {
		return "", validation.FormatInvalidValueError(ErrInvalidStatus, Status(value), ValidStatuses())
	}
	return status, nil
}

// ParsePriorityInput parses a user-supplied priority strictly.
func ParsePriorityInput(value string) (Priority, error) {
	priority, ok := ParsePriority(value)
	if !ok {
		return "", validation.FormatInvalidValueError(ErrInvalidPriority, Priority(value), ValidPriorities())
	}
	return priority, nil
}

// ParseRepeatRuleInput parses a user-supplied repeat rule strictly.
func ParseRepeatRuleInput(value string) (RepeatRule, error) {
	rule := RepeatRule(normalizeEnum(value))
	if !rule.IsValid() {
		return "", validation.FormatInvalidValueError(ErrInvalidRepeatRule, RepeatRule(value), ValidRepeatRules())
	}
	return rule, nil
}

// Validate checks if a task is valid for persisting.
func Validate(t *Task) error {
	if t.UserID == "" {
		return ErrMissingUserID
	}
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if !t.Repeat.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRepeatRule, t.Repeat)
	}
	if t.Progress < 0 || t.Progress > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidProgress, t.Progress)
	}
	if t.Status == StatusCompleted && t.CompletedAt == nil {
		return ErrCompletedTaskMissingCompletedAt
	}
	if t.Status != StatusCompleted && t.CompletedAt != nil {
		return ErrOpenTaskHasCompletedAt
	}
	return nil
}
