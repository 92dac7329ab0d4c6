package task

import (
	"fmt"
	"strconv"
	"time"

	"github.com/amonks/taskmirror/internal/ids"
	internalstrings "github.com/amonks/taskmirror/internal/strings"
)

// CreateOptions configures a new task.
type CreateOptions struct {
	// Description provides additional context.
	Description string

	// Priority defaults to PriorityMedium when empty.
	Priority Priority

	// Status defaults to StatusPending when empty. Creating a task as
	// completed stamps CompletedAt but never schedules a next occurrence.
	Status Status

	DueDate  *time.Time
	Tags     []string
	Category string
	Reminder *Reminder

	// Repeat defaults to RepeatNone when empty.
	Repeat RepeatRule

	// Subtasks lists subtask titles to create in order.
	Subtasks []string
}

// New builds an unsaved task with defaults applied: pending status, zero
// progress, empty collections, and client-side timestamps.
func New(userID, title string, opts CreateOptions, now time.Time) (Task, error) {
	if internalstrings.IsBlank(userID) {
		return Task{}, ErrMissingUserID
	}
	title = internalstrings.NormalizeWhitespace(title)
	if err := ValidateTitle(title); err != nil {
		return Task{}, err
	}

	priority := opts.Priority
	if priority == "" {
		priority = DefaultPriority
	}
	if !priority.IsValid() {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	repeat := opts.Repeat
	if repeat == "" {
		repeat = RepeatNone
	}
	if !repeat.IsValid() {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidRepeatRule, repeat)
	}

	t := Task{
		UserID:      userID,
		Title:       title,
		Description: opts.Description,
		Priority:    priority,
		Status:      StatusPending,
		DueDate:     cloneTime(opts.DueDate),
		Tags:        normalizeTags(opts.Tags),
		Category:    internalstrings.NormalizeWhitespace(opts.Category),
		Progress:    0,
		Subtasks:    []Subtask{},
		Attachments: []Attachment{},
		Repeat:      repeat,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.Reminder != nil {
		reminder := *opts.Reminder
		reminder.At = cloneTime(opts.Reminder.At)
		if reminder.Type == "" {
			reminder.Type = ReminderNotification
		}
		t.Reminder = &reminder
	}
	for _, subtaskTitle := range opts.Subtasks {
		if _, err := t.AddSubtask(subtaskTitle, now); err != nil {
			return Task{}, err
		}
	}
	if opts.Status != "" {
		if err := t.SetStatus(opts.Status, now); err != nil {
			return Task{}, err
		}
	}
	// AddSubtask and SetStatus bump UpdatedAt; creation keeps both
	// timestamps equal.
	t.UpdatedAt = now
	return t, nil
}

// UpdateOptions configures fields to update on a task.
// Nil pointers mean "don't update this field".
type UpdateOptions struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *Status
	Category    *string
	Tags        *[]string
	Progress    *float64
	Repeat      *RepeatRule
	Reminder    *Reminder

	// DueDate sets the due date; ClearDueDate removes it.
	DueDate      *time.Time
	ClearDueDate bool
}

// Apply applies opts to the task and bumps UpdatedAt. The task is left
// unchanged when validation fails.
func (t *Task) Apply(opts UpdateOptions, now time.Time) error {
	next := t.Clone()

	if opts.Title != nil {
		title := internalstrings.NormalizeWhitespace(*opts.Title)
		if err := ValidateTitle(title); err != nil {
			return err
		}
		next.Title = title
	}
	if opts.Description != nil {
		next.Description = *opts.Description
	}
	if opts.Priority != nil {
		if !opts.Priority.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidPriority, *opts.Priority)
		}
		next.Priority = *opts.Priority
	}
	if opts.Category != nil {
		next.Category = internalstrings.NormalizeWhitespace(*opts.Category)
	}
	if opts.Tags != nil {
		next.Tags = normalizeTags(*opts.Tags)
	}
	if opts.Progress != nil {
		next.Progress = clampProgress(*opts.Progress)
	}
	if opts.Repeat != nil {
		if !opts.Repeat.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidRepeatRule, *opts.Repeat)
		}
		next.Repeat = *opts.Repeat
	}
	if opts.Reminder != nil {
		reminder := *opts.Reminder
		reminder.At = cloneTime(opts.Reminder.At)
		next.Reminder = &reminder
	}
	if opts.ClearDueDate {
		next.DueDate = nil
	} else if opts.DueDate != nil {
		next.DueDate = cloneTime(opts.DueDate)
	}
	if opts.Status != nil {
		if err := next.SetStatus(*opts.Status, now); err != nil {
			return err
		}
	}
	next.UpdatedAt = now

	*t = next
	return nil
}

// SetStatus moves the task to status. Entering StatusCompleted records
// CompletedAt and sets progress to 1; leaving it clears CompletedAt.
func (t *Task) SetStatus(status Status, now time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if status == t.Status {
		return nil
	}
	previous := t.Status
	t.Status = status
	switch {
	case status == StatusCompleted:
		t.CompletedAt = &now
		t.Progress = 1
	case previous == StatusCompleted:
		t.CompletedAt = nil
	}
	t.UpdatedAt = now
	return nil
}

// AddSubtask appends a new incomplete subtask and returns it.
func (t *Task) AddSubtask(title string, now time.Time) (Subtask, error) {
	title = internalstrings.NormalizeWhitespace(title)
	if err := ValidateTitle(title); err != nil {
		return Subtask{}, fmt.Errorf("subtask: %w", err)
	}
	sub := Subtask{
		ID:        ids.GenerateWithTimestamp(title+"#"+strconv.Itoa(len(t.Subtasks)), now, ids.DefaultLength),
		Title:     title,
		CreatedAt: now,
	}
	t.Subtasks = append(t.Subtasks, sub)
	t.UpdatedAt = now
	return sub, nil
}

// ToggleSubtask flips the completion flag of the subtask with the given id.
//
// Completing the last incomplete subtask also completes the task. Reopening
// a subtask leaves the task status alone.
func (t *Task) ToggleSubtask(id string, now time.Time) error {
	idx := -1
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrSubtaskNotFound, id)
	}

	sub := &t.Subtasks[idx]
	sub.Completed = !sub.Completed
	if sub.Completed {
		sub.CompletedAt = &now
	} else {
		sub.CompletedAt = nil
	}
	t.UpdatedAt = now

	if sub.Completed && t.allSubtasksCompleted() {
		return t.SetStatus(StatusCompleted, now)
	}
	return nil
}

func (t *Task) allSubtasksCompleted() bool {
	if len(t.Subtasks) == 0 {
		return false
	}
	for _, sub := range t.Subtasks {
		if !sub.Completed {
			return false
		}
	}
	return true
}

func normalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = internalstrings.NormalizeWhitespace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		normalized = append(normalized, tag)
	}
	return normalized
}

func clampProgress(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return value
	}
}
