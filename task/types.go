// Package task defines the task record mirrored from the remote store.
//
// Tasks are owned by a single user and carry a status, a priority, optional
// scheduling data (due date, reminder, repeat rule), and an ordered list of
// subtasks. Derived values such as IsOverdue are always recomputed and never
// persisted.
//
// Records cross the store boundary as plain documents (map[string]any);
// Encode and Decode convert between documents and Task values.
package task

import "strings"

// Status represents the state of a task.
type Status string

const (
	// StatusPending indicates the task has not been started.
	StatusPending Status = "pending"

	// StatusInProgress indicates the task is being worked on.
	StatusInProgress Status = "in_progress"

	// StatusCompleted indicates the task is finished.
	StatusCompleted Status = "completed"

	// StatusCancelled indicates the task was abandoned.
	StatusCancelled Status = "cancelled"
)

// DefaultStatus is used when a stored status is missing or unrecognized.
const DefaultStatus = StatusPending

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}
}

// IsValid returns true if the status is a known valid value.
func (s Status) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// IsOpen returns true for statuses that still count toward due dates.
func (s Status) IsOpen() bool {
	return s != StatusCompleted
}

// Priority represents the importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium" // default
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DefaultPriority is used when a stored priority is missing or unrecognized.
const DefaultPriority = PriorityMedium

// ValidPriorities returns all valid priorities, lowest first.
func ValidPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

// IsValid returns true if the priority is a known valid value.
func (p Priority) IsValid() bool {
	for _, valid := range ValidPriorities() {
		if p == valid {
			return true
		}
	}
	return false
}

// Rank returns the sort rank for a priority. Urgent sorts first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// RepeatRule controls whether completing a task schedules another occurrence.
type RepeatRule string

const (
	RepeatNone    RepeatRule = "none"
	RepeatDaily   RepeatRule = "daily"
	RepeatWeekly  RepeatRule = "weekly"
	RepeatMonthly RepeatRule = "monthly"
	RepeatYearly  RepeatRule = "yearly"
)

// ValidRepeatRules returns all valid repeat rules.
func ValidRepeatRules() []RepeatRule {
	return []RepeatRule{RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly}
}

// IsValid returns true if the repeat rule is a known valid value.
func (r RepeatRule) IsValid() bool {
	for _, valid := range ValidRepeatRules() {
		if r == valid {
			return true
		}
	}
	return false
}

// ReminderType selects how a reminder is delivered.
type ReminderType string

const (
	ReminderNotification ReminderType = "notification"
	ReminderEmail        ReminderType = "email"
)

// ParseStatus decodes a stored status. Unknown values fall back to
// DefaultStatus and ok is false.
//
// Besides the canonical snake_case names, it accepts the legacy encodings
// written by older clients: "inProgress" and enum-qualified names such as
// "TaskStatus.completed".
func ParseStatus(value string) (status Status, ok bool) {
	switch normalizeEnum(value) {
	case "pending":
		return StatusPending, true
	case "inprogress":
		return StatusInProgress, true
	case "completed":
		return StatusCompleted, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	default:
		return DefaultStatus, false
	}
}

// ParsePriority decodes a stored priority. Unknown values fall back to
// DefaultPriority and ok is false.
func ParsePriority(value string) (priority Priority, ok bool) {
	switch normalizeEnum(value) {
	case "low":
		return PriorityLow, true
	case "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	case "urgent":
		return PriorityUrgent, true
	default:
		return DefaultPriority, false
	}
}

// ParseRepeatRule decodes a stored repeat rule, falling back to RepeatNone.
func ParseRepeatRule(value string) RepeatRule {
	rule := RepeatRule(normalizeEnum(value))
	if rule == "" || !rule.IsValid() {
		return RepeatNone
	}
	return rule
}

// normalizeEnum strips an enum qualifier ("TaskStatus.") and removes
// separators so "in_progress", "inProgress" and "In Progress" compare equal.
func normalizeEnum(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.LastIndexByte(value, '.'); idx >= 0 {
		value = value[idx+1:]
	}
	value = strings.ToLower(value)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(value)
}

// MaxTitleLength is the maximum allowed length for a task title.
const MaxTitleLength = 500
