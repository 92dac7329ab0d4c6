package task

import "time"

// Next returns the occurrence after from, or false for RepeatNone.
func (r RepeatRule) Next(from time.Time) (time.Time, bool) {
	switch r {
	case RepeatDaily:
		return from.AddDate(0, 0, 1), true
	case RepeatWeekly:
		return from.AddDate(0, 0, 7), true
	case RepeatMonthly:
		return from.AddDate(0, 1, 0), true
	case RepeatYearly:
		return from.AddDate(1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// NextOccurrence builds the unsaved follow-up task for a repeating task.
// The due date advances by one period (from now when the task had none),
// subtasks are reset, and the status returns to pending.
func NextOccurrence(t Task, now time.Time) (Task, bool) {
	base := now
	if t.DueDate != nil {
		base = *t.DueDate
	}
	due, ok := t.Repeat.Next(base)
	if !ok {
		return Task{}, false
	}

	next := t.Clone()
	next.ID = ""
	next.Status = StatusPending
	next.Progress = 0
	next.CompletedAt = nil
	next.DueDate = &due
	next.CreatedAt = now
	next.UpdatedAt = now
	for i := range next.Subtasks {
		next.Subtasks[i].Completed = false
		next.Subtasks[i].CompletedAt = nil
	}
	if next.Reminder != nil && next.Reminder.At != nil {
		shifted := next.Reminder.At.Add(due.Sub(base))
		next.Reminder.At = &shifted
	}
	return next, true
}
