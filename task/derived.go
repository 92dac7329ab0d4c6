package task

import "time"

// DueSoonWindow is how far ahead IsDueSoon looks.
const DueSoonWindow = 24 * time.Hour

// IsOverdue reports whether an open task's due date has passed.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || !t.Status.IsOpen() {
		return false
	}
	return t.DueDate.Before(now)
}

// IsDueSoon reports whether an open task is due within DueSoonWindow.
func (t Task) IsDueSoon(now time.Time) bool {
	if t.DueDate == nil || !t.Status.IsOpen() {
		return false
	}
	remaining := t.DueDate.Sub(now)
	return remaining > 0 && remaining <= DueSoonWindow
}

// IsDueToday reports whether the due date falls on now's calendar day,
// in now's location. Completed tasks are included.
func (t Task) IsDueToday(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	due := t.DueDate.In(now.Location())
	y1, m1, d1 := due.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// SubtaskProgress returns the completed fraction of subtasks, or 0 when
// there are none.
func (t Task) SubtaskProgress() float64 {
	if len(t.Subtasks) == 0 {
		return 0
	}
	completed := 0
	for _, sub := range t.Subtasks {
		if sub.Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(t.Subtasks))
}
