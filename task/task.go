package task

import "time"

// Task represents a single task owned by a user.
type Task struct {
	// ID is assigned by the remote store. It is empty until first persisted.
	ID string `json:"id"`

	// UserID is the owner. It is fixed at creation.
	UserID string `json:"userId"`

	// Title is the short summary of the task (max 500 chars).
	Title string `json:"title"`

	// Description provides additional context about the task.
	Description string `json:"description"`

	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`

	// DueDate is when the task should be finished (nil when unscheduled).
	DueDate *time.Time `json:"dueDate,omitempty"`

	// Tags are free-form labels. Order is kept for display only.
	Tags []string `json:"tags"`

	// Category groups related tasks. Empty means uncategorized.
	Category string `json:"category,omitempty"`

	// Progress is the manual completion estimate in [0, 1].
	Progress float64 `json:"progress"`

	Subtasks    []Subtask    `json:"subtasks"`
	Attachments []Attachment `json:"attachments"`

	Reminder *Reminder `json:"reminder,omitempty"`

	Repeat RepeatRule `json:"repeat"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time `json:"updatedAt"`

	// CompletedAt is set while the task is completed (nil otherwise).
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Subtask is a checklist item inside a task. Subtasks are not stored or
// addressed independently of their parent.
type Subtask struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Attachment references a file uploaded elsewhere.
type Attachment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Reminder configures a notification ahead of the due date.
type Reminder struct {
	Enabled bool         `json:"enabled"`
	At      *time.Time   `json:"at,omitempty"`
	Type    ReminderType `json:"type"`
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	clone := t
	clone.DueDate = cloneTime(t.DueDate)
	clone.CompletedAt = cloneTime(t.CompletedAt)
	if t.Tags != nil {
		clone.Tags = append([]string(nil), t.Tags...)
	}
	if t.Subtasks != nil {
		clone.Subtasks = make([]Subtask, len(t.Subtasks))
		for i, sub := range t.Subtasks {
			sub.CompletedAt = cloneTime(sub.CompletedAt)
			clone.Subtasks[i] = sub
		}
	}
	if t.Attachments != nil {
		clone.Attachments = append([]Attachment(nil), t.Attachments...)
	}
	if t.Reminder != nil {
		reminder := *t.Reminder
		reminder.At = cloneTime(t.Reminder.At)
		clone.Reminder = &reminder
	}
	return clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

// TimePtr returns a pointer to the provided time.
func TimePtr(value time.Time) *time.Time {
	return &value
}
