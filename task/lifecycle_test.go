package task

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func TestNew_AppliesDefaults(t *testing.T) {
	item, err := New("u1", "  Buy   milk ", CreateOptions{}, testNow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if item.ID != "" {
		t.Errorf("expected unsaved task to have empty ID, got %q", item.ID)
	}
	if item.Title != "Buy milk" {
		t.Errorf("expected normalized title, got %q", item.Title)
	}
	if item.Status != StatusPending {
		t.Errorf("expected pending status, got %q", item.Status)
	}
	if item.Priority != PriorityMedium {
		t.Errorf("expected medium priority, got %q", item.Priority)
	}
	if item.Repeat != RepeatNone {
		t.Errorf("expected repeat none, got %q", item.Repeat)
	}
	if item.Progress != 0 {
		t.Errorf("expected zero progress, got %v", item.Progress)
	}
	if item.Subtasks == nil || item.Attachments == nil || item.Tags == nil {
		t.Error("expected empty, non-nil collections")
	}
	if !item.CreatedAt.Equal(testNow) || !item.UpdatedAt.Equal(testNow) {
		t.Errorf("expected timestamps at %v, got %v / %v", testNow, item.CreatedAt, item.UpdatedAt)
	}
	if err := Validate(&item); err != nil {
		t.Errorf("expected new task to validate, got %v", err)
	}
}

func TestNew_WithStatus(t *testing.T) {
	item, err := New("u1", "Archived chore", CreateOptions{Status: StatusCompleted, Repeat: RepeatWeekly}, testNow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if item.Status != StatusCompleted {
		t.Errorf("expected completed status, got %q", item.Status)
	}
	if item.CompletedAt == nil || !item.CompletedAt.Equal(testNow) {
		t.Errorf("expected completedAt at %v, got %v", testNow, item.CompletedAt)
	}
	if err := Validate(&item); err != nil {
		t.Errorf("expected completed task to validate, got %v", err)
	}

	if _, err := New("u1", "title", CreateOptions{Status: "done"}, testNow); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestNew_RejectsInvalidInput(t *testing.T) {
	if _, err := New("", "title", CreateOptions{}, testNow); !errors.Is(err, ErrMissingUserID) {
		t.Errorf("expected ErrMissingUserID, got %v", err)
	}
	if _, err := New("u1", "   ", CreateOptions{}, testNow); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("expected ErrEmptyTitle, got %v", err)
	}
	if _, err := New("u1", strings.Repeat("x", MaxTitleLength+1), CreateOptions{}, testNow); !errors.Is(err, ErrTitleTooLong) {
		t.Errorf("expected ErrTitleTooLong, got %v", err)
	}
	if _, err := New("u1", "title", CreateOptions{Priority: "critical"}, testNow); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("expected ErrInvalidPriority, got %v", err)
	}
	if _, err := New("u1", "title", CreateOptions{Repeat: "hourly"}, testNow); !errors.Is(err, ErrInvalidRepeatRule) {
		t.Errorf("expected ErrInvalidRepeatRule, got %v", err)
	}
}

func TestNew_NormalizesTagsAndSubtasks(t *testing.T) {
	item, err := New("u1", "Plan trip", CreateOptions{
		Tags:     []string{"travel", " travel ", "", "family"},
		Subtasks: []string{"book flights", "book hotel"},
	}, testNow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if strings.Join(item.Tags, ",") != "travel,family" {
		t.Errorf("expected deduplicated tags, got %v", item.Tags)
	}
	if len(item.Subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(item.Subtasks))
	}
	if item.Subtasks[0].ID == item.Subtasks[1].ID {
		t.Errorf("expected distinct subtask IDs, got %q twice", item.Subtasks[0].ID)
	}
}

func TestSetStatus_TracksCompletedAt(t *testing.T) {
	item, _ := New("u1", "Write report", CreateOptions{}, testNow)

	done := testNow.Add(time.Hour)
	if err := item.SetStatus(StatusCompleted, done); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if item.CompletedAt == nil || !item.CompletedAt.Equal(done) {
		t.Fatalf("expected completedAt %v, got %v", done, item.CompletedAt)
	}
	if item.Progress != 1 {
		t.Errorf("expected progress 1 after completion, got %v", item.Progress)
	}
	if !item.UpdatedAt.Equal(done) {
		t.Errorf("expected updatedAt bumped to %v, got %v", done, item.UpdatedAt)
	}

	reopened := done.Add(time.Hour)
	if err := item.SetStatus(StatusInProgress, reopened); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if item.CompletedAt != nil {
		t.Errorf("expected completedAt cleared on reopen, got %v", item.CompletedAt)
	}

	if err := item.SetStatus(Status("done"), reopened); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestApply_UpdatesFieldsAndBumpsUpdatedAt(t *testing.T) {
	item, _ := New("u1", "Write report", CreateOptions{}, testNow)
	later := testNow.Add(time.Minute)

	title := "Write quarterly report"
	priority := PriorityUrgent
	progress := 1.7
	due := testNow.Add(48 * time.Hour)
	tags := []string{"work"}
	err := item.Apply(UpdateOptions{
		Title:    &title,
		Priority: &priority,
		Progress: &progress,
		DueDate:  &due,
		Tags:     &tags,
	}, later)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if item.Title != title || item.Priority != PriorityUrgent {
		t.Errorf("expected title and priority updated, got %q / %q", item.Title, item.Priority)
	}
	if item.Progress != 1 {
		t.Errorf("expected progress clamped to 1, got %v", item.Progress)
	}
	if item.DueDate == nil || !item.DueDate.Equal(due) {
		t.Errorf("expected due date %v, got %v", due, item.DueDate)
	}
	if !item.UpdatedAt.Equal(later) {
		t.Errorf("expected updatedAt %v, got %v", later, item.UpdatedAt)
	}
	if !item.CreatedAt.Equal(testNow) {
		t.Errorf("expected createdAt unchanged, got %v", item.CreatedAt)
	}

	if err := item.Apply(UpdateOptions{ClearDueDate: true}, later); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if item.DueDate != nil {
		t.Errorf("expected due date cleared, got %v", item.DueDate)
	}
}

func TestApply_LeavesTaskUnchangedOnError(t *testing.T) {
	item, _ := New("u1", "Write report", CreateOptions{}, testNow)
	before := item.Clone()

	empty := ""
	priority := PriorityHigh
	err := item.Apply(UpdateOptions{Priority: &priority, Title: &empty}, testNow.Add(time.Minute))
	if !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if item.Priority != before.Priority || !item.UpdatedAt.Equal(before.UpdatedAt) {
		t.Error("expected task unchanged after failed update")
	}
}

func TestToggleSubtask_CompletesTaskWhenAllDone(t *testing.T) {
	item, err := New("u1", "Move house", CreateOptions{Subtasks: []string{"A", "B"}}, testNow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, b := item.Subtasks[0].ID, item.Subtasks[1].ID

	first := testNow.Add(time.Minute)
	if err := item.ToggleSubtask(a, first); err != nil {
		t.Fatalf("ToggleSubtask: %v", err)
	}
	if item.Status != StatusPending {
		t.Fatalf("expected task still pending with one subtask left, got %q", item.Status)
	}

	second := testNow.Add(2 * time.Minute)
	if err := item.ToggleSubtask(b, second); err != nil {
		t.Fatalf("ToggleSubtask: %v", err)
	}
	if item.Status != StatusCompleted {
		t.Fatalf("expected task completed after last subtask, got %q", item.Status)
	}
	if item.CompletedAt == nil || !item.CompletedAt.Equal(second) {
		t.Fatalf("expected completedAt %v, got %v", second, item.CompletedAt)
	}
	if got := item.SubtaskProgress(); got != 1 {
		t.Errorf("expected subtask progress 1, got %v", got)
	}
}

func TestToggleSubtask_ReopeningDoesNotReopenTask(t *testing.T) {
	item, _ := New("u1", "Move house", CreateOptions{Subtasks: []string{"A", "B"}}, testNow)
	a, b := item.Subtasks[0].ID, item.Subtasks[1].ID
	_ = item.ToggleSubtask(a, testNow)
	_ = item.ToggleSubtask(b, testNow)

	if err := item.ToggleSubtask(a, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("ToggleSubtask: %v", err)
	}
	if item.Subtasks[0].Completed || item.Subtasks[0].CompletedAt != nil {
		t.Error("expected subtask A reopened")
	}
	if item.Status != StatusCompleted {
		t.Errorf("expected task to stay completed, got %q", item.Status)
	}
}

func TestToggleSubtask_UnknownID(t *testing.T) {
	item, _ := New("u1", "Move house", CreateOptions{}, testNow)
	if err := item.ToggleSubtask("missing", testNow); !errors.Is(err, ErrSubtaskNotFound) {
		t.Fatalf("expected ErrSubtaskNotFound, got %v", err)
	}
}

func TestNextOccurrence(t *testing.T) {
	due := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	item, _ := New("u1", "Pay rent", CreateOptions{
		DueDate:  &due,
		Repeat:   RepeatWeekly,
		Subtasks: []string{"transfer"},
	}, testNow)
	item.ID = "abc"
	_ = item.ToggleSubtask(item.Subtasks[0].ID, testNow)

	next, ok := NextOccurrence(item, testNow)
	if !ok {
		t.Fatal("expected weekly task to repeat")
	}
	if next.ID != "" {
		t.Errorf("expected unsaved follow-up, got ID %q", next.ID)
	}
	if want := due.AddDate(0, 0, 7); !next.DueDate.Equal(want) {
		t.Errorf("expected due %v, got %v", want, next.DueDate)
	}
	if next.Status != StatusPending || next.CompletedAt != nil {
		t.Errorf("expected pending follow-up, got %q (%v)", next.Status, next.CompletedAt)
	}
	if next.Subtasks[0].Completed {
		t.Error("expected follow-up subtasks reset")
	}
	if !item.Subtasks[0].Completed {
		t.Error("expected original subtasks untouched")
	}

	item.Repeat = RepeatNone
	if _, ok := NextOccurrence(item, testNow); ok {
		t.Error("expected non-repeating task not to repeat")
	}
}

func TestValidate(t *testing.T) {
	item, _ := New("u1", "Write report", CreateOptions{}, testNow)

	item.Status = StatusCompleted
	if err := Validate(&item); !errors.Is(err, ErrCompletedTaskMissingCompletedAt) {
		t.Errorf("expected ErrCompletedTaskMissingCompletedAt, got %v", err)
	}

	item.Status = StatusPending
	item.CompletedAt = &testNow
	if err := Validate(&item); !errors.Is(err, ErrOpenTaskHasCompletedAt) {
		t.Errorf("expected ErrOpenTaskHasCompletedAt, got %v", err)
	}

	item.CompletedAt = nil
	item.Progress = 2
	if err := Validate(&item); !errors.Is(err, ErrInvalidProgress) {
		t.Errorf("expected ErrInvalidProgress, got %v", err)
	}
}

func TestParseInput(t *testing.T) {
	if _, err := ParseStatusInput("archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if got, err := ParsePriorityInput("High"); err != nil || got != PriorityHigh {
		t.Errorf("expected high, got %q (%v)", got, err)
	}
	if _, err := ParseRepeatRuleInput("hourly"); !errors.Is(err, ErrInvalidRepeatRule) {
		t.Errorf("expected ErrInvalidRepeatRule, got %v", err)
	}
}
