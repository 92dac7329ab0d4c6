package main

import (
	"strings"
	"testing"
	"time"

	"github.com/amonks/taskmirror/task"
)

func TestFormatTaskTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tasks := []task.Task{
		{ID: "abc123", Title: "Buy milk", Priority: task.PriorityHigh, Status: task.StatusPending, Category: "Home", DueDate: &yesterday},
		{ID: "abd456", Title: "Write report", Priority: task.PriorityLow, Status: task.StatusCompleted},
	}

	got := formatTaskTable(tasks, idHighlighter(tasks), now)

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", got)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.HasSuffix(lines[0], "TITLE") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	for _, want := range []string{"abc123", "high", "pending", "1d overdue", "Home", "Buy milk"} {
		if !strings.Contains(lines[1], want) {
			t.Fatalf("expected %q in %q", want, lines[1])
		}
	}
	if !strings.Contains(lines[2], "-") || !strings.Contains(lines[2], "Write report") {
		t.Fatalf("expected placeholder due and category in %q", lines[2])
	}
}

func TestFormatTaskDetail(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	item := task.Task{
		ID:          "abc123",
		Title:       "Pack bag",
		Description: "Bring the **charger**.",
		Priority:    task.PriorityMedium,
		Status:      task.StatusInProgress,
		Tags:        []string{"travel", "errands"},
		Repeat:      task.RepeatNone,
		CreatedAt:   now.Add(-3 * time.Hour),
		UpdatedAt:   now.Add(-2 * time.Minute),
		Subtasks: []task.Subtask{
			{ID: "s1", Title: "Socks", Completed: true},
			{ID: "s2", Title: "Charger"},
		},
	}

	got := formatTaskDetail(item, func(id string) string { return id }, now)

	for _, want := range []string{
		"Pack bag (abc123)",
		"Status:   in_progress",
		"Tags:     travel, errands",
		"Progress: 50% of subtasks",
		"Open for: 3h",
		"Updated:  2m ago",
		"charger",
		"[x] s1 Socks",
		"[ ] s2 Charger",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Repeats:") {
		t.Fatalf("expected no repeat line for non-repeating task:\n%s", got)
	}
}
