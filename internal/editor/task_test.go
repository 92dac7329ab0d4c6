package editor

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/amonks/taskmirror/task"
)

func TestRenderTaskTOML_Create(t *testing.T) {
	content, err := RenderTaskTOML(DefaultCreateData("Buy milk"))
	if err != nil {
		t.Fatalf("RenderTaskTOML failed: %v", err)
	}

	if !strings.Contains(content, `title = "Buy milk"`) {
		t.Error("expected title to be prefilled")
	}
	if !strings.Contains(content, `priority = "medium" # low, medium, high, urgent`) {
		t.Errorf("expected default priority with choices, got:\n%s", content)
	}
	if !strings.Contains(content, "tags = []") {
		t.Error("expected empty tag list")
	}
	if !strings.Contains(content, "---") {
		t.Error("expected frontmatter separator")
	}
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "status = ") {
			t.Error("status should not be present for create")
		}
	}
}

func TestRenderTaskTOML_Update(t *testing.T) {
	due := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	existing := task.Task{
		ID:          "abc12345",
		Title:       "Write report",
		Priority:    task.PriorityHigh,
		Status:      task.StatusInProgress,
		Category:    "Work",
		Tags:        []string{"q1", "finance"},
		DueDate:     &due,
		Repeat:      task.RepeatWeekly,
		Description: "Quarterly numbers",
	}

	content, err := RenderTaskTOML(DataFromTask(existing, time.UTC))
	if err != nil {
		t.Fatalf("RenderTaskTOML failed: %v", err)
	}

	for _, want := range []string{
		`title = "Write report"`,
		`priority = "high"`,
		`status = "in_progress" # pending, in_progress, completed, cancelled`,
		`category = "Work"`,
		`tags = ["q1", "finance"]`,
		`due = "2026-03-04 15:30"`,
		`repeat = "weekly"`,
		"Quarterly numbers",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in:\n%s", want, content)
		}
	}
}

func TestRenderThenParseRoundTrip(t *testing.T) {
	due := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	existing := task.Task{
		Title:       "Plan trip",
		Priority:    task.PriorityLow,
		Status:      task.StatusPending,
		Tags:        []string{"travel"},
		DueDate:     &due,
		Repeat:      task.RepeatNone,
		Description: "Book flights\n\nThen hotels",
	}

	content, err := RenderTaskTOML(DataFromTask(existing, time.UTC))
	if err != nil {
		t.Fatalf("RenderTaskTOML failed: %v", err)
	}
	parsed, err := ParseTaskTOML(content, time.UTC)
	if err != nil {
		t.Fatalf("ParseTaskTOML failed: %v", err)
	}

	if parsed.Title != existing.Title {
		t.Errorf("expected title %q, got %q", existing.Title, parsed.Title)
	}
	if parsed.Description != existing.Description {
		t.Errorf("expected description %q, got %q", existing.Description, parsed.Description)
	}
	if parsed.DueDate == nil || !parsed.DueDate.Equal(due) {
		t.Errorf("expected due %v, got %v", due, parsed.DueDate)
	}
	if len(parsed.Tags) != 1 || parsed.Tags[0] != "travel" {
		t.Errorf("expected tags [travel], got %v", parsed.Tags)
	}
}

func TestParseTaskTOML(t *testing.T) {
	content := `
title = "  Fix bike  "
priority = "URGENT"
status = "Completed"
category = "Home"
tags = ["repair"]
due = "2026-05-01"
---
Flat tyre
on the back wheel
`

	parsed, err := ParseTaskTOML(content, time.UTC)
	if err != nil {
		t.Fatalf("ParseTaskTOML failed: %v", err)
	}

	if parsed.Title != "Fix bike" {
		t.Errorf("expected title 'Fix bike', got %q", parsed.Title)
	}
	if parsed.Priority != "urgent" {
		t.Errorf("expected priority urgent, got %q", parsed.Priority)
	}
	if parsed.Status == nil || *parsed.Status != "completed" {
		t.Errorf("expected status completed, got %v", parsed.Status)
	}
	if parsed.Repeat != "none" {
		t.Errorf("expected repeat to default to none, got %q", parsed.Repeat)
	}
	want := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if parsed.DueDate == nil || !parsed.DueDate.Equal(want) {
		t.Errorf("expected due %v, got %v", want, parsed.DueDate)
	}
	if parsed.Description != "Flat tyre\non the back wheel" {
		t.Errorf("unexpected description %q", parsed.Description)
	}
}

func TestParseTaskTOML_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing title",
			content: `priority = "low"`,
			wantErr: task.ErrEmptyTitle,
		},
		{
			name:    "invalid priority",
			content: `title = "test"` + "\n" + `priority = "critical"`,
			wantErr: task.ErrInvalidPriority,
		},
		{
			name:    "invalid status",
			content: `title = "test"` + "\n" + `status = "done"`,
			wantErr: task.ErrInvalidStatus,
		},
		{
			name:    "invalid repeat",
			content: `title = "test"` + "\n" + `repeat = "hourly"`,
			wantErr: task.ErrInvalidRepeatRule,
		},
		{
			name:    "invalid due",
			content: `title = "test"` + "\n" + `due = "next tuesday"`,
			wantErr: ErrInvalidDue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTaskTOML(tt.content, time.UTC)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseTaskTOML_InvalidTOML(t *testing.T) {
	_, err := ParseTaskTOML("title = \n---\n", time.UTC)
	if err == nil || !strings.Contains(err.Error(), "parse TOML") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestToUpdateOptions(t *testing.T) {
	status := "in_progress"
	parsed := &ParsedTask{
		Title:       "Test",
		Priority:    "high",
		Status:      &status,
		Repeat:      "daily",
		Description: "description",
	}

	opts := parsed.ToUpdateOptions()

	if opts.Title == nil || *opts.Title != "Test" {
		t.Errorf("expected title 'Test', got %v", opts.Title)
	}
	if opts.Priority == nil || *opts.Priority != task.PriorityHigh {
		t.Errorf("expected priority high, got %v", opts.Priority)
	}
	if opts.Status == nil || *opts.Status != task.StatusInProgress {
		t.Errorf("expected status in_progress, got %v", opts.Status)
	}
	if opts.Tags == nil || len(*opts.Tags) != 0 {
		t.Errorf("expected tags to be cleared, got %v", opts.Tags)
	}
	if !opts.ClearDueDate {
		t.Error("expected empty due to clear the due date")
	}
}

func TestToCreateOptions(t *testing.T) {
	due := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	parsed := &ParsedTask{
		Title:       "Test",
		Priority:    "low",
		Category:    "Home",
		Tags:        []string{"a"},
		Repeat:      "monthly",
		DueDate:     &due,
		Description: "description",
	}

	opts := parsed.ToCreateOptions()

	if opts.Priority != task.PriorityLow {
		t.Errorf("expected priority low, got %v", opts.Priority)
	}
	if opts.Repeat != task.RepeatMonthly {
		t.Errorf("expected repeat monthly, got %v", opts.Repeat)
	}
	if opts.DueDate == nil || !opts.DueDate.Equal(due) {
		t.Errorf("expected due %v, got %v", due, opts.DueDate)
	}
	if opts.Category != "Home" || opts.Description != "description" {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestCommand(t *testing.T) {
	t.Setenv("VISUAL", "")
	t.Setenv("EDITOR", "")
	if got := Command(); len(got) != 1 || got[0] != "vi" {
		t.Errorf("expected vi fallback, got %v", got)
	}

	t.Setenv("EDITOR", "code --wait")
	if got := Command(); len(got) != 2 || got[0] != "code" || got[1] != "--wait" {
		t.Errorf("expected EDITOR fields, got %v", got)
	}

	t.Setenv("VISUAL", "nano")
	if got := Command(); len(got) != 1 || got[0] != "nano" {
		t.Errorf("expected VISUAL to win, got %v", got)
	}
}

func TestCreateTaskTempFileExtension(t *testing.T) {
	file, err := createTaskTempFile()
	if err != nil {
		t.Fatalf("createTaskTempFile failed: %v", err)
	}
	t.Cleanup(func() {
		file.Close()
		os.Remove(file.Name())
	})

	if !strings.HasSuffix(file.Name(), ".md") {
		t.Errorf("expected temp file to end with .md, got %q", file.Name())
	}
}
