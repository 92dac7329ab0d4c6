package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/amonks/taskmirror/internal/age"
	"github.com/amonks/taskmirror/internal/markdown"
	"github.com/amonks/taskmirror/internal/ui"
	"github.com/amonks/taskmirror/task"
)

const (
	detailWidth  = 80
	detailIndent = 4
)

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// idHighlighter highlights each id's shortest unique prefix among all.
func idHighlighter(all []task.Task) func(string) string {
	ids := make([]string, 0, len(all))
	for _, t := range all {
		ids = append(ids, t.ID)
	}
	lengths := ui.UniqueIDPrefixLengths(ids)
	return func(id string) string {
		return ui.HighlightID(id, ui.PrefixLength(lengths, id))
	}
}

func formatTaskTable(tasks []task.Task, highlight func(string) string, now time.Time) string {
	builder := ui.NewTableBuilder([]string{"ID", "PRIORITY", "STATUS", "DUE", "CATEGORY", "TITLE"}, len(tasks))
	for _, t := range tasks {
		due := ui.FormatDue(t.DueDate, now)
		if t.IsOverdue(now) {
			due = ui.OverdueMark(due)
		}
		category := t.Category
		if category == "" {
			category = "-"
		}
		builder.AddRow(
			highlight(t.ID),
			ui.PriorityBadge(t.Priority),
			ui.StatusBadge(t.Status),
			due,
			category,
			ui.TruncateTableCell(t.Title),
		)
	}
	return builder.String()
}

func formatTaskDetail(t task.Task, highlight func(string) string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", ui.Heading(t.Title), ui.Muted("("+highlight(t.ID)+")"))
	fmt.Fprintf(&b, "  Status:   %s\n", ui.StatusBadge(t.Status))
	fmt.Fprintf(&b, "  Priority: %s\n", ui.PriorityBadge(t.Priority))
	if t.DueDate != nil {
		fmt.Fprintf(&b, "  Due:      %s (%s)\n", t.DueDate.Local().Format(time.DateTime), ui.FormatDue(t.DueDate, now))
	}
	if t.Category != "" {
		fmt.Fprintf(&b, "  Category: %s\n", t.Category)
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "  Tags:     %s\n", strings.Join(t.Tags, ", "))
	}
	if t.Repeat != "" && t.Repeat != task.RepeatNone {
		fmt.Fprintf(&b, "  Repeats:  %s\n", t.Repeat)
	}
	if len(t.Subtasks) > 0 {
		fmt.Fprintf(&b, "  Progress: %.0f%% of subtasks\n", t.SubtaskProgress()*100)
	} else if t.Progress > 0 {
		fmt.Fprintf(&b, "  Progress: %.0f%%\n", t.Progress*100)
	}
	if span, ok := age.Of(t.CreatedAt, t.CompletedAt, now); ok {
		if span.Finished {
			fmt.Fprintf(&b, "  Took:     %s\n", ui.FormatDurationShort(span.Duration))
		} else {
			fmt.Fprintf(&b, "  Open for: %s\n", ui.FormatDurationShort(span.Duration))
		}
	}
	fmt.Fprintf(&b, "  Updated:  %s\n", ui.FormatTimeAgo(t.UpdatedAt, now))

	if description := markdown.SafeRender(detailWidth, detailIndent, []byte(t.Description)); len(description) > 0 {
		b.WriteString("\n")
		b.Write(description)
		b.WriteString("\n")
	}

	if len(t.Subtasks) > 0 {
		b.WriteString("\n" + ui.Heading("Subtasks") + "\n")
		for _, sub := range t.Subtasks {
			mark := " "
			if sub.Completed {
				mark = "x"
			}
			fmt.Fprintf(&b, "  [%s] %s %s\n", mark, ui.Muted(sub.ID), sub.Title)
		}
	}
	return b.String()
}
