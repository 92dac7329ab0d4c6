package editor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/amonks/taskmirror/internal/validation"
	"github.com/amonks/taskmirror/task"
)

// DueLayout is the layout used for due dates in the edited document.
const DueLayout = "2006-01-02 15:04"

// ErrInvalidDue is returned when the due field cannot be parsed.
var ErrInvalidDue = errors.New("invalid due date")

// TaskData is rendered into the document shown in the editor.
type TaskData struct {
	// IsUpdate is true when editing an existing task.
	IsUpdate bool
	ID       string

	Title       string
	Priority    string
	Status      string
	Category    string
	Tags        []string
	Due         string
	Repeat      string
	Description string
}

// DefaultCreateData returns the document for a new task.
func DefaultCreateData(title string) TaskData {
	return TaskData{
		Title:    title,
		Priority: string(task.DefaultPriority),
		Tags:     []string{},
		Repeat:   string(task.RepeatNone),
	}
}

// DataFromTask returns the document for editing an existing task. The due
// date is shown in loc.
func DataFromTask(t task.Task, loc *time.Location) TaskData {
	data := TaskData{
		IsUpdate:    true,
		ID:          t.ID,
		Title:       t.Title,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Category:    t.Category,
		Tags:        append([]string{}, t.Tags...),
		Repeat:      string(t.Repeat),
		Description: t.Description,
	}
	if t.DueDate != nil {
		data.Due = t.DueDate.In(loc).Format(DueLayout)
	}
	return data
}

var taskTemplate = template.Must(template.New("task").Funcs(template.FuncMap{
	"quote": func(s string) string { return fmt.Sprintf("%q", s) },
	"joinEnum": func(values []string) string {
		return strings.Join(values, ", ")
	},
}).Parse(`title = {{ quote .Title }}
priority = {{ quote .Priority }} # {{ joinEnum .Priorities }}
{{- if .IsUpdate }}
status = {{ quote .Status }} # {{ joinEnum .Statuses }}
{{- end }}
category = {{ quote .Category }}
tags = [{{ range $i, $tag := .Tags }}{{ if $i }}, {{ end }}{{ quote $tag }}{{ end }}]
due = {{ quote .Due }} # YYYY-MM-DD or YYYY-MM-DD HH:MM, empty for none
repeat = {{ quote .Repeat }} # {{ joinEnum .Repeats }}
---
{{ .Description }}
`))

type templateData struct {
	TaskData
	Priorities []string
	Statuses   []string
	Repeats    []string
}

// RenderTaskTOML renders data as the editable document.
func RenderTaskTOML(data TaskData) (string, error) {
	var buf bytes.Buffer
	err := taskTemplate.Execute(&buf, templateData{
		TaskData:   data,
		Priorities: enumStrings(task.ValidPriorities()),
		Statuses:   enumStrings(task.ValidStatuses()),
		Repeats:    enumStrings(task.ValidRepeatRules()),
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// ParsedTask is the validated result of an editing session.
type ParsedTask struct {
	Title    string   `toml:"title"`
	Priority string   `toml:"priority"`
	Status   *string  `toml:"status"`
	Category string   `toml:"category"`
	Tags     []string `toml:"tags"`
	Due      string   `toml:"due"`
	Repeat   string   `toml:"repeat"`

	Description string `toml:"-"`

	// DueDate is Due parsed in the location passed to ParseTaskTOML.
	DueDate *time.Time `toml:"-"`
}

// ParseTaskTOML parses and validates an edited document. Due dates without
// a zone are read in loc.
func ParseTaskTOML(content string, loc *time.Location) (*ParsedTask, error) {
	frontmatter, body := splitFrontmatter(content)

	var parsed ParsedTask
	if _, err := toml.Decode(frontmatter, &parsed); err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	parsed.Title = strings.TrimSpace(parsed.Title)
	parsed.Category = strings.TrimSpace(parsed.Category)
	parsed.Description = strings.TrimRight(strings.TrimLeft(body, "\n"), "\n")

	if err := task.ValidateTitle(parsed.Title); err != nil {
		return nil, err
	}
	if parsed.Priority == "" {
		parsed.Priority = string(task.DefaultPriority)
	}
	priority, err := task.ParsePriorityInput(parsed.Priority)
	if err != nil {
		return nil, err
	}
	parsed.Priority = string(priority)
	if parsed.Status != nil {
		status, err := task.ParseStatusInput(*parsed.Status)
		if err != nil {
			return nil, err
		}
		normalized := string(status)
		parsed.Status = &normalized
	}
	if parsed.Repeat == "" {
		parsed.Repeat = string(task.RepeatNone)
	}
	rule, err := task.ParseRepeatRuleInput(parsed.Repeat)
	if err != nil {
		return nil, err
	}
	parsed.Repeat = string(rule)

	if due := strings.TrimSpace(parsed.Due); due != "" {
		at, err := parseDue(due, loc)
		if err != nil {
			return nil, err
		}
		parsed.DueDate = &at
	}
	return &parsed, nil
}

func parseDue(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{DueLayout, time.DateOnly} {
		if at, err := time.ParseInLocation(layout, value, loc); err == nil {
			return at, nil
		}
	}
	return time.Time{}, validation.FormatInvalidValueError(ErrInvalidDue, value, []string{DueLayout, time.DateOnly})
}

func splitFrontmatter(content string) (string, string) {
	content = strings.TrimLeft(content, "\n")
	if content == "" {
		return "", ""
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			return strings.Join(lines[:i], "\n"), strings.Join(lines[i+1:], "\n")
		}
	}
	return content, ""
}

func createTaskTempFile() (*os.File, error) {
	return os.CreateTemp("", "tm-task-*.md")
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, string(value))
	}
	return out
}

// EditTask opens the editor on data and returns the parsed result.
func EditTask(data TaskData, loc *time.Location) (*ParsedTask, error) {
	content, err := RenderTaskTOML(data)
	if err != nil {
		return nil, err
	}

	tmpfile, err := createTaskTempFile()
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpfile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpfile.WriteString(content); err != nil {
		tmpfile.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpfile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := Edit(tmpPath); err != nil {
		return nil, err
	}

	edited, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read edited file: %w", err)
	}
	return ParseTaskTOML(string(edited), loc)
}

// ToCreateOptions converts the parsed document to task.CreateOptions.
func (p *ParsedTask) ToCreateOptions() task.CreateOptions {
	return task.CreateOptions{
		Description: p.Description,
		Priority:    task.Priority(p.Priority),
		DueDate:     p.DueDate,
		Tags:        p.Tags,
		Category:    p.Category,
		Repeat:      task.RepeatRule(p.Repeat),
	}
}

// ToUpdateOptions converts the parsed document to task.UpdateOptions.
// Every field is written back; an empty due field clears the due date.
func (p *ParsedTask) ToUpdateOptions() task.UpdateOptions {
	priority := task.Priority(p.Priority)
	repeat := task.RepeatRule(p.Repeat)
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	opts := task.UpdateOptions{
		Title:       &p.Title,
		Description: &p.Description,
		Priority:    &priority,
		Category:    &p.Category,
		Tags:        &tags,
		Repeat:      &repeat,
	}
	if p.DueDate != nil {
		opts.DueDate = p.DueDate
	} else {
		opts.ClearDueDate = true
	}
	if p.Status != nil {
		status := task.Status(*p.Status)
		opts.Status = &status
	}
	return opts
}
