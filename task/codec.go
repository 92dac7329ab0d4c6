package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/amonks/taskmirror/remote"
)

// RecordVersion is the schema version written by Encode.
//
// Version 0 records predate the field and store enums with their
// qualified names ("TaskStatus.inProgress"); Decode reads both.
const RecordVersion = 1

// TimeLayout is the layout used for stored timestamps.
const TimeLayout = remote.TimeLayout

// Document field names.
const (
	FieldVersion     = "schemaVersion"
	FieldUserID      = "userId"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPriority    = "priority"
	FieldStatus      = "status"
	FieldDueDate     = "dueDate"
	FieldTags        = "tags"
	FieldCategory    = "category"
	FieldProgress    = "progress"
	FieldSubtasks    = "subtasks"
	FieldAttachments = "attachments"
	FieldReminder    = "reminder"
	FieldRepeat      = "repeat"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
	FieldCompletedAt = "completedAt"
)

var (
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrWrongType is returned when a field has an unexpected shape.
	ErrWrongType = errors.New("unexpected field type")

	// ErrUnsupportedVersion is returned for records written by a newer schema.
	ErrUnsupportedVersion = errors.New("unsupported record version")
)

// ParseError describes a stored record that could not be decoded.
type ParseError struct {
	RecordID string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse task %s: %v", e.RecordID, e.Err)
	}
	return fmt.Sprintf("parse task %s: field %s: %v", e.RecordID, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FormatTime renders a timestamp in TimeLayout.
func FormatTime(value time.Time) string {
	return remote.FormatTime(value)
}

// DecodeRecord decodes a store record.
func DecodeRecord(record remote.Record) (Task, error) {
	return Decode(record.ID, record.Data)
}

// Encode converts a task into a store document. The ID is not included;
// stores key documents by id separately.
func Encode(t Task) map[string]any {
	doc := map[string]any{
		FieldVersion:     RecordVersion,
		FieldUserID:      t.UserID,
		FieldTitle:       t.Title,
		FieldDescription: t.Description,
		FieldPriority:    string(t.Priority),
		FieldStatus:      string(t.Status),
		FieldTags:        encodeStrings(t.Tags),
		FieldCategory:    t.Category,
		FieldProgress:    t.Progress,
		FieldSubtasks:    encodeSubtasks(t.Subtasks),
		FieldAttachments: encodeAttachments(t.Attachments),
		FieldRepeat:      string(t.Repeat),
		FieldCreatedAt:   FormatTime(t.CreatedAt),
		FieldUpdatedAt:   FormatTime(t.UpdatedAt),
	}
	if t.DueDate != nil {
		doc[FieldDueDate] = FormatTime(*t.DueDate)
	}
	if t.CompletedAt != nil {
		doc[FieldCompletedAt] = FormatTime(*t.CompletedAt)
	}
	if t.Reminder != nil {
		reminder := map[string]any{
			"enabled": t.Reminder.Enabled,
			"type":    string(t.Reminder.Type),
		}
		if t.Reminder.At != nil {
			reminder["at"] = FormatTime(*t.Reminder.At)
		}
		doc[FieldReminder] = reminder
	}
	return doc
}

func encodeStrings(values []string) []any {
	out := make([]any, 0, len(values))
	for _, value := range values {
		out = append(out, value)
	}
	return out
}

func encodeSubtasks(subtasks []Subtask) []any {
	out := make([]any, 0, len(subtasks))
	for _, sub := range subtasks {
		item := map[string]any{
			"id":        sub.ID,
			"title":     sub.Title,
			"completed": sub.Completed,
			"createdAt": FormatTime(sub.CreatedAt),
		}
		if sub.CompletedAt != nil {
			item["completedAt"] = FormatTime(*sub.CompletedAt)
		}
		out = append(out, item)
	}
	return out
}

func encodeAttachments(attachments []Attachment) []any {
	out := make([]any, 0, len(attachments))
	for _, att := range attachments {
		out = append(out, map[string]any{
			"id":          att.ID,
			"name":        att.Name,
			"url":         att.URL,
			"contentType": att.ContentType,
			"size":        att.Size,
			"uploadedAt":  FormatTime(att.UploadedAt),
		})
	}
	return out
}

// Decode converts a store document into a task.
//
// Required fields (userId, title, status, priority, createdAt, updatedAt)
// must be present with the right shape. Unknown status and priority values
// decode to DefaultStatus and DefaultPriority. Optional fields with the
// wrong shape fall back to their zero value.
func Decode(id string, doc map[string]any) (Task, error) {
	fail := func(field string, err error) (Task, error) {
		return Task{}, &ParseError{RecordID: id, Field: field, Err: err}
	}
	if doc == nil {
		return fail("", fmt.Errorf("%w: document is nil", ErrWrongType))
	}

	if raw, ok := doc[FieldVersion]; ok {
		version, ok := numberValue(raw)
		if !ok {
			return fail(FieldVersion, ErrWrongType)
		}
		if int(version) > RecordVersion {
			return fail(FieldVersion, fmt.Errorf("%w: %v", ErrUnsupportedVersion, version))
		}
	}

	userID, err := requiredString(doc, FieldUserID)
	if err != nil {
		return fail(FieldUserID, err)
	}
	title, err := requiredString(doc, FieldTitle)
	if err != nil {
		return fail(FieldTitle, err)
	}
	statusValue, err := requiredString(doc, FieldStatus)
	if err != nil {
		return fail(FieldStatus, err)
	}
	priorityValue, err := requiredString(doc, FieldPriority)
	if err != nil {
		return fail(FieldPriority, err)
	}
	createdAt, err := requiredTime(doc, FieldCreatedAt)
	if err != nil {
		return fail(FieldCreatedAt, err)
	}
	updatedAt, err := requiredTime(doc, FieldUpdatedAt)
	if err != nil {
		return fail(FieldUpdatedAt, err)
	}

	status, _ := ParseStatus(statusValue)
	priority, _ := ParsePriority(priorityValue)

	t := Task{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: optionalString(doc[FieldDescription]),
		Priority:    priority,
		Status:      status,
		DueDate:     optionalTime(doc[FieldDueDate]),
		Tags:        decodeStrings(doc[FieldTags]),
		Category:    optionalString(doc[FieldCategory]),
		Progress:    clampProgress(optionalNumber(doc[FieldProgress])),
		Subtasks:    decodeSubtasks(doc[FieldSubtasks]),
		Attachments: decodeAttachments(doc[FieldAttachments]),
		Reminder:    decodeReminder(doc[FieldReminder]),
		Repeat:      ParseRepeatRule(optionalString(doc[FieldRepeat])),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		CompletedAt: optionalTime(doc[FieldCompletedAt]),
	}
	if t.Status == StatusCompleted && t.CompletedAt == nil {
		t.CompletedAt = TimePtr(updatedAt)
	}
	if t.Status != StatusCompleted {
		t.CompletedAt = nil
	}
	return t, nil
}

func requiredString(doc map[string]any, field string) (string, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return "", ErrMissingField
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: want string, got %T", ErrWrongType, raw)
	}
	return value, nil
}

func requiredTime(doc map[string]any, field string) (time.Time, error) {
	raw, ok := doc[field]
	if !ok || raw == nil {
		return time.Time{}, ErrMissingField
	}
	value, ok := timeValue(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: want timestamp, got %T", ErrWrongType, raw)
	}
	return value, nil
}

func optionalString(raw any) string {
	value, _ := raw.(string)
	return value
}

func optionalNumber(raw any) float64 {
	value, _ := numberValue(raw)
	return value
}

func optionalBool(raw any) bool {
	value, _ := raw.(bool)
	return value
}

func optionalTime(raw any) *time.Time {
	if raw == nil {
		return nil
	}
	value, ok := timeValue(raw)
	if !ok {
		return nil
	}
	return &value
}

// timeValue accepts time.Time, layout strings, and unix milliseconds.
func timeValue(raw any) (time.Time, bool) {
	switch value := raw.(type) {
	case time.Time:
		return value, true
	case *time.Time:
		if value == nil {
			return time.Time{}, false
		}
		return *value, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	millis, ok := numberValue(raw)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(millis)), true
}

func numberValue(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return value, !math.IsNaN(value)
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		parsed, err := value.Float64()
		return parsed, err == nil
	default:
		return 0, false
	}
}

func listValue(raw any) []any {
	switch value := raw.(type) {
	case []any:
		return value
	case []string:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = item
		}
		return out
	case []map[string]any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = item
		}
		return out
	default:
		return nil
	}
}

func decodeStrings(raw any) []string {
	items := listValue(raw)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if value, ok := item.(string); ok {
			out = append(out, value)
		}
	}
	return out
}

func decodeSubtasks(raw any) []Subtask {
	items := listValue(raw)
	out := make([]Subtask, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		sub := Subtask{
			ID:          optionalString(fields["id"]),
			Title:       optionalString(fields["title"]),
			Completed:   optionalBool(fields["completed"]),
			CompletedAt: optionalTime(fields["completedAt"]),
		}
		if createdAt := optionalTime(fields["createdAt"]); createdAt != nil {
			sub.CreatedAt = *createdAt
		}
		if !sub.Completed {
			sub.CompletedAt = nil
		}
		out = append(out, sub)
	}
	return out
}

func decodeAttachments(raw any) []Attachment {
	items := listValue(raw)
	out := make([]Attachment, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		att := Attachment{
			ID:          optionalString(fields["id"]),
			Name:        optionalString(fields["name"]),
			URL:         optionalString(fields["url"]),
			ContentType: optionalString(fields["contentType"]),
			Size:        int64(optionalNumber(fields["size"])),
		}
		if uploadedAt := optionalTime(fields["uploadedAt"]); uploadedAt != nil {
			att.UploadedAt = *uploadedAt
		}
		out = append(out, att)
	}
	return out
}

func decodeReminder(raw any) *Reminder {
	fields, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	reminderType := ReminderType(optionalString(fields["type"]))
	if reminderType == "" {
		reminderType = ReminderNotification
	}
	return &Reminder{
		Enabled: optionalBool(fields["enabled"]),
		At:      optionalTime(fields["at"]),
		Type:    reminderType,
	}
}
