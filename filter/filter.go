// Package filter computes filtered views over a task snapshot.
package filter

import (
	"fmt"
	"strings"

	internalstrings "github.com/amonks/taskmirror/internal/strings"
	"github.com/amonks/taskmirror/task"
)

// Spec selects tasks. Zero-valued fields match everything.
type Spec struct {
	Status   task.Status
	Priority task.Priority
	Category string
	Search   string
}

// IsZero reports whether the spec matches every task.
func (s Spec) IsZero() bool {
	return s.Status == "" && s.Priority == "" && s.Category == "" && s.Search == ""
}

// Signature returns a canonical string for the spec. Search is compared
// case-insensitively, so it is lowercased here.
func (s Spec) Signature() string {
	return fmt.Sprintf("status=%s&priority=%s&category=%q&search=%q",
		s.Status, s.Priority, s.Category, internalstrings.NormalizeLower(s.Search))
}

func (s Spec) key() Spec {
	s.Search = internalstrings.NormalizeLower(s.Search)
	return s
}

// Apply returns the tasks matching spec in their original order. The input
// is not modified.
func Apply(tasks []task.Task, spec Spec) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if Matches(t, spec) {
			out = append(out, t)
		}
	}
	return out
}

// Matches reports whether t satisfies every set field of spec.
func Matches(t task.Task, spec Spec) bool {
	if spec.Status != "" && t.Status != spec.Status {
		return false
	}
	if spec.Priority != "" && t.Priority != spec.Priority {
		return false
	}
	if spec.Category != "" && t.Category != spec.Category {
		return false
	}
	return MatchesSearch(t, spec.Search)
}

// MatchesSearch reports whether query occurs, ignoring case, in the title,
// the description, or any tag. An empty query matches.
func MatchesSearch(t task.Task, query string) bool {
	if query == "" {
		return true
	}
	if internalstrings.ContainsFold(t.Title, query) || internalstrings.ContainsFold(t.Description, query) {
		return true
	}
	for _, tag := range t.Tags {
		if internalstrings.ContainsFold(tag, query) {
			return true
		}
	}
	return false
}

// ParseSpec builds a spec from user input, validating enum values.
func ParseSpec(status, priority, category, search string) (Spec, error) {
	spec := Spec{Category: strings.TrimSpace(category), Search: search}
	if strings.TrimSpace(status) != "" {
		parsed, err := task.ParseStatusInput(status)
		if err != nil {
			return Spec{}, err
		}
		spec.Status = parsed
	}
	if strings.TrimSpace(priority) != "" {
		parsed, err := task.ParsePriorityInput(priority)
		if err != nil {
			return Spec{}, err
		}
		spec.Priority = parsed
	}
	return spec, nil
}
