package filter

import (
	"reflect"
	"testing"
	"time"

	"github.com/amonks/taskmirror/task"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func sampleTasks() []task.Task {
	return []task.Task{
		{ID: "1", Title: "Write report", Description: "quarterly numbers", Status: task.StatusPending, Priority: task.PriorityHigh, Category: "Work", Tags: []string{"office"}},
		{ID: "2", Title: "Buy groceries", Status: task.StatusPending, Priority: task.PriorityMedium, Category: "Home", Tags: []string{"errand"}},
		{ID: "3", Title: "Call plumber", Description: "kitchen sink at WORK flat", Status: task.StatusInProgress, Priority: task.PriorityHigh, Category: "Home"},
		{ID: "4", Title: "Ship release", Status: task.StatusCompleted, Priority: task.PriorityUrgent, Category: "Work", Tags: []string{"Work"}},
		{ID: "5", Title: "Renew passport", Status: task.StatusCancelled, Priority: task.PriorityLow},
	}
}

func ids(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []string
	}{
		{"zero spec", Spec{}, []string{"1", "2", "3", "4", "5"}},
		{"status", Spec{Status: task.StatusPending}, []string{"1", "2"}},
		{"priority", Spec{Priority: task.PriorityHigh}, []string{"1", "3"}},
		{"category", Spec{Category: "Home"}, []string{"2", "3"}},
		{"search title", Spec{Search: "groceries"}, []string{"2"}},
		{"search description", Spec{Search: "sink"}, []string{"3"}},
		{"search tag", Spec{Search: "errand"}, []string{"2"}},
		{"search any field", Spec{Search: "work"}, []string{"3", "4"}},
		{"combined", Spec{Status: task.StatusPending, Priority: task.PriorityHigh}, []string{"1"}},
		{"no match", Spec{Search: "nothing like this"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(sampleTasks(), tt.spec))
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Apply(%+v) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestApplyIsPure(t *testing.T) {
	tasks := sampleTasks()
	before := sampleTasks()
	spec := Spec{Status: task.StatusPending, Search: "o"}

	first := Apply(tasks, spec)
	second := Apply(tasks, spec)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %v and %v", ids(first), ids(second))
	}
	if !reflect.DeepEqual(tasks, before) {
		t.Fatal("expected input to be unmodified")
	}
}

func TestApplyComposesAsIntersection(t *testing.T) {
	tasks := sampleTasks()
	for _, status := range task.ValidStatuses() {
		for _, priority := range task.ValidPriorities() {
			both := ids(Apply(tasks, Spec{Status: status, Priority: priority}))

			byPriority := make(map[string]bool)
			for _, item := range Apply(tasks, Spec{Priority: priority}) {
				byPriority[item.ID] = true
			}
			intersection := []string{}
			for _, item := range Apply(tasks, Spec{Status: status}) {
				if byPriority[item.ID] {
					intersection = append(intersection, item.ID)
				}
			}

			if !reflect.DeepEqual(both, intersection) {
				t.Fatalf("status=%s priority=%s: got %v, want %v", status, priority, both, intersection)
			}
		}
	}
}

func TestSearchIgnoresCase(t *testing.T) {
	tasks := sampleTasks()
	upper := Apply(tasks, Spec{Search: "WORK"})
	lower := Apply(tasks, Spec{Search: "work"})
	if !reflect.DeepEqual(upper, lower) {
		t.Fatalf("expected case-insensitive search, got %v and %v", ids(upper), ids(lower))
	}
}

func TestSignature(t *testing.T) {
	a := Spec{Status: task.StatusPending, Search: "Milk"}
	b := Spec{Status: task.StatusPending, Search: "milk"}
	if a.Signature() != b.Signature() {
		t.Fatalf("expected search case to be ignored: %q vs %q", a.Signature(), b.Signature())
	}
	c := Spec{Status: task.StatusPending, Category: "milk"}
	if a.Signature() == c.Signature() {
		t.Fatal("expected distinct fields to give distinct signatures")
	}
}

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec("in-progress", "HIGH", " Work ", "report")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Spec{Status: task.StatusInProgress, Priority: task.PriorityHigh, Category: "Work", Search: "report"}
	if spec != want {
		t.Fatalf("expected %+v, got %+v", want, spec)
	}

	if _, err := ParseSpec("someday", "", "", ""); err == nil {
		t.Fatal("expected invalid status to fail")
	}
	if _, err := ParseSpec("", "extreme", "", ""); err == nil {
		t.Fatal("expected invalid priority to fail")
	}
}
