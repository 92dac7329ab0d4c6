package remote

import (
	"errors"
	"testing"
	"time"
)

type testStatus string

func TestSignatureIgnoresPredicateOrder(t *testing.T) {
	a := Query{Collection: "tasks", Predicates: []Predicate{
		Where("userId", OpEq, "u1"),
		Where("status", OpIn, []string{"pending", "in_progress"}),
	}}
	b := Query{Collection: "tasks", Predicates: []Predicate{
		Where("status", OpIn, []string{"in_progress", "pending"}),
		Where("userId", OpEq, "u1"),
	}}
	if a.Signature() != b.Signature() {
		t.Fatalf("signatures differ:\n%s\n%s", a.Signature(), b.Signature())
	}

	c := Query{Collection: "tasks", Predicates: []Predicate{Where("userId", OpEq, "u2")}}
	if a.Signature() == c.Signature() {
		t.Fatal("expected distinct signatures for distinct predicates")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		ok    bool
	}{
		{"valid", Query{Collection: "tasks", Predicates: []Predicate{Where("userId", OpEq, "u1")}}, true},
		{"missing collection", Query{}, false},
		{"missing field", Query{Collection: "tasks", Predicates: []Predicate{Where("", OpEq, "u1")}}, false},
		{"unknown op", Query{Collection: "tasks", Predicates: []Predicate{Where("a", Op("~"), "u1")}}, false},
		{"in without list", Query{Collection: "tasks", Predicates: []Predicate{Where("a", OpIn, "u1")}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidQuery) {
				t.Fatalf("expected ErrInvalidQuery, got %v", err)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	due := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	doc := map[string]any{
		"userId":   "u1",
		"status":   "pending",
		"progress": 0.5,
		"dueDate":  FormatTime(due),
		"tags":     []any{"home", "errand"},
		"reminder": map[string]any{"enabled": true},
	}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"eq", Where("userId", OpEq, "u1"), true},
		{"eq named string", Where("status", OpEq, testStatus("pending")), true},
		{"eq mismatch", Where("userId", OpEq, "u2"), false},
		{"ne absent field", Where("category", OpNe, "Work"), true},
		{"eq absent field", Where("category", OpEq, "Work"), false},
		{"in", Where("status", OpIn, []testStatus{"pending", "in_progress"}), true},
		{"in miss", Where("status", OpIn, []string{"completed"}), false},
		{"lt time", Where("dueDate", OpLt, due.Add(time.Hour)), true},
		{"gt time", Where("dueDate", OpGt, due.Add(time.Hour)), false},
		{"ge int", Where("progress", OpGe, 0), true},
		{"lt int", Where("progress", OpLt, 1), true},
		{"contains", Where("tags", OpContains, "errand"), true},
		{"contains miss", Where("tags", OpContains, "work"), false},
		{"nested", Where("reminder.enabled", OpEq, true), true},
		{"type mismatch", Where("progress", OpGt, "0"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(doc, []Predicate{tt.pred}); got != tt.want {
				t.Fatalf("Matches(%v) = %v, want %v", tt.pred, got, tt.want)
			}
		})
	}
}

func TestFeedConflates(t *testing.T) {
	feed := NewFeed(nil)
	feed.Send(Event{Records: []Record{{ID: "a"}}})
	feed.Send(Event{Records: []Record{{ID: "b"}}})

	ev := <-feed.Events()
	if len(ev.Records) != 1 || ev.Records[0].ID != "b" {
		t.Fatalf("expected latest result set, got %+v", ev.Records)
	}

	cancelled := 0
	feed = NewFeed(func() { cancelled++ })
	feed.Cancel()
	feed.Cancel()
	if cancelled != 1 {
		t.Fatalf("expected cancel hook once, got %d", cancelled)
	}
	if feed.Send(Event{}) {
		t.Fatal("expected send on cancelled feed to fail")
	}
}
