package cache

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/amonks/taskmirror/task"
)

func newTestCache(t *testing.T) (*Cache, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC))
	return New(Options{Clock: mock}), mock
}

func snapshot(ids ...string) []task.Task {
	tasks := make([]task.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, task.Task{ID: id, UserID: "u1", Title: id})
	}
	return tasks
}

func TestGetRespectsTTL(t *testing.T) {
	tests := []struct {
		name  string
		age   time.Duration
		fresh bool
	}{
		{"just written", 0, true},
		{"one second before expiry", DefaultTTL - time.Second, true},
		{"one nanosecond before expiry", DefaultTTL - time.Nanosecond, true},
		{"at expiry", DefaultTTL, false},
		{"after expiry", DefaultTTL + time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newTestCache(t)
			key := Key{UserID: "u1"}
			c.Put(key, snapshot("a", "b"))

			mock.Add(tt.age)
			got, ok := c.Get(key)
			if ok != tt.fresh {
				t.Fatalf("Get after %s: ok = %v, want %v", tt.age, ok, tt.fresh)
			}
			if tt.fresh && len(got) != 2 {
				t.Fatalf("expected 2 tasks, got %d", len(got))
			}
			if !tt.fresh && c.Len() != 0 {
				t.Fatalf("expected stale entry to be evicted, have %d entries", c.Len())
			}
		})
	}
}

func TestPutReplacesAndResetsAge(t *testing.T) {
	c, mock := newTestCache(t)
	key := Key{UserID: "u1"}

	c.Put(key, snapshot("a", "b", "c"))
	mock.Add(4 * time.Minute)
	c.Put(key, snapshot("c", "a"))
	mock.Add(4 * time.Minute)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected replaced entry to still be fresh")
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "a" {
		t.Fatalf("expected wholesale replacement in given order, got %+v", got)
	}
}

func TestPutCopiesInput(t *testing.T) {
	c, _ := newTestCache(t)
	key := Key{UserID: "u1"}
	tasks := snapshot("a")
	c.Put(key, tasks)
	tasks[0].ID = "mutated"

	got, _ := c.Get(key)
	if got[0].ID != "a" {
		t.Fatalf("expected cache to hold its own slice, got %q", got[0].ID)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	c, _ := newTestCache(t)
	c.Put(Key{UserID: "u1"}, snapshot("a"))
	c.Put(Key{UserID: "u1", Signature: "status=pending"}, snapshot("b"))
	c.Put(Key{UserID: "u2"}, snapshot("c"))

	if got, _ := c.Get(Key{UserID: "u1", Signature: "status=pending"}); got[0].ID != "b" {
		t.Fatalf("expected signature-scoped entry, got %+v", got)
	}
	if removed := c.DeleteUser("u1"); removed != 2 {
		t.Fatalf("expected 2 entries removed, got %d", removed)
	}
	if _, ok := c.Get(Key{UserID: "u2"}); !ok {
		t.Fatal("expected other user's entry to survive")
	}
}

func TestEvictExpired(t *testing.T) {
	c, mock := newTestCache(t)
	c.Put(Key{UserID: "old"}, snapshot("a"))
	mock.Add(3 * time.Minute)
	c.Put(Key{UserID: "new"}, snapshot("b"))
	mock.Add(3 * time.Minute)

	if removed := c.EvictExpired(); removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Len())
	}
	if _, ok := c.Get(Key{UserID: "new"}); !ok {
		t.Fatal("expected fresh entry to survive eviction")
	}
}

func TestRunEvictsPeriodically(t *testing.T) {
	c, mock := newTestCache(t)
	c.Put(Key{UserID: "u1"}, snapshot("a"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Minute)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("janitor did not evict the expired entry")
		}
		mock.Add(time.Minute)
		time.Sleep(time.Millisecond)
	}

	cancel()
	<-done
}
