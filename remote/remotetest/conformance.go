// Package remotetest holds a conformance suite shared by remote.Store
// implementations.
package remotetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amonks/taskmirror/remote"
)

// Timeout bounds how long the suite waits for a subscription event.
var Timeout = 5 * time.Second

// NewStoreFunc returns a fresh, empty store for one subtest.
type NewStoreFunc func(t *testing.T) remote.Store

// Run exercises the Store contract against stores built by newStore.
func Run(t *testing.T, newStore NewStoreFunc) {
	t.Helper()

	t.Run("create then get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, remote.TasksCollection, map[string]any{
			"userId": "u1",
			"title":  "Buy milk",
			"tags":   []any{"home"},
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		record, err := store.Get(ctx, remote.TasksCollection, id)
		require.NoError(t, err)
		require.Equal(t, id, record.ID)
		require.Equal(t, "Buy milk", record.Data["title"])
		require.Equal(t, []any{"home"}, record.Data["tags"])
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(context.Background(), remote.TasksCollection, "missing")
		require.True(t, errors.Is(err, remote.ErrNotFound), "got %v", err)
	})

	t.Run("update merges and removes nil keys", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, remote.TasksCollection, map[string]any{
			"userId":   "u1",
			"title":    "Draft",
			"category": "Work",
		})
		require.NoError(t, err)

		err = store.Update(ctx, remote.TasksCollection, id, map[string]any{
			"title":    "Final",
			"category": nil,
		})
		require.NoError(t, err)

		record, err := store.Get(ctx, remote.TasksCollection, id)
		require.NoError(t, err)
		require.Equal(t, "Final", record.Data["title"])
		require.Equal(t, "u1", record.Data["userId"])
		_, hasCategory := record.Data["category"]
		require.False(t, hasCategory)
	})

	t.Run("update missing", func(t *testing.T) {
		store := newStore(t)
		err := store.Update(context.Background(), remote.TasksCollection, "missing", map[string]any{"title": "x"})
		require.True(t, errors.Is(err, remote.ErrNotFound), "got %v", err)
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		id, err := store.Create(ctx, remote.TasksCollection, map[string]any{"userId": "u1", "title": "x"})
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, remote.TasksCollection, id))

		_, err = store.Get(ctx, remote.TasksCollection, id)
		require.True(t, errors.Is(err, remote.ErrNotFound), "got %v", err)

		err = store.Delete(ctx, remote.TasksCollection, id)
		require.True(t, errors.Is(err, remote.ErrNotFound), "got %v", err)
	})

	t.Run("query emits initial snapshot", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, remote.TasksCollection, map[string]any{"userId": "u1", "title": "mine"})
		require.NoError(t, err)
		_, err = store.Create(ctx, remote.TasksCollection, map[string]any{"userId": "u2", "title": "theirs"})
		require.NoError(t, err)

		sub, err := store.Query(ctx, remote.Query{
			Collection: remote.TasksCollection,
			Predicates: []remote.Predicate{remote.Where("userId", remote.OpEq, "u1")},
		})
		require.NoError(t, err)
		defer sub.Cancel()

		records := Next(t, sub)
		require.Len(t, records, 1)
		require.Equal(t, "mine", records[0].Data["title"])
	})

	t.Run("query observes writes", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		sub, err := store.Query(ctx, remote.Query{
			Collection: remote.TasksCollection,
			Predicates: []remote.Predicate{remote.Where("userId", remote.OpEq, "u1")},
		})
		require.NoError(t, err)
		defer sub.Cancel()
		require.Empty(t, Next(t, sub))

		id, err := store.Create(ctx, remote.TasksCollection, map[string]any{"userId": "u1", "title": "one"})
		require.NoError(t, err)
		records := NextMatching(t, sub, func(records []remote.Record) bool { return len(records) == 1 })
		require.Equal(t, id, records[0].ID)

		require.NoError(t, store.Update(ctx, remote.TasksCollection, id, map[string]any{"title": "uno"}))
		NextMatching(t, sub, func(records []remote.Record) bool {
			return len(records) == 1 && records[0].Data["title"] == "uno"
		})

		require.NoError(t, store.Delete(ctx, remote.TasksCollection, id))
		NextMatching(t, sub, func(records []remote.Record) bool { return len(records) == 0 })
	})

	t.Run("predicates", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		docs := []map[string]any{
			{"userId": "u1", "title": "a", "status": "pending", "progress": 0.0, "tags": []any{"home"}},
			{"userId": "u1", "title": "b", "status": "in_progress", "progress": 0.5, "tags": []any{"work"}},
			{"userId": "u1", "title": "c", "status": "completed", "progress": 1.0, "tags": []any{"work", "home"}},
		}
		for _, doc := range docs {
			_, err := store.Create(ctx, remote.TasksCollection, doc)
			require.NoError(t, err)
		}

		cases := []struct {
			name  string
			pred  remote.Predicate
			wants []string
		}{
			{"in", remote.Where("status", remote.OpIn, []string{"pending", "in_progress"}), []string{"a", "b"}},
			{"ne", remote.Where("status", remote.OpNe, "completed"), []string{"a", "b"}},
			{"gt", remote.Where("progress", remote.OpGt, 0.25), []string{"b", "c"}},
			{"le", remote.Where("progress", remote.OpLe, 0.5), []string{"a", "b"}},
			{"contains", remote.Where("tags", remote.OpContains, "home"), []string{"a", "c"}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				sub, err := store.Query(ctx, remote.Query{
					Collection: remote.TasksCollection,
					Predicates: []remote.Predicate{remote.Where("userId", remote.OpEq, "u1"), tc.pred},
				})
				require.NoError(t, err)
				defer sub.Cancel()

				records := Next(t, sub)
				titles := make([]string, 0, len(records))
				for _, record := range records {
					titles = append(titles, record.Data["title"].(string))
				}
				require.ElementsMatch(t, tc.wants, titles)
			})
		}
	})

	t.Run("cancel closes events", func(t *testing.T) {
		store := newStore(t)
		sub, err := store.Query(context.Background(), remote.Query{Collection: remote.TasksCollection})
		require.NoError(t, err)
		sub.Cancel()
		sub.Cancel()

		deadline := time.After(Timeout)
		for {
			select {
			case _, ok := <-sub.Events():
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("events channel not closed after cancel")
			}
		}
	})

	t.Run("invalid query", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Query(context.Background(), remote.Query{})
		require.True(t, errors.Is(err, remote.ErrInvalidQuery), "got %v", err)
	})
}

// Next waits for the next result set on sub.
func Next(t *testing.T, sub remote.Subscription) []remote.Record {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed")
		}
		require.NoError(t, ev.Err)
		return ev.Records
	case <-time.After(Timeout):
		t.Fatal("timed out waiting for subscription event")
	}
	return nil
}

// NextMatching waits for a result set satisfying match, skipping others.
func NextMatching(t *testing.T, sub remote.Subscription, match func([]remote.Record) bool) []remote.Record {
	t.Helper()
	deadline := time.After(Timeout)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatal("subscription closed")
			}
			require.NoError(t, ev.Err)
			if match(ev.Records) {
				return ev.Records
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching subscription event")
		}
	}
}
