package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amonks/taskmirror/cache"
	"github.com/amonks/taskmirror/remote"
	"github.com/amonks/taskmirror/task"
)

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	remote.Store

	mu   sync.Mutex
	subs []*fakeSub
	err  error
}

type fakeSub struct {
	query remote.Query
	ch    chan remote.Event

	mu        sync.Mutex
	cancelled bool
}

func (s *fakeSub) Events() <-chan remote.Event { return s.ch }

// Cancel leaves the channel open, so tests can push after cancellation the
// way an in-flight delivery would.
func (s *fakeSub) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

func (s *fakeSub) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (f *fakeStore) Query(ctx context.Context, q remote.Query) (remote.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sub := &fakeSub{query: q, ch: make(chan remote.Event, 16)}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeStore) sub(t *testing.T, i int) *fakeSub {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.subs) {
		t.Fatalf("expected at least %d queries, got %d", i+1, len(f.subs))
	}
	return f.subs[i]
}

func (f *fakeStore) queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func newTestManager(t *testing.T) (*Manager, *fakeStore) {
	t.Helper()
	store := &fakeStore{}
	m := NewManager(store, Options{})
	t.Cleanup(m.Close)
	return m, store
}

func record(t *testing.T, id, title string, updated time.Time) remote.Record {
	t.Helper()
	item, err := task.New("u1", title, task.CreateOptions{}, updated)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return remote.Record{ID: id, Data: task.Encode(item)}
}

func nextEvent(t *testing.T, s *Stream) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("stream closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for stream event")
	}
	return Event{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func ids(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestSubscribeDeliversSortedSnapshot(t *testing.T) {
	m, store := newTestManager(t)

	stream, err := m.Subscribe(context.Background(), "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !stream.Live() {
		t.Fatal("expected live stream on cache miss")
	}

	sub := store.sub(t, 0)
	if got := sub.query.Predicates[0]; got.Field != task.FieldUserID || got.Value != "u1" {
		t.Fatalf("expected user predicate, got %+v", got)
	}
	sub.ch <- remote.Event{Records: []remote.Record{
		record(t, "a", "oldest", testNow.Add(-2*time.Hour)),
		record(t, "b", "newest", testNow),
		record(t, "c", "middle", testNow.Add(-time.Hour)),
	}}

	ev := nextEvent(t, stream)
	if ev.Err != nil {
		t.Fatalf("unexpected error: %v", ev.Err)
	}
	if got := ids(ev.Tasks); len(got) != 3 || got[0] != "b" || got[1] != "c" || got[2] != "a" {
		t.Fatalf("expected updatedAt descending order, got %v", got)
	}

	cached, ok := m.Cache().Get(cache.Key{UserID: "u1"})
	if !ok || len(cached) != 3 {
		t.Fatalf("expected push to land in cache, got %v %v", cached, ok)
	}
}

func TestSubscribeReturnsFreshCacheWithoutQuery(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	stream, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	store.sub(t, 0).ch <- remote.Event{Records: []remote.Record{record(t, "a", "one", testNow)}}
	nextEvent(t, stream)

	again, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if again.Live() {
		t.Fatal("expected cached stream")
	}
	ev := nextEvent(t, again)
	if !ev.Cached || len(ev.Tasks) != 1 {
		t.Fatalf("expected cached snapshot, got %+v", ev)
	}
	if _, ok := <-again.Events(); ok {
		t.Fatal("expected cached stream to be closed after its snapshot")
	}
	if store.queries() != 1 {
		t.Fatalf("expected no new query, got %d", store.queries())
	}
	if !m.Active(cache.Key{UserID: "u1"}) {
		t.Fatal("expected live subscription to keep running")
	}
}

func TestSubscribeTwiceKeepsOneSubscription(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	first, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	second, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if !store.sub(t, 0).isCancelled() {
		t.Fatal("expected first remote subscription to be cancelled")
	}
	if store.sub(t, 1).isCancelled() {
		t.Fatal("expected second remote subscription to stay open")
	}
	if _, ok := <-first.Events(); ok {
		t.Fatal("expected replaced stream to be closed")
	}
	if stats := m.Stats(); stats.Active != 1 || stats.Opened != 2 {
		t.Fatalf("expected 1 active of 2 opened, got %+v", stats)
	}

	store.sub(t, 1).ch <- remote.Event{Records: []remote.Record{record(t, "a", "one", testNow)}}
	if ev := nextEvent(t, second); len(ev.Tasks) != 1 {
		t.Fatalf("expected snapshot on current stream, got %+v", ev)
	}
}

func TestStalePushIsDropped(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Subscribe(ctx, "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	current, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	store.sub(t, 0).ch <- remote.Event{Records: []remote.Record{record(t, "stale", "stale", testNow)}}
	waitFor(t, "stale drop", func() bool { return m.Stats().StaleDropped == 1 })

	if _, ok := m.Cache().Get(cache.Key{UserID: "u1"}); ok {
		t.Fatal("expected stale push to leave cache untouched")
	}
	select {
	case ev := <-current.Events():
		t.Fatalf("expected no downstream event, got %+v", ev)
	default:
	}

	store.sub(t, 1).ch <- remote.Event{Records: []remote.Record{record(t, "fresh", "fresh", testNow)}}
	if ev := nextEvent(t, current); ev.Tasks[0].ID != "fresh" {
		t.Fatalf("expected current push, got %v", ids(ev.Tasks))
	}
}

func TestDeliverRejectsOldGeneration(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Subscribe(ctx, "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := m.Subscribe(ctx, "u1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	key := cache.Key{UserID: "u1"}
	if m.deliver(key, 1, []remote.Record{record(t, "a", "a", testNow)}) {
		t.Fatal("expected generation 1 push to be rejected")
	}
	if !m.deliver(key, 2, []remote.Record{record(t, "b", "b", testNow)}) {
		t.Fatal("expected generation 2 push to be applied")
	}
	if got, _ := m.Cache().Get(key); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected current snapshot in cache, got %v", got)
	}
}

func TestUnparseableRecordsAreDropped(t *testing.T) {
	m, store := newTestManager(t)

	stream, err := m.Subscribe(context.Background(), "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bad := record(t, "bad", "bad", testNow)
	bad.Data[task.FieldTitle] = []any{"not", "a", "title"}
	missing := record(t, "missing", "missing", testNow)
	delete(missing.Data, task.FieldUpdatedAt)

	store.sub(t, 0).ch <- remote.Event{Records: []remote.Record{
		record(t, "good", "good", testNow),
		bad,
		missing,
	}}

	ev := nextEvent(t, stream)
	if got := ids(ev.Tasks); len(got) != 1 || got[0] != "good" {
		t.Fatalf("expected only the parseable record, got %v", got)
	}
	if stats := m.Stats(); stats.ParseDropped != 2 {
		t.Fatalf("expected 2 parse drops, got %+v", stats)
	}
}

func TestSubscriptionErrorIsForwardedAndRetryable(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	stream, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	store.sub(t, 0).ch <- remote.Event{Records: []remote.Record{record(t, "a", "a", testNow)}}
	nextEvent(t, stream)

	boom := errors.New("permission denied")
	store.sub(t, 0).ch <- remote.Event{Err: boom}

	ev := nextEvent(t, stream)
	var subErr *Error
	if !errors.As(ev.Err, &subErr) || !errors.Is(ev.Err, boom) {
		t.Fatalf("expected subscription error wrapping %v, got %v", boom, ev.Err)
	}
	if subErr.Key.UserID != "u1" {
		t.Fatalf("expected key in error, got %+v", subErr.Key)
	}
	if _, ok := <-stream.Events(); ok {
		t.Fatal("expected stream closed after error")
	}
	waitFor(t, "failed subscription removal", func() bool { return !m.Active(cache.Key{UserID: "u1"}) })

	retry, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if !retry.Live() {
		t.Fatal("expected a failed key to reopen instead of serving its cached snapshot")
	}
	store.sub(t, 1).ch <- remote.Event{Records: []remote.Record{record(t, "a", "a", testNow)}}
	if ev := nextEvent(t, retry); ev.Err != nil || len(ev.Tasks) != 1 {
		t.Fatalf("expected retry to deliver, got %+v", ev)
	}
}

func TestQueryOpenFailure(t *testing.T) {
	m, store := newTestManager(t)
	store.err = errors.New("offline")

	_, err := m.Subscribe(context.Background(), "u1")
	var subErr *Error
	if !errors.As(err, &subErr) || !errors.Is(err, store.err) {
		t.Fatalf("expected subscription error, got %v", err)
	}
	if m.Active(cache.Key{UserID: "u1"}) {
		t.Fatal("expected no bookkeeping after failed open")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	m, store := newTestManager(t)

	stream, err := m.Subscribe(context.Background(), "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	m.Unsubscribe("u1")
	m.Unsubscribe("u1")
	m.Unsubscribe("nobody")

	if !store.sub(t, 0).isCancelled() {
		t.Fatal("expected remote subscription cancelled")
	}
	if _, ok := <-stream.Events(); ok {
		t.Fatal("expected stream closed")
	}

	store.sub(t, 0).ch <- remote.Event{Records: []remote.Record{record(t, "late", "late", testNow)}}
	waitFor(t, "late push drop", func() bool { return m.Stats().StaleDropped == 1 })
	if _, ok := m.Cache().Get(cache.Key{UserID: "u1"}); ok {
		t.Fatal("expected late push after unsubscribe to be discarded")
	}
}

func TestSubscribeQueryUsesSignatureKey(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	open := []remote.Predicate{remote.Where(task.FieldStatus, remote.OpIn, []task.Status{task.StatusPending, task.StatusInProgress})}
	filtered, err := m.SubscribeQuery(ctx, "u1", open)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	all, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if filtered.Key() == all.Key() {
		t.Fatal("expected distinct keys for distinct predicates")
	}
	if store.sub(t, 0).isCancelled() {
		t.Fatal("expected different keys to coexist")
	}
	if got := len(store.sub(t, 0).query.Predicates); got != 2 {
		t.Fatalf("expected user predicate plus filter, got %d", got)
	}
	if m.Stats().Active != 2 {
		t.Fatalf("expected two active subscriptions, got %+v", m.Stats())
	}

	m.Unsubscribe("u1")
	if m.Stats().Active != 0 {
		t.Fatalf("expected unsubscribe to cancel every key for the user, got %+v", m.Stats())
	}
}

func TestClosedManager(t *testing.T) {
	m, _ := newTestManager(t)
	m.Close()
	if _, err := m.Subscribe(context.Background(), "u1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := NewManager(&fakeStore{}, Options{}).Subscribe(context.Background(), ""); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("expected ErrMissingUserID, got %v", err)
	}
}

func TestManagerWithMemoryStore(t *testing.T) {
	store := remote.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	m := NewManager(store, Options{})
	t.Cleanup(m.Close)
	ctx := context.Background()

	stream, err := m.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if ev := nextEvent(t, stream); len(ev.Tasks) != 0 {
		t.Fatalf("expected empty initial snapshot, got %v", ids(ev.Tasks))
	}

	item, err := task.New("u1", "Water plants", task.CreateOptions{}, testNow)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	id, err := store.Create(ctx, remote.TasksCollection, task.Encode(item))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ev := nextEvent(t, stream)
	if len(ev.Tasks) != 1 || ev.Tasks[0].ID != id || ev.Tasks[0].Title != "Water plants" {
		t.Fatalf("expected created task in snapshot, got %+v", ev.Tasks)
	}
}
