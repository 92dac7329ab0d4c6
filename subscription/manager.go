// Package subscription keeps at most one live remote query per cache key and
// bridges its pushes into the cache and on to a downstream stream.
package subscription

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/amonks/taskmirror/cache"
	"github.com/amonks/taskmirror/remote"
	"github.com/amonks/taskmirror/task"
)

// Options configures a Manager.
type Options struct {
	// Cache defaults to a new cache with default settings.
	Cache *cache.Cache

	// Collection defaults to remote.TasksCollection.
	Collection string

	Logger *slog.Logger
}

// Stats counts manager activity.
type Stats struct {
	Active       int
	Opened       int
	Cancelled    int
	Pushes       int
	StaleDropped int
	ParseDropped int
	Errors       int
}

// Manager owns live subscriptions, one per key.
type Manager struct {
	store      remote.Store
	cache      *cache.Cache
	collection string
	logger     *slog.Logger

	mu         sync.Mutex
	active     map[cache.Key]*active
	generation uint64
	stats      Stats
	closed     bool
}

type active struct {
	key        cache.Key
	generation uint64
	query      remote.Query
	sub        remote.Subscription
	stream     *Stream
}

// NewManager creates a manager reading from store.
func NewManager(store remote.Store, opts Options) *Manager {
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.Options{Logger: opts.Logger})
	}
	if opts.Collection == "" {
		opts.Collection = remote.TasksCollection
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:      store,
		cache:      opts.Cache,
		collection: opts.Collection,
		logger:     opts.Logger,
		active:     make(map[cache.Key]*active),
	}
}

// Cache returns the cache the manager writes to.
func (m *Manager) Cache() *cache.Cache {
	return m.cache
}

// Subscribe returns a stream of every task owned by userID.
func (m *Manager) Subscribe(ctx context.Context, userID string) (*Stream, error) {
	return m.SubscribeQuery(ctx, userID, nil)
}

// SubscribeQuery returns a stream of userID's tasks that also satisfy
// predicates.
//
// If the cache holds a fresh snapshot for the key, the returned stream
// carries that snapshot and is already closed; no remote work happens and an
// existing live subscription keeps running. Otherwise any live subscription
// for the key is cancelled and replaced.
func (m *Manager) SubscribeQuery(ctx context.Context, userID string, predicates []remote.Predicate) (*Stream, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	query := remote.Query{
		Collection: m.collection,
		Predicates: append([]remote.Predicate{remote.Where(task.FieldUserID, remote.OpEq, userID)}, predicates...),
	}
	key := KeyFor(userID, predicates)
	if err := query.Validate(); err != nil {
		return nil, &Error{Key: key, Err: err}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if tasks, ok := m.cache.Get(key); ok {
		m.mu.Unlock()
		return resolvedStream(key, tasks), nil
	}

	previous := m.removeLocked(key)
	m.generation++
	a := &active{
		key:        key,
		generation: m.generation,
		query:      query,
		stream:     newStream(key, true),
	}
	m.active[key] = a
	m.mu.Unlock()

	m.cancel(previous)

	sub, err := m.store.Query(ctx, query)

	m.mu.Lock()
	current := m.active[key] == a
	if err != nil {
		if current {
			delete(m.active, key)
		}
		m.stats.Errors++
		m.mu.Unlock()
		a.stream.close()
		m.logger.Warn("open subscription failed", "key", key.String(), "error", err)
		return nil, &Error{Key: key, Err: err}
	}
	if !current {
		m.mu.Unlock()
		sub.Cancel()
		return nil, &Error{Key: key, Err: ErrSuperseded}
	}
	a.sub = sub
	m.stats.Opened++
	m.mu.Unlock()

	m.logger.Debug("opened subscription", "key", key.String(), "generation", a.generation)
	go m.pump(a)
	return a.stream, nil
}

// KeyFor returns the cache key for a user and extra predicates.
func KeyFor(userID string, predicates []remote.Predicate) cache.Key {
	key := cache.Key{UserID: userID}
	if len(predicates) > 0 {
		key.Signature = remote.Query{Predicates: predicates}.Signature()
	}
	return key
}

// Unsubscribe cancels every subscription for userID and drops its cached
// snapshots. Unknown users are a no-op.
func (m *Manager) Unsubscribe(userID string) {
	m.mu.Lock()
	var cancelled []*active
	for key := range m.active {
		if key.UserID == userID {
			cancelled = append(cancelled, m.removeLocked(key))
		}
	}
	m.cache.DeleteUser(userID)
	m.mu.Unlock()

	for _, a := range cancelled {
		m.cancel(a)
	}
}

// UnsubscribeKey cancels the subscription for key, if any, and drops its
// cached snapshot.
func (m *Manager) UnsubscribeKey(key cache.Key) {
	m.mu.Lock()
	a := m.removeLocked(key)
	m.cache.Delete(key)
	m.mu.Unlock()
	m.cancel(a)
}

// Close cancels every subscription. Later Subscribe calls fail with
// ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	var cancelled []*active
	for key := range m.active {
		cancelled = append(cancelled, m.removeLocked(key))
	}
	m.mu.Unlock()

	for _, a := range cancelled {
		m.cancel(a)
	}
}

// Active reports whether key has a live subscription.
func (m *Manager) Active(key cache.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[key]
	return ok
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats
	stats.Active = len(m.active)
	return stats
}

// removeLocked detaches key's subscription and closes its stream, so no
// further push can reach the cache or the stream.
func (m *Manager) removeLocked(key cache.Key) *active {
	a, ok := m.active[key]
	if !ok {
		return nil
	}
	delete(m.active, key)
	a.stream.close()
	m.stats.Cancelled++
	return a
}

func (m *Manager) cancel(a *active) {
	if a == nil || a.sub == nil {
		return
	}
	a.sub.Cancel()
	m.logger.Debug("cancelled subscription", "key", a.key.String(), "generation", a.generation)
}

func (m *Manager) pump(a *active) {
	for ev := range a.sub.Events() {
		if ev.Err != nil {
			m.fail(a, ev.Err)
			return
		}
		m.deliver(a.key, a.generation, ev.Records)
	}
}

// deliver applies one push if generation is still current for key.
func (m *Manager) deliver(key cache.Key, generation uint64, records []remote.Record) bool {
	tasks, dropped := m.decode(key, records)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.ParseDropped += dropped

	a, ok := m.active[key]
	if !ok || a.generation != generation {
		m.stats.StaleDropped++
		return false
	}
	m.stats.Pushes++
	m.cache.Put(key, tasks)
	a.stream.send(Event{Tasks: tasks})
	return true
}

func (m *Manager) fail(a *active, err error) {
	m.mu.Lock()
	current, ok := m.active[a.key]
	if !ok || current.generation != a.generation {
		m.mu.Unlock()
		return
	}
	delete(m.active, a.key)
	m.cache.Delete(a.key)
	m.stats.Errors++
	m.mu.Unlock()

	m.logger.Warn("subscription failed", "key", a.key.String(), "error", err)
	a.stream.fail(&Error{Key: a.key, Err: err})
	a.sub.Cancel()
}

func (m *Manager) decode(key cache.Key, records []remote.Record) ([]task.Task, int) {
	tasks := make([]task.Task, 0, len(records))
	dropped := 0
	for _, record := range records {
		t, err := task.DecodeRecord(record)
		if err != nil {
			dropped++
			m.logger.Debug("dropped unparseable task", "key", key.String(), "id", record.ID, "error", err)
			continue
		}
		tasks = append(tasks, t)
	}
	SortByUpdated(tasks)
	return tasks, dropped
}

// SortByUpdated orders tasks by UpdatedAt, newest first. Ties keep id order.
func SortByUpdated(tasks []task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].UpdatedAt.Equal(tasks[j].UpdatedAt) {
			return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
