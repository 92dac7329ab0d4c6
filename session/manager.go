// Package session materializes one user's tasks from the remote store and
// exposes filtered, paginated views and mutations over them.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/amonks/taskmirror/cache"
	"github.com/amonks/taskmirror/filter"
	"github.com/amonks/taskmirror/paginate"
	"github.com/amonks/taskmirror/remote"
	"github.com/amonks/taskmirror/subscription"
	"github.com/amonks/taskmirror/task"
)

// Options configures a Manager.
type Options struct {
	// Clock defaults to the wall clock.
	Clock clock.Clock

	Logger *slog.Logger

	// CacheTTL defaults to cache.DefaultTTL.
	CacheTTL time.Duration

	// JanitorInterval defaults to cache.DefaultJanitorInterval.
	JanitorInterval time.Duration

	// Debounce defaults to filter.DefaultDebounce.
	Debounce time.Duration

	// PageSize defaults to paginate.DefaultPageSize.
	PageSize int

	// OnChange, if set, is called after the snapshot, the filters, or the
	// subscription state change. It runs without any session lock held.
	OnChange func()
}

// Manager is one user's view of their tasks.
type Manager struct {
	store    remote.Store
	subs     *subscription.Manager
	cache    *cache.Cache
	clock    clock.Clock
	logger   *slog.Logger
	memo     *filter.Memo
	search   *filter.Debouncer
	onChange func()

	stopJanitor context.CancelFunc
	janitorDone chan struct{}

	mu       sync.Mutex
	userID   string
	stream   *subscription.Stream
	byStatus map[task.Status][]task.Task
	spec     filter.Spec
	pager    *paginate.Paginator
	loaded   bool
	ready    chan struct{}
	err      error
	closed   bool
}

// Open creates a manager over store and starts the cache janitor.
func Open(store remote.Store, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	c := cache.New(cache.Options{TTL: opts.CacheTTL, Clock: opts.Clock, Logger: opts.Logger})
	m := &Manager{
		store:       store,
		cache:       c,
		subs:        subscription.NewManager(store, subscription.Options{Cache: c, Logger: opts.Logger}),
		clock:       opts.Clock,
		logger:      opts.Logger,
		memo:        filter.NewMemo(),
		onChange:    opts.OnChange,
		byStatus:    make(map[task.Status][]task.Task),
		pager:       paginate.New(opts.PageSize),
		ready:       make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	m.search = filter.NewDebouncer(opts.Clock, opts.Debounce, m.applySearch)

	ctx, cancel := context.WithCancel(context.Background())
	m.stopJanitor = cancel
	go func() {
		defer close(m.janitorDone)
		c.Run(ctx, opts.JanitorInterval)
	}()
	return m
}

// Close cancels subscriptions and stops background work.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.stream = nil
	m.mu.Unlock()

	m.search.Stop()
	m.subs.Close()
	m.stopJanitor()
	<-m.janitorDone
	return nil
}

// LoadTasks starts mirroring userID's tasks. It is safe to call repeatedly:
// while the cached snapshot is fresh no remote work happens, and at most one
// live subscription is kept. Switching users cancels the previous user's
// subscription.
//
// LoadTasks returns once the subscription is open; use WaitLoaded to wait
// for the first snapshot.
func (m *Manager) LoadTasks(ctx context.Context, userID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	previous := m.userID
	if previous != userID {
		m.userID = userID
		m.stream = nil
		m.resetSnapshotLocked()
	}
	m.mu.Unlock()

	if previous != "" && previous != userID {
		m.subs.Unsubscribe(previous)
	}

	stream, err := m.subs.Subscribe(ctx, userID)
	if err != nil {
		m.mu.Lock()
		m.err = err
		m.markReadyLocked()
		m.mu.Unlock()
		m.notify()
		return err
	}

	if !stream.Live() {
		ev := <-stream.Events()
		m.mu.Lock()
		if m.userID == userID {
			m.applySnapshotLocked(ev.Tasks)
		}
		m.mu.Unlock()
		m.notify()
		return nil
	}

	m.mu.Lock()
	if m.closed || m.userID != userID {
		m.mu.Unlock()
		return nil
	}
	m.stream = stream
	m.err = nil
	if !m.loaded {
		m.rearmReadyLocked()
	}
	m.mu.Unlock()

	m.logger.Debug("loading tasks", "user", userID)
	go m.pump(stream)
	return nil
}

// WaitLoaded blocks until the current user's first snapshot has landed or
// its subscription failed.
func (m *Manager) WaitLoaded(ctx context.Context) error {
	m.mu.Lock()
	if m.userID == "" {
		m.mu.Unlock()
		return ErrNoUser
	}
	ready := m.ready
	m.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// UserID returns the loaded user, if any.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Loaded reports whether a snapshot has landed for the current user.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Err returns the last subscription error, cleared by a successful
// LoadTasks.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// SubscriptionStats returns the subscription manager's counters.
func (m *Manager) SubscriptionStats() subscription.Stats {
	return m.subs.Stats()
}

func (m *Manager) pump(stream *subscription.Stream) {
	for ev := range stream.Events() {
		m.mu.Lock()
		if m.stream != stream {
			m.mu.Unlock()
			return
		}
		if ev.Err != nil {
			m.err = ev.Err
			m.stream = nil
			m.markReadyLocked()
			m.mu.Unlock()
			m.logger.Warn("task subscription failed", "error", ev.Err)
			m.notify()
			return
		}
		m.applySnapshotLocked(ev.Tasks)
		m.mu.Unlock()
		m.notify()
	}
}

func (m *Manager) applySnapshotLocked(tasks []task.Task) {
	m.memo.SetTasks(tasks)

	byStatus := make(map[task.Status][]task.Task, len(task.ValidStatuses()))
	for _, t := range tasks {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}
	m.byStatus = byStatus
	m.pager.Reset()
	m.loaded = true
	m.markReadyLocked()
}

func (m *Manager) resetSnapshotLocked() {
	m.memo.SetTasks(nil)
	m.byStatus = make(map[task.Status][]task.Task)
	m.pager.Reset()
	m.loaded = false
	m.err = nil
	m.rearmReadyLocked()
}

func (m *Manager) rearmReadyLocked() {
	select {
	case <-m.ready:
		m.ready = make(chan struct{})
	default:
	}
}

func (m *Manager) markReadyLocked() {
	select {
	case <-m.ready:
	default:
		close(m.ready)
	}
}

func (m *Manager) notify() {
	if m.onChange != nil {
		m.onChange()
	}
}

func (m *Manager) now() time.Time {
	return m.clock.Now()
}
