// Package sqlitestore implements remote.Store on an SQLite database, storing
// each document as JSON.
//
// Live queries re-run after every write made through the store. Writes made
// by other processes sharing the file are picked up by polling
// PRAGMA data_version.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/amonks/taskmirror/remote"
)

// DefaultPollInterval is how often the store checks for writes from other
// processes.
const DefaultPollInterval = 250 * time.Millisecond

var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)*$`)

// Options configures a Store.
type Options struct {
	// PollInterval defaults to DefaultPollInterval. Negative disables
	// polling.
	PollInterval time.Duration

	Logger *slog.Logger
}

// Store is a remote.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[*watcher]struct{}
	closed   bool

	stopPoll context.CancelFunc
	pollDone chan struct{}
}

type watcher struct {
	query remote.Query
	feed  *remote.Feed

	// mu serializes refreshes so a slower, older result is never sent
	// after a newer one.
	mu   sync.Mutex
	last []remote.Record
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite %s: %w", path, err)
	}
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:       db,
		logger:   opts.Logger,
		watchers: make(map[*watcher]struct{}),
		pollDone: make(chan struct{}),
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s.stopPoll = cancel
	if opts.PollInterval > 0 {
		conn, err := db.Conn(ctx)
		if err != nil {
			cancel()
			db.Close()
			return nil, fmt.Errorf("open poll connection: %w", err)
		}
		go s.poll(pollCtx, conn, opts.PollInterval)
	} else {
		close(s.pollDone)
	}
	return s, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func createTables(ctx context.Context, db *sql.DB) error {
	schema := `
    CREATE TABLE IF NOT EXISTS documents (
        collection TEXT NOT NULL,
        id TEXT NOT NULL,
        data TEXT NOT NULL,
        PRIMARY KEY (collection, id)
    );
    `
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close fails open subscriptions with remote.ErrClosed and closes the
// database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watchers := s.watchers
	s.watchers = make(map[*watcher]struct{})
	s.mu.Unlock()

	for w := range watchers {
		w.feed.Fail(remote.ErrClosed)
	}
	s.stopPoll()
	<-s.pollDone
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}
	return nil
}

// Get implements remote.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (remote.Record, error) {
	if err := s.checkOpen(); err != nil {
		return remote.Record{}, err
	}
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return remote.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, remote.ErrNotFound)
	}
	if err != nil {
		return remote.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return remote.Record{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return remote.Record{ID: id, Data: doc}, nil
}

// Create implements remote.Store.
func (s *Store) Create(ctx context.Context, collection string, doc map[string]any) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("create in %s: encode document: %w", collection, err)
	}
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`, collection, id, string(data)); err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}
	s.refresh(ctx, collection)
	return id, nil
}

// Update implements remote.Store. Keys in patch replace stored keys; a nil
// value removes the key.
func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	expr, args, err := patchExpression(patch)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	args = append(args, collection, id)
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = `+expr+` WHERE collection = ? AND id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, remote.ErrNotFound)
	}
	s.refresh(ctx, collection)
	return nil
}

// Delete implements remote.Store.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, remote.ErrNotFound)
	}
	s.refresh(ctx, collection)
	return nil
}

// Query implements remote.Store.
func (s *Store) Query(ctx context.Context, q remote.Query) (remote.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := whereClause(q.Predicates); err != nil {
		return nil, err
	}
	records, err := s.find(ctx, q)
	if err != nil {
		return nil, err
	}

	w := &watcher{query: q, last: records}
	w.feed = remote.NewFeed(func() {
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, remote.ErrClosed
	}
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	w.feed.Send(remote.Event{Records: records})
	return w.feed, nil
}

func (s *Store) find(ctx context.Context, q remote.Query) ([]remote.Record, error) {
	where, args, err := whereClause(q.Predicates)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ?`+where+` ORDER BY id`,
		append([]any{q.Collection}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	records := make([]remote.Record, 0)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, fmt.Errorf("query %s: document %s: %w", q.Collection, id, err)
		}
		records = append(records, remote.Record{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return records, nil
}

// refresh re-runs every live query on collection, or on every collection
// when collection is empty, and sends result sets that changed.
func (s *Store) refresh(ctx context.Context, collection string) {
	s.mu.Lock()
	watchers := make([]*watcher, 0, len(s.watchers))
	for w := range s.watchers {
		if collection == "" || w.query.Collection == collection {
			watchers = append(watchers, w)
		}
	}
	s.mu.Unlock()

	for _, w := range watchers {
		s.refreshWatcher(context.WithoutCancel(ctx), w)
	}
}

func (s *Store) refreshWatcher(ctx context.Context, w *watcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.feed.Closed() {
		return
	}
	records, err := s.find(ctx, w.query)
	if err != nil {
		s.logger.Warn("live query failed", "collection", w.query.Collection, "error", err)
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
		w.feed.Fail(err)
		return
	}
	if reflect.DeepEqual(records, w.last) {
		return
	}
	w.last = records
	w.feed.Send(remote.Event{Records: records})
}

func (s *Store) poll(ctx context.Context, conn *sql.Conn, interval time.Duration) {
	defer close(s.pollDone)
	defer conn.Close()

	var version int64
	if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&version); err != nil {
		s.logger.Warn("read data version", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var current int64
		if err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&current); err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("read data version", "error", err)
			}
			continue
		}
		if current != version {
			version = current
			s.refresh(ctx, "")
		}
	}
}

func decodeDocument(data string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = make(map[string]any)
	}
	return doc, nil
}
