package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Documents are stored as JSON-shaped
// values, so callers observe the same shapes a networked store returns.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	watchers    map[*memoryWatch]struct{}
	closed      bool
	newID       func() string
}

type memoryWatch struct {
	query Query
	feed  *Feed
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		watchers:    make(map[*memoryWatch]struct{}),
		newID:       uuid.NewString,
	}
}

// Query implements Store.
func (s *MemoryStore) Query(ctx context.Context, q Query) (Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	w := &memoryWatch{query: q}
	w.feed = NewFeed(func() {
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
	})
	s.watchers[w] = struct{}{}
	w.feed.Send(Event{Records: s.matchLocked(q)})
	return w.feed, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Record{}, ErrClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return Record{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	return Record{ID: id, Data: copyDocument(doc)}, nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, collection string, doc map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stored, err := CloneDocument(doc)
	if err != nil {
		return "", fmt.Errorf("create in %s: %w", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	docs := s.collections[collection]
	if docs == nil {
		docs = make(map[string]map[string]any)
		s.collections[collection] = docs
	}
	id := s.newID()
	docs[id] = stored
	s.notifyLocked(collection)
	return id, nil
}

// Update implements Store. Keys in patch replace stored keys; a nil value
// removes the key.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cloned, err := CloneDocument(patch)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	ApplyPatch(doc, cloned)
	s.notifyLocked(collection)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.collections[collection][id]; !ok {
		return fmt.Errorf("delete %s/%s: %w", collection, id, ErrNotFound)
	}
	delete(s.collections[collection], id)
	s.notifyLocked(collection)
	return nil
}

// Disconnect fails every open subscription with err, as a dropped
// connection would.
func (s *MemoryStore) Disconnect(err error) {
	s.mu.Lock()
	watchers := s.watchers
	s.watchers = make(map[*memoryWatch]struct{})
	s.mu.Unlock()

	for w := range watchers {
		w.feed.Fail(err)
	}
}

// Close fails open subscriptions with ErrClosed and rejects further use.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Disconnect(ErrClosed)
	return nil
}

func (s *MemoryStore) notifyLocked(collection string) {
	for w := range s.watchers {
		if w.query.Collection != collection {
			continue
		}
		w.feed.Send(Event{Records: s.matchLocked(w.query)})
	}
}

func (s *MemoryStore) matchLocked(q Query) []Record {
	records := make([]Record, 0)
	for id, doc := range s.collections[q.Collection] {
		if !Matches(doc, q.Predicates) {
			continue
		}
		records = append(records, Record{ID: id, Data: copyDocument(doc)})
	}
	SortRecords(records)
	return records
}

// SortRecords orders records by id, so result sets are deterministic.
func SortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}

// ApplyPatch merges patch into doc in place.
func ApplyPatch(doc, patch map[string]any) {
	for key, value := range patch {
		if value == nil {
			delete(doc, key)
			continue
		}
		doc[key] = value
	}
}

// CloneDocument deep-copies doc through JSON, normalizing values to the
// shapes JSON decoding produces.
func CloneDocument(doc map[string]any) (map[string]any, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var cloned map[string]any
	if err := json.Unmarshal(data, &cloned); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if cloned == nil {
		cloned = make(map[string]any)
	}
	return cloned, nil
}

func copyDocument(doc map[string]any) map[string]any {
	cloned, err := CloneDocument(doc)
	if err != nil {
		// Stored documents were produced by CloneDocument.
		panic(err)
	}
	return cloned
}

// Diff returns the patch that turns before into after: changed or added
// keys with their new values, and removed keys mapped to nil.
func Diff(before, after map[string]any) map[string]any {
	patch := make(map[string]any)
	for key, value := range after {
		if old, ok := before[key]; !ok || !reflect.DeepEqual(old, value) {
			patch[key] = value
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			patch[key] = nil
		}
	}
	return patch
}
