// Package remote defines the contract with the document store that owns task
// records, plus an in-memory implementation.
//
// A Store keeps collections of schemaless documents keyed by id. Query opens
// a live subscription that emits the full matching result set when it opens
// and again after every change. Writes are fire-and-await: success means the
// store accepted the write, not that any subscription has observed it yet.
package remote

import (
	"context"
	"errors"
	"time"
)

// TasksCollection is the collection holding task documents.
const TasksCollection = "tasks"

var (
	// ErrNotFound is returned when a document id doesn't exist.
	ErrNotFound = errors.New("document not found")

	// ErrClosed is returned when using a store after Close.
	ErrClosed = errors.New("store is closed")

	// ErrInvalidQuery is returned for malformed queries.
	ErrInvalidQuery = errors.New("invalid query")
)

// Record is a document together with its id.
type Record struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Event is one delivery on a subscription: either a full result set or a
// terminal error.
type Event struct {
	Records []Record
	Err     error
}

// Subscription is a live query.
type Subscription interface {
	// Events delivers result sets in the order the store produced them. The
	// channel is closed after Cancel or after an error event.
	Events() <-chan Event

	// Cancel stops the subscription. It is safe to call more than once.
	Cancel()
}

// Store is the document store contract.
type Store interface {
	Query(ctx context.Context, q Query) (Subscription, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Create(ctx context.Context, collection string, doc map[string]any) (string, error)
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	Delete(ctx context.Context, collection, id string) error
}

// TimeLayout is the fixed-width UTC layout used for stored timestamps.
// Fixed width keeps lexical order equal to time order, so range predicates
// work on the stored strings.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders a timestamp in TimeLayout.
func FormatTime(value time.Time) string {
	return value.UTC().Format(TimeLayout)
}
