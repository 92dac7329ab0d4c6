package subscription

import (
	"github.com/amonks/taskmirror/cache"
	"github.com/amonks/taskmirror/internal/conflate"
	"github.com/amonks/taskmirror/task"
)

// Event is one delivery on a Stream.
type Event struct {
	// Tasks is the full snapshot, sorted by UpdatedAt descending.
	Tasks []task.Task

	// Cached is set when the snapshot came from the cache rather than a push.
	Cached bool

	// Err is set on a terminal subscription error.
	Err error
}

// Stream delivers snapshots for one key. Only the most recent undelivered
// snapshot is kept, so a slow reader never blocks the manager.
type Stream struct {
	key    cache.Key
	live   bool
	events *conflate.Chan[Event]
}

func newStream(key cache.Key, live bool) *Stream {
	return &Stream{key: key, live: live, events: conflate.New[Event]()}
}

// resolvedStream returns a closed stream carrying one cached snapshot.
func resolvedStream(key cache.Key, tasks []task.Task) *Stream {
	s := newStream(key, false)
	s.events.Send(Event{Tasks: tasks, Cached: true})
	s.events.Close()
	return s
}

// Key returns the stream's cache key.
func (s *Stream) Key() cache.Key {
	return s.key
}

// Live reports whether the stream is backed by a remote subscription, as
// opposed to a single cached snapshot.
func (s *Stream) Live() bool {
	return s.live
}

// Events returns the delivery channel. It is closed when the subscription
// is cancelled, replaced, or fails.
func (s *Stream) Events() <-chan Event {
	return s.events.C()
}

func (s *Stream) send(ev Event) {
	s.events.Send(ev)
}

func (s *Stream) fail(err error) {
	s.events.Fail(Event{Err: err})
}

func (s *Stream) close() {
	s.events.Close()
}
