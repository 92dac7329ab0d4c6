package remote

import (
	"sync"

	"github.com/amonks/taskmirror/internal/conflate"
)

// Feed is a Subscription event channel that never blocks the producer.
// An undelivered result set is replaced by a newer one, since every event
// carries the complete result set.
type Feed struct {
	events *conflate.Chan[Event]
	cancel func()
	once   sync.Once
}

// NewFeed creates a feed. cancel, if non-nil, runs once when the feed is
// cancelled by its consumer.
func NewFeed(cancel func()) *Feed {
	return &Feed{events: conflate.New[Event](), cancel: cancel}
}

// Events implements Subscription.
func (f *Feed) Events() <-chan Event {
	return f.events.C()
}

// Send delivers ev, replacing any pending undelivered event. It returns
// false if the feed is closed.
func (f *Feed) Send(ev Event) bool {
	return f.events.Send(ev)
}

// Fail delivers a terminal error and closes the feed.
func (f *Feed) Fail(err error) {
	f.events.Fail(Event{Err: err})
}

// Close closes the feed without an error.
func (f *Feed) Close() {
	f.events.Close()
}

// Closed reports whether the feed has been closed.
func (f *Feed) Closed() bool {
	return f.events.Closed()
}

// Cancel implements Subscription.
func (f *Feed) Cancel() {
	f.once.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
	})
	f.Close()
}
