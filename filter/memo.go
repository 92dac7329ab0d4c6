package filter

import (
	"sync"

	"github.com/amonks/taskmirror/task"
)

// MaxMemoEntries bounds how many specs a Memo remembers before it starts
// over.
const MaxMemoEntries = 10

// Memo caches filtered views of one snapshot. Replacing the snapshot
// discards every cached view.
type Memo struct {
	mu      sync.Mutex
	tasks   []task.Task
	results map[Spec][]task.Task
	hits    int
	misses  int
}

// NewMemo creates an empty memo.
func NewMemo() *Memo {
	return &Memo{results: make(map[Spec][]task.Task)}
}

// SetTasks replaces the snapshot and clears cached views.
func (m *Memo) SetTasks(tasks []task.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = tasks
	clear(m.results)
}

// Tasks returns the current snapshot.
func (m *Memo) Tasks() []task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks
}

// View returns Apply(snapshot, spec), reusing a cached result when one
// exists. The returned slice is shared; callers must not modify it.
func (m *Memo) View(spec Spec) []task.Task {
	key := spec.key()

	m.mu.Lock()
	defer m.mu.Unlock()
	if result, ok := m.results[key]; ok {
		m.hits++
		return result
	}
	m.misses++
	result := Apply(m.tasks, spec)
	m.results[key] = result
	if len(m.results) > MaxMemoEntries {
		clear(m.results)
	}
	return result
}

// Len returns the number of cached views.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

// Counts returns cache hits and misses since creation.
func (m *Memo) Counts() (hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}
