package session

import (
	"sort"

	"github.com/amonks/taskmirror/internal/ids"
	"github.com/amonks/taskmirror/task"
)

// Tasks returns the snapshot filtered by the active filters, newest first.
// The returned slice is shared; callers must not modify it.
func (m *Manager) Tasks() []task.Task {
	m.mu.Lock()
	spec := m.spec
	m.mu.Unlock()
	return m.memo.View(spec)
}

// AllTasks returns the unfiltered snapshot.
func (m *Manager) AllTasks() []task.Task {
	return m.memo.Tasks()
}

// TasksByStatus returns the snapshot's tasks with status, ignoring the
// active filters. Lists are partitioned once per snapshot.
func (m *Manager) TasksByStatus(status task.Status) []task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byStatus[status]
}

// OverdueTasks returns open tasks whose due date has passed.
func (m *Manager) OverdueTasks() []task.Task {
	now := m.now()
	return m.selectTasks(func(t task.Task) bool { return t.IsOverdue(now) })
}

// TasksDueToday returns tasks due on the current calendar day.
func (m *Manager) TasksDueToday() []task.Task {
	now := m.now()
	return m.selectTasks(func(t task.Task) bool { return t.IsDueToday(now) })
}

// TasksDueSoon returns open tasks due within the next 24 hours.
func (m *Manager) TasksDueSoon() []task.Task {
	now := m.now()
	return m.selectTasks(func(t task.Task) bool { return t.IsDueSoon(now) })
}

// VisibleTasks returns the paginated window over Tasks.
func (m *Manager) VisibleTasks() []task.Task {
	filtered := m.Tasks()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pager.VisibleSlice(filtered)
}

// LoadMore reveals another page of Tasks. It reports whether the window
// grew.
func (m *Manager) LoadMore() bool {
	filtered := m.Tasks()
	m.mu.Lock()
	m.pager.VisibleSlice(filtered)
	grew := m.pager.Advance()
	m.mu.Unlock()
	if grew {
		m.notify()
	}
	return grew
}

// ShouldLoadMore reports whether a consumer distanceToEnd scroll units from
// the end of the visible window should call LoadMore.
func (m *Manager) ShouldLoadMore(distanceToEnd float64) bool {
	filtered := m.Tasks()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pager.VisibleSlice(filtered)
	return m.pager.ShouldAdvance(distanceToEnd)
}

// HasMore reports whether the visible window hides tasks.
func (m *Manager) HasMore() bool {
	filtered := m.Tasks()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pager.VisibleSlice(filtered)
	return m.pager.HasMore()
}

// Find returns the loaded task with id.
func (m *Manager) Find(id string) (task.Task, bool) {
	for _, t := range m.memo.Tasks() {
		if t.ID == id {
			return t, true
		}
	}
	return task.Task{}, false
}

// ResolveID expands a unique id prefix against the loaded tasks.
func (m *Manager) ResolveID(prefix string) (string, error) {
	loaded := m.memo.Tasks()
	all := make([]string, 0, len(loaded))
	for _, t := range loaded {
		all = append(all, t.ID)
	}
	match, found, ambiguous := ids.MatchPrefix(all, prefix)
	switch {
	case ambiguous:
		return "", ErrAmbiguousTaskID
	case !found:
		return "", ErrTaskNotFound
	default:
		return match, nil
	}
}

// Categories returns the distinct categories in the snapshot, sorted.
func (m *Manager) Categories() []string {
	seen := make(map[string]bool)
	for _, t := range m.memo.Tasks() {
		if t.Category != "" {
			seen[t.Category] = true
		}
	}
	return sortedKeys(seen)
}

// Tags returns the distinct tags in the snapshot, sorted.
func (m *Manager) Tags() []string {
	seen := make(map[string]bool)
	for _, t := range m.memo.Tasks() {
		for _, tag := range t.Tags {
			seen[tag] = true
		}
	}
	return sortedKeys(seen)
}

func (m *Manager) selectTasks(keep func(task.Task) bool) []task.Task {
	var out []task.Task
	for _, t := range m.memo.Tasks() {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
