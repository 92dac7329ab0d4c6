package session

import (
	"github.com/amonks/taskmirror/filter"
	"github.com/amonks/taskmirror/task"
)

// Filters returns the active filters. Search holds the last applied query,
// which lags SearchInput by the debounce window.
func (m *Manager) Filters() filter.Spec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spec
}

// SetStatusFilter restricts Tasks to status. The zero status clears it.
func (m *Manager) SetStatusFilter(status task.Status) {
	m.updateSpec(func(spec *filter.Spec) { spec.Status = status })
}

// SetPriorityFilter restricts Tasks to priority. The zero priority clears
// it.
func (m *Manager) SetPriorityFilter(priority task.Priority) {
	m.updateSpec(func(spec *filter.Spec) { spec.Priority = priority })
}

// SetCategoryFilter restricts Tasks to category. An empty category clears
// it.
func (m *Manager) SetCategoryFilter(category string) {
	m.updateSpec(func(spec *filter.Spec) { spec.Category = category })
}

// SetSearchQuery schedules query to apply once typing pauses for the
// debounce window. Only the last query in a burst applies.
func (m *Manager) SetSearchQuery(query string) {
	m.search.Set(query)
}

// SearchInput returns the most recent search query, applied or not.
func (m *Manager) SearchInput() string {
	if pending, ok := m.search.Pending(); ok {
		return pending
	}
	return m.Filters().Search
}

// FlushSearch applies a pending search query immediately.
func (m *Manager) FlushSearch() {
	m.search.Flush()
}

// ClearFilters removes every filter, including a pending search.
func (m *Manager) ClearFilters() {
	m.search.Stop()
	m.updateSpec(func(spec *filter.Spec) { *spec = filter.Spec{} })
}

func (m *Manager) applySearch(query string) {
	m.updateSpec(func(spec *filter.Spec) { spec.Search = query })
}

func (m *Manager) updateSpec(update func(*filter.Spec)) {
	m.mu.Lock()
	before := m.spec
	update(&m.spec)
	changed := m.spec != before
	if changed {
		m.pager.Reset()
	}
	m.mu.Unlock()

	if changed {
		m.notify()
	}
}
