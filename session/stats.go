package session

import "github.com/amonks/taskmirror/task"

// Stats summarizes the loaded snapshot.
type Stats struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	InProgress     int     `json:"inProgress"`
	Completed      int     `json:"completed"`
	Cancelled      int     `json:"cancelled"`
	Overdue        int     `json:"overdue"`
	DueSoon        int     `json:"dueSoon"`
	CompletionRate float64 `json:"completionRate"`
}

// Stats counts the loaded snapshot by status and due state, ignoring the
// active filters.
func (m *Manager) Stats() Stats {
	now := m.now()

	m.mu.Lock()
	stats := Stats{
		Pending:    len(m.byStatus[task.StatusPending]),
		InProgress: len(m.byStatus[task.StatusInProgress]),
		Completed:  len(m.byStatus[task.StatusCompleted]),
		Cancelled:  len(m.byStatus[task.StatusCancelled]),
	}
	tasks := m.memo.Tasks()
	m.mu.Unlock()

	for _, t := range tasks {
		stats.Total++
		if t.IsOverdue(now) {
			stats.Overdue++
		}
		if t.IsDueSoon(now) {
			stats.DueSoon++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total)
	}
	return stats
}
