package session

import (
	"context"
	"time"

	"github.com/amonks/taskmirror/remote"
	"github.com/amonks/taskmirror/task"
)

// Mutations write straight through to the store. The loaded snapshot only
// reflects them once the store pushes the change back.

// CreateTask creates a task for the loaded user and returns its id.
func (m *Manager) CreateTask(ctx context.Context, title string, opts task.CreateOptions) (string, error) {
	userID := m.UserID()
	if userID == "" {
		return "", &MutationError{Op: "create", Err: ErrNoUser}
	}
	created, err := task.New(userID, title, opts, m.now())
	if err != nil {
		return "", &MutationError{Op: "create", Err: err}
	}
	id, err := m.store.Create(ctx, remote.TasksCollection, task.Encode(created))
	if err != nil {
		return "", &MutationError{Op: "create", Err: err}
	}
	m.logger.Debug("created task", "id", id, "user", userID)
	return id, nil
}

// UpdateTask applies opts to the stored task. Moving a repeating task to
// completed also creates its next occurrence.
func (m *Manager) UpdateTask(ctx context.Context, id string, opts task.UpdateOptions) (task.Task, error) {
	updated, _, err := m.mutate(ctx, "update", id, func(t *task.Task, now time.Time) error {
		return t.Apply(opts, now)
	})
	return updated, err
}

// UpdateTaskStatus moves the stored task to status. Moving a repeating task
// to completed also creates its next occurrence.
func (m *Manager) UpdateTaskStatus(ctx context.Context, id string, status task.Status) (task.Task, error) {
	updated, _, err := m.mutate(ctx, "update status of", id, func(t *task.Task, now time.Time) error {
		return t.SetStatus(status, now)
	})
	return updated, err
}

// CompleteTask marks the stored task completed. For a repeating task that
// was not already completed it also creates the next occurrence and
// returns its id.
func (m *Manager) CompleteTask(ctx context.Context, id string) (string, error) {
	_, nextID, err := m.mutate(ctx, "complete", id, func(t *task.Task, now time.Time) error {
		return t.SetStatus(task.StatusCompleted, now)
	})
	return nextID, err
}

// DeleteTask removes the stored task.
func (m *Manager) DeleteTask(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, remote.TasksCollection, id); err != nil {
		return &MutationError{Op: "delete", TaskID: id, Err: err}
	}
	return nil
}

// AddSubtask appends a subtask to the stored task.
func (m *Manager) AddSubtask(ctx context.Context, id, title string) (task.Subtask, error) {
	var added task.Subtask
	_, _, err := m.modify(ctx, "add subtask to", id, func(t *task.Task, now time.Time) error {
		sub, err := t.AddSubtask(title, now)
		added = sub
		return err
	})
	return added, err
}

// ToggleSubtask flips a subtask of the stored task. Completing the last open
// subtask completes the task, and a repeating task then gets its next
// occurrence.
func (m *Manager) ToggleSubtask(ctx context.Context, id, subtaskID string) (task.Task, error) {
	updated, _, err := m.mutate(ctx, "toggle subtask of", id, func(t *task.Task, now time.Time) error {
		return t.ToggleSubtask(subtaskID, now)
	})
	return updated, err
}

// GetTask reads a task from the store, bypassing the snapshot.
func (m *Manager) GetTask(ctx context.Context, id string) (task.Task, error) {
	record, err := m.store.Get(ctx, remote.TasksCollection, id)
	if err != nil {
		return task.Task{}, err
	}
	return task.DecodeRecord(record)
}

// mutate applies change like modify. When the change moves a repeating
// task into completed, it creates the next occurrence and returns its id.
func (m *Manager) mutate(ctx context.Context, op, id string, change func(*task.Task, time.Time) error) (task.Task, string, error) {
	before, after, err := m.modify(ctx, op, id, change)
	if err != nil {
		return task.Task{}, "", err
	}
	if before.Status == task.StatusCompleted || after.Status != task.StatusCompleted {
		return after, "", nil
	}

	next, ok := task.NextOccurrence(after, m.now())
	if !ok {
		return after, "", nil
	}
	nextID, err := m.store.Create(ctx, remote.TasksCollection, task.Encode(next))
	if err != nil {
		return after, "", &MutationError{Op: "create next occurrence of", TaskID: id, Err: err}
	}
	m.logger.Debug("created next occurrence", "id", nextID, "previous", id, "repeat", string(after.Repeat))
	return after, nextID, nil
}

// modify reads the stored task, applies change, and writes back only the
// fields that changed. It returns the task as read and as written.
func (m *Manager) modify(ctx context.Context, op, id string, change func(*task.Task, time.Time) error) (before, after task.Task, err error) {
	record, err := m.store.Get(ctx, remote.TasksCollection, id)
	if err != nil {
		return task.Task{}, task.Task{}, &MutationError{Op: op, TaskID: id, Err: err}
	}
	current, err := task.DecodeRecord(record)
	if err != nil {
		return task.Task{}, task.Task{}, &MutationError{Op: op, TaskID: id, Err: err}
	}

	updated := current.Clone()
	if err := change(&updated, m.now()); err != nil {
		return task.Task{}, task.Task{}, &MutationError{Op: op, TaskID: id, Err: err}
	}

	patch := remote.Diff(task.Encode(current), task.Encode(updated))
	if len(patch) == 0 {
		return current, updated, nil
	}
	if err := m.store.Update(ctx, remote.TasksCollection, id, patch); err != nil {
		return task.Task{}, task.Task{}, &MutationError{Op: op, TaskID: id, Err: err}
	}
	return current, updated, nil
}
