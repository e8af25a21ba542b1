package stores

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"github.com/theapemachine/a2a-relay/pkg/errors"
)

type taskEntry struct {
	mu        sync.Mutex
	task      a2a.Task
	updatedAt time.Time
	removed   bool
}

/*
InMemoryTaskStore is the default TaskStore. The map is guarded by an RWMutex
and each entry carries its own mutex, so a read-modify-write on one task is
atomic while distinct tasks never contend. Lock order is map, then entry.
*/
type InMemoryTaskStore struct {
	mu        sync.RWMutex
	tasks     map[string]*taskEntry
	retention time.Duration
}

type StoreOption func(*InMemoryTaskStore)

/*
WithRetention sets how long a terminal task is kept before Cleanup evicts
it. Zero keeps tasks until shutdown.
*/
func WithRetention(retention time.Duration) StoreOption {
	return func(store *InMemoryTaskStore) {
		store.retention = retention
	}
}

func NewInMemoryTaskStore(opts ...StoreOption) *InMemoryTaskStore {
	store := &InMemoryTaskStore{
		tasks: make(map[string]*taskEntry),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

/*
Create returns the task for taskID, creating it in the submitted state when
it does not exist yet. The boolean reports whether a new task was created.
An existing task with a different context id is never touched.
*/
func (store *InMemoryTaskStore) Create(
	ctx context.Context, taskID, contextID string,
) (a2a.Task, bool, error) {
	if taskID == "" {
		return a2a.Task{}, false, errors.NewInvalidMessageError("task id is required")
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if entry, ok := store.tasks[taskID]; ok {
		entry.mu.Lock()
		defer entry.mu.Unlock()

		if contextID != "" && entry.task.ContextID != contextID {
			return a2a.Task{}, false, &errors.DuplicateTaskError{
				TaskID:             taskID,
				ExistingContextID:  entry.task.ContextID,
				RequestedContextID: contextID,
			}
		}

		return entry.task.Clone(), false, nil
	}

	if contextID == "" {
		return a2a.Task{}, false, errors.NewInvalidMessageError("context id is required")
	}

	task := a2a.NewTask(taskID, contextID)

	store.tasks[taskID] = &taskEntry{
		task:      task,
		updatedAt: task.Status.Timestamp,
	}

	log.Debug("task created", "task", taskID, "context", contextID)

	return task.Clone(), true, nil
}

func (store *InMemoryTaskStore) Get(ctx context.Context, taskID string) (a2a.Task, error) {
	entry, err := store.entry(taskID)

	if err != nil {
		return a2a.Task{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.removed {
		return a2a.Task{}, &errors.TaskNotFoundError{TaskID: taskID}
	}

	return entry.task.Clone(), nil
}

/*
Update moves the task to state and applies opts, appending one entry to the
status history. Unreachable states fail with InvalidTransitionError and leave
the task unchanged.
*/
func (store *InMemoryTaskStore) Update(
	ctx context.Context, taskID string, state a2a.TaskState, opts ...UpdateOption,
) (a2a.Task, error) {
	entry, err := store.entry(taskID)

	if err != nil {
		return a2a.Task{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.removed {
		return a2a.Task{}, &errors.TaskNotFoundError{TaskID: taskID}
	}

	from := entry.task.Status.State

	if !a2a.CanTransition(from, state) {
		return a2a.Task{}, &errors.InvalidTransitionError{
			TaskID: taskID,
			From:   string(from),
			To:     string(state),
		}
	}

	now := time.Now().UTC()

	if last := entry.task.Status.Timestamp; now.Before(last) {
		now = last
	}

	entry.task.Status = a2a.TaskStatus{
		State:     state,
		Timestamp: now,
	}

	entry.task.StatusHistory = append(entry.task.StatusHistory, a2a.StatusTransition{
		From:      from,
		To:        state,
		Timestamp: now,
	})

	for _, opt := range opts {
		opt(&entry.task)
	}

	entry.updatedAt = now

	log.Debug("task state updated", "task", taskID, "from", from, "to", state)

	return entry.task.Clone(), nil
}

/*
List returns a snapshot of every task, oldest first.
*/
func (store *InMemoryTaskStore) List(ctx context.Context) ([]a2a.Task, error) {
	store.mu.RLock()
	entries := make([]*taskEntry, 0, len(store.tasks))

	for _, entry := range store.tasks {
		entries = append(entries, entry)
	}

	store.mu.RUnlock()

	tasks := make([]a2a.Task, 0, len(entries))

	for _, entry := range entries {
		entry.mu.Lock()

		if !entry.removed {
			tasks = append(tasks, entry.task.Clone())
		}

		entry.mu.Unlock()
	}

	sort.Slice(tasks, func(i, j int) bool {
		ti, tj := tasks[i].StatusHistory[0].Timestamp, tasks[j].StatusHistory[0].Timestamp

		if ti.Equal(tj) {
			return tasks[i].ID < tasks[j].ID
		}

		return ti.Before(tj)
	})

	return tasks, nil
}

/*
Cleanup evicts terminal tasks whose last update is older than the retention
window and returns how many were removed. Non-terminal tasks always stay.
*/
func (store *InMemoryTaskStore) Cleanup(now time.Time) int {
	if store.retention <= 0 {
		return 0
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	removed := 0

	for id, entry := range store.tasks {
		entry.mu.Lock()

		if entry.task.Status.State.Terminal() && now.Sub(entry.updatedAt) > store.retention {
			entry.removed = true
			delete(store.tasks, id)
			removed++
		}

		entry.mu.Unlock()
	}

	if removed > 0 {
		log.Info("evicted expired tasks", "count", removed)
	}

	return removed
}

func (store *InMemoryTaskStore) entry(taskID string) (*taskEntry, error) {
	store.mu.RLock()
	entry, ok := store.tasks[taskID]
	store.mu.RUnlock()

	if !ok {
		return nil, &errors.TaskNotFoundError{TaskID: taskID}
	}

	return entry, nil
}
