package stores

import (
	"context"
	"time"

	"github.com/theapemachine/a2a-relay/pkg/a2a"
)

/*
TaskStore holds task records keyed by task id. Every method hands out deep
copies; the only way to change a stored task is through Create and Update.
*/
type TaskStore interface {
	Create(ctx context.Context, taskID, contextID string) (a2a.Task, bool, error)
	Get(ctx context.Context, taskID string) (a2a.Task, error)
	Update(ctx context.Context, taskID string, state a2a.TaskState, opts ...UpdateOption) (a2a.Task, error)
	List(ctx context.Context) ([]a2a.Task, error)
	Cleanup(now time.Time) int
}

/*
UpdateOption attaches content to a task as part of a status change. Options
run while the task's lock is held, after the transition has been checked.
*/
type UpdateOption func(*a2a.Task)

// WithStatusMessage sets the message carried by the new status.
func WithStatusMessage(msg *a2a.Message) UpdateOption {
	return func(task *a2a.Task) {
		task.Status.Message = msg.Clone()
	}
}

// WithArtifacts attaches artifacts produced for the task.
func WithArtifacts(artifacts ...a2a.Artifact) UpdateOption {
	return func(task *a2a.Task) {
		for _, artifact := range artifacts {
			task.Artifacts = append(task.Artifacts, artifact.Clone())
		}
	}
}

// WithHistory appends a message to the conversation history.
func WithHistory(msg *a2a.Message) UpdateOption {
	return func(task *a2a.Task) {
		if msg == nil {
			return
		}

		task.History = append(task.History, *msg.Clone())
	}
}

// WithError records the failure summary of a failed task.
func WithError(taskErr *a2a.TaskError) UpdateOption {
	return func(task *a2a.Task) {
		if taskErr == nil {
			task.Error = nil
			return
		}

		copied := *taskErr
		task.Error = &copied
	}
}

// WithMetadata merges metadata into the task.
func WithMetadata(metadata map[string]any) UpdateOption {
	return func(task *a2a.Task) {
		if len(metadata) == 0 {
			return
		}

		if task.Metadata == nil {
			task.Metadata = make(map[string]any, len(metadata))
		}

		for k, v := range metadata {
			task.Metadata[k] = v
		}
	}
}
