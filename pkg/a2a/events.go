package a2a

/*
TaskStatusUpdateEvent is published whenever a task changes state.
*/
type TaskStatusUpdateEvent struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

/*
TaskArtifactUpdateEvent is published when an artifact is attached to a task.
*/
type TaskArtifactUpdateEvent struct {
	Kind      string   `json:"kind"`
	TaskID    string   `json:"taskId"`
	ContextID string   `json:"contextId"`
	Artifact  Artifact `json:"artifact"`
	LastChunk bool     `json:"lastChunk"`
}

func NewStatusUpdateEvent(task Task) TaskStatusUpdateEvent {
	return TaskStatusUpdateEvent{
		Kind:      "status-update",
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Status:    task.Clone().Status,
		Final:     task.Status.State.Terminal(),
	}
}

func NewArtifactUpdateEvent(task Task, artifact Artifact) TaskArtifactUpdateEvent {
	return TaskArtifactUpdateEvent{
		Kind:      "artifact-update",
		TaskID:    task.ID,
		ContextID: task.ContextID,
		Artifact:  artifact.Clone(),
		LastChunk: true,
	}
}
