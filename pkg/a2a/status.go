package a2a

import "time"

/*
TaskState enumerates the mutually exclusive states a task may be in.
*/
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateInputReq  TaskState = "input-required"
	TaskStateCompleted TaskState = "completed"
	TaskStateCanceled  TaskState = "canceled"
	TaskStateFailed    TaskState = "failed"
)

// transitions is the lifecycle graph. Terminal states have no outgoing edges.
var transitions = map[TaskState][]TaskState{
	TaskStateSubmitted: {TaskStateWorking, TaskStateCanceled},
	TaskStateWorking:   {TaskStateInputReq, TaskStateCompleted, TaskStateFailed, TaskStateCanceled},
	TaskStateInputReq:  {TaskStateWorking, TaskStateCanceled},
}

/*
CanTransition reports whether a task may move from one state to another.
*/
func CanTransition(from, to TaskState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

/*
Terminal reports whether the state accepts no further transitions.
*/
func (state TaskState) Terminal() bool {
	switch state {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}

	return false
}

func (state TaskState) Valid() bool {
	switch state {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputReq,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}

	return false
}

type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

/*
StatusTransition records one status change. From is empty for the initial
submitted entry.
*/
type StatusTransition struct {
	From      TaskState `json:"from,omitempty"`
	To        TaskState `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}
