package errors

import (
	"fmt"
	"time"
)

// Task layer errors. They are matched with errors.As and translated to the
// wire by ToRPC.
type (
	// InvalidMessageError rejects a malformed or empty message payload.
	InvalidMessageError struct {
		Reason string
	}

	// UnknownMethodError is returned for any JSON-RPC method the adapter
	// does not route.
	UnknownMethodError struct {
		Method string
	}

	// DuplicateTaskError means a task id was reused with another context id.
	DuplicateTaskError struct {
		TaskID             string
		ExistingContextID  string
		RequestedContextID string
	}

	// InvalidTransitionError means the lifecycle graph does not allow the move.
	InvalidTransitionError struct {
		TaskID string
		From   string
		To     string
	}

	TaskNotFoundError struct {
		TaskID string
	}

	TaskNotCancelableError struct {
		TaskID string
		State  string
	}

	// WorkerError wraps anything the worker returned or panicked with.
	WorkerError struct {
		Err error
	}

	// TimeoutError is recorded when the worker does not answer in time.
	TimeoutError struct {
		After time.Duration
	}
)

func NewInvalidMessageError(format string, args ...any) *InvalidMessageError {
	return &InvalidMessageError{Reason: fmt.Sprintf(format, args...)}
}

func (e *InvalidMessageError) Error() string {
	return "invalid message: " + e.Reason
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown method: %q", e.Method)
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf(
		"task %s already exists in context %s (requested %s)",
		e.TaskID, e.ExistingContextID, e.RequestedContextID,
	)
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s cannot move from %s to %s", e.TaskID, e.From, e.To)
}

func (e *TaskNotFoundError) Error() string {
	return "task not found: " + e.TaskID
}

func (e *TaskNotCancelableError) Error() string {
	return fmt.Sprintf("task %s is %s and cannot be canceled", e.TaskID, e.State)
}

func (e *WorkerError) Error() string {
	if e.Err == nil {
		return "worker failed"
	}
	return "worker failed: " + e.Err.Error()
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("worker did not respond within %s", e.After)
}
