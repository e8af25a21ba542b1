package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

/*
RpcError represents a JSON-RPC error response.
*/
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

/*
Error implements the error interface for RpcError.
*/
func (e *RpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// JSON-RPC reserved codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
)

// Application codes (-32000 .. -32099).
const (
	CodeApplication                  = -32000
	CodeTaskNotFound                 = -32001
	CodeTaskNotCancelable            = -32002
	CodePushNotificationNotSupported = -32003
	CodeContentTypeNotSupported      = -32005
	CodeWorkerFailed                 = -32006
)

var (
	ErrParseError     = &RpcError{Code: CodeParseError, Message: "Parse error"}
	ErrInvalidRequest = &RpcError{Code: CodeInvalidRequest, Message: "Invalid Request"}
	ErrMethodNotFound = &RpcError{Code: CodeMethodNotFound, Message: "Method not found"}
	ErrInvalidParams  = &RpcError{Code: CodeInvalidParams, Message: "Invalid params"}
	ErrInternal       = &RpcError{Code: CodeInternal, Message: "Internal error"}

	ErrApplication                  = &RpcError{Code: CodeApplication, Message: "Task state conflict"}
	ErrTaskNotFound                 = &RpcError{Code: CodeTaskNotFound, Message: "Task not found"}
	ErrTaskNotCancelable            = &RpcError{Code: CodeTaskNotCancelable, Message: "Task cannot be canceled"}
	ErrPushNotificationNotSupported = &RpcError{Code: CodePushNotificationNotSupported, Message: "Push Notification is not supported"}
	ErrContentTypeNotSupported      = &RpcError{Code: CodeContentTypeNotSupported, Message: "Incompatible content types"}
)

// WithMessagef creates a *copy* of an RpcError with a formatted message.
// It does not modify the original error variable.
func (e *RpcError) WithMessagef(format string, args ...any) *RpcError {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

// WithData returns a copy of the error carrying data.
func (e *RpcError) WithData(data any) *RpcError {
	newErr := *e
	newErr.Data = data
	return &newErr
}

/*
ToRPC maps any error produced by the task layer onto its wire form. Unknown
errors collapse to ErrInternal so internal detail never leaks to a caller.
*/
func ToRPC(err error) *RpcError {
	if err == nil {
		return nil
	}

	var (
		rpcErr        *RpcError
		invalidMsg    *InvalidMessageError
		unknownMethod *UnknownMethodError
		duplicate     *DuplicateTaskError
		transition    *InvalidTransitionError
		notFound      *TaskNotFoundError
		notCancelable *TaskNotCancelableError
	)

	switch {
	case stderrors.As(err, &rpcErr):
		return rpcErr
	case stderrors.As(err, &invalidMsg):
		return ErrInvalidParams.WithMessagef("Invalid params: %s", invalidMsg.Reason)
	case stderrors.As(err, &unknownMethod):
		return ErrMethodNotFound.WithData(unknownMethod.Method)
	case stderrors.As(err, &duplicate):
		return ErrApplication.WithMessagef("%s", duplicate.Error())
	case stderrors.As(err, &transition):
		return ErrApplication.WithMessagef("%s", transition.Error())
	case stderrors.As(err, &notFound):
		return ErrTaskNotFound.WithData(notFound.TaskID)
	case stderrors.As(err, &notCancelable):
		return ErrTaskNotCancelable.WithMessagef("%s", notCancelable.Error())
	}

	return ErrInternal
}

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
	}
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
func RetryWithBackoff(config *RetryConfig, fn func() error) error {
	return RetryWithContext(context.Background(), config, fn)
}

/*
RetryWithContext is RetryWithBackoff that stops waiting as soon as ctx is
done, returning the last error joined with the context's.
*/
func RetryWithContext(ctx context.Context, config *RetryConfig, fn func() error) error {
	var err error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return stderrors.Join(err, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)

		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("after %d attempts, last error: %w", config.MaxAttempts, err)
}
