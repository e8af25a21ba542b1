package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
)

/*
Worker is the opaque executor that produces content for a task. It may be
slow and it may fail; the task manager bounds every call with a timeout and
cancels ctx when the task is canceled. Implementations should return
already decoded, valid content.
*/
type Worker interface {
	Invoke(ctx context.Context, message *a2a.Message, contextID string) (Result, error)
}

/*
Result is what a worker hands back for one invocation. RequiresInput takes
precedence over IsComplete. A non-empty ErrorDetail marks the call as failed
and is shown to the caller as the failure summary, so it must not contain
anything sensitive.
*/
type Result struct {
	IsComplete    bool
	RequiresInput bool
	Parts         []a2a.Part
	ErrorDetail   string
}

// Func adapts an ordinary function to the Worker interface.
type Func func(ctx context.Context, message *a2a.Message, contextID string) (Result, error)

func (fn Func) Invoke(ctx context.Context, message *a2a.Message, contextID string) (Result, error) {
	return fn(ctx, message, contextID)
}

// Complete builds a finished result carrying text.
func Complete(text string) Result {
	return Result{IsComplete: true, Parts: []a2a.Part{a2a.NewTextPart(text)}}
}

// AskForInput builds a result that prompts the caller for more input.
func AskForInput(text string) Result {
	return Result{RequiresInput: true, Parts: []a2a.Part{a2a.NewTextPart(text)}}
}

/*
NewFromConfig builds the worker selected by worker.kind.
*/
func NewFromConfig() (Worker, error) {
	v := viper.GetViper()

	switch kind := strings.ToLower(v.GetString("worker.kind")); kind {
	case "", "echo":
		return NewEcho(WithDelay(v.GetDuration("worker.echo.delay"))), nil
	case "remote":
		url := v.GetString("worker.remote.url")

		if url == "" {
			return nil, fmt.Errorf("worker.remote.url is required for the remote worker")
		}

		return NewRemote(
			a2a.NewClient(url, a2a.WithToken(v.GetString("worker.remote.token"))),
		), nil
	default:
		return nil, fmt.Errorf("unknown worker kind %q", kind)
	}
}
