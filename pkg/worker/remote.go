package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
)

/*
Remote delegates work to a downstream A2A agent over message/send. The
downstream task id is remembered per context id, so a follow-up to an
input-required task continues the same remote conversation.
*/
type Remote struct {
	client  *a2a.Client
	mu      sync.Mutex
	pending map[string]string
}

func NewRemote(client *a2a.Client) *Remote {
	return &Remote{
		client:  client,
		pending: make(map[string]string),
	}
}

func (remote *Remote) Invoke(ctx context.Context, message *a2a.Message, contextID string) (Result, error) {
	outbound := message.Clone()
	outbound.ContextID = contextID
	outbound.TaskID = remote.remoteTask(contextID)

	task, err := remote.client.SendMessage(ctx, a2a.MessageSendParams{Message: outbound})

	if err != nil {
		return Result{}, fmt.Errorf("delegate to remote agent: %w", err)
	}

	log.Info("remote agent answered", "context", contextID, "remote_task", task.ID, "state", task.Status.State)

	switch task.Status.State {
	case a2a.TaskStateInputReq:
		remote.remember(contextID, task.ID)

		var parts []a2a.Part
		if task.Status.Message != nil {
			parts = task.Status.Message.Parts
		}

		return Result{RequiresInput: true, Parts: parts}, nil
	case a2a.TaskStateCompleted:
		remote.forget(contextID)

		var parts []a2a.Part
		for _, artifact := range task.Artifacts {
			parts = append(parts, artifact.Parts...)
		}

		return Result{IsComplete: true, Parts: parts}, nil
	case a2a.TaskStateFailed, a2a.TaskStateCanceled:
		remote.forget(contextID)

		return Result{ErrorDetail: fmt.Sprintf("remote agent task %s", task.Status.State)}, nil
	default:
		return Result{}, fmt.Errorf("remote agent left task %s in state %s", task.ID, task.Status.State)
	}
}

func (remote *Remote) remoteTask(contextID string) string {
	remote.mu.Lock()
	defer remote.mu.Unlock()

	return remote.pending[contextID]
}

func (remote *Remote) remember(contextID, taskID string) {
	remote.mu.Lock()
	remote.pending[contextID] = taskID
	remote.mu.Unlock()
}

func (remote *Remote) forget(contextID string) {
	remote.mu.Lock()
	delete(remote.pending, contextID)
	remote.mu.Unlock()
}
