package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"github.com/theapemachine/a2a-relay/pkg/errors"
	"github.com/theapemachine/a2a-relay/pkg/push"
	"github.com/theapemachine/a2a-relay/pkg/service/sse"
	"github.com/theapemachine/a2a-relay/pkg/stores"
	"github.com/theapemachine/a2a-relay/pkg/worker"
)

const DefaultTaskTimeout = 10 * time.Minute

/*
TaskManager drives a task through its lifecycle for every message/send call.
Calls for the same task id are serialized; calls for distinct ids run in
parallel. The worker call is the only slow step and runs on its own
goroutine, bounded by the task timeout and by cancellation.
*/
type TaskManager struct {
	card     *a2a.AgentCard
	store    stores.TaskStore
	worker   worker.Worker
	broker   *sse.SSEBroker
	push     *push.Service
	timeout  time.Duration
	locks    *keyedMutex
	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	baseCtx  context.Context
	stop     context.CancelFunc
}

type TaskManagerOption func(*TaskManager)

func WithTaskStore(store stores.TaskStore) TaskManagerOption {
	return func(m *TaskManager) {
		m.store = store
	}
}

func WithWorker(w worker.Worker) TaskManagerOption {
	return func(m *TaskManager) {
		m.worker = w
	}
}

// WithBroker publishes task events to SSE subscribers.
func WithBroker(broker *sse.SSEBroker) TaskManagerOption {
	return func(m *TaskManager) {
		m.broker = broker
	}
}

// WithPushService enables push notifications.
func WithPushService(svc *push.Service) TaskManagerOption {
	return func(m *TaskManager) {
		m.push = svc
	}
}

// WithTimeout bounds every worker call.
func WithTimeout(timeout time.Duration) TaskManagerOption {
	return func(m *TaskManager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

func NewTaskManager(card *a2a.AgentCard, opts ...TaskManagerOption) (*TaskManager, error) {
	baseCtx, stop := context.WithCancel(context.Background())

	m := &TaskManager{
		card:     card,
		timeout:  DefaultTaskTimeout,
		locks:    newKeyedMutex(),
		inflight: make(map[string]context.CancelFunc),
		baseCtx:  baseCtx,
		stop:     stop,
	}

	for _, opt := range opts {
		opt(m)
	}

	switch {
	case m.card == nil:
		stop()
		return nil, errors.NewError(errors.ErrMissingAgentCard{})
	case m.store == nil:
		stop()
		return nil, errors.NewError(errors.ErrMissingTaskStore{})
	case m.worker == nil:
		stop()
		return nil, errors.NewError(errors.ErrMissingWorker{})
	}

	return m, nil
}

func (m *TaskManager) Card() *a2a.AgentCard {
	return m.card
}

/*
SendMessage is the message/send entry point. It checks the requested output
modes and push config up front, runs the send and trims the history to the
requested length. With blocking set to false it returns the working snapshot
and lets the worker finish in the background.
*/
func (m *TaskManager) SendMessage(ctx context.Context, params a2a.MessageSendParams) (a2a.Task, error) {
	msg := params.Message

	if err := msg.Validate(); err != nil {
		return a2a.Task{}, err
	}

	opts := sendOptions{metadata: params.Metadata, blocking: true}

	if config := params.Configuration; config != nil {
		if !m.card.AcceptsOutput(config.AcceptedOutputModes) {
			return a2a.Task{}, errors.ErrContentTypeNotSupported.WithMessagef(
				"none of %v is supported", config.AcceptedOutputModes,
			)
		}

		if config.PushNotificationConfig != nil {
			if !m.pushEnabled() {
				return a2a.Task{}, errors.ErrPushNotificationNotSupported
			}

			if err := push.ValidateConfig(*config.PushNotificationConfig); err != nil {
				return a2a.Task{}, err
			}

			opts.push = config.PushNotificationConfig
		}

		if config.Blocking != nil {
			opts.blocking = *config.Blocking
		}
	}

	task, err := m.handleSend(ctx, msg, msg.TaskID, msg.ContextID, opts)

	if err != nil {
		return a2a.Task{}, err
	}

	if config := params.Configuration; config != nil && config.HistoryLength != nil {
		task = task.WithHistoryLength(*config.HistoryLength)
	}

	return task, nil
}

/*
HandleSend accepts a message for taskID, creating the task when it is new,
and returns the task snapshot once the worker has answered. Worker failures
and timeouts end up as a failed task, never as an error; errors are reserved
for invalid messages and misuse of task ids.
*/
func (m *TaskManager) HandleSend(
	ctx context.Context, msg *a2a.Message, taskID, contextID string,
) (a2a.Task, error) {
	return m.handleSend(ctx, msg, taskID, contextID, sendOptions{blocking: true})
}

type sendOptions struct {
	metadata map[string]any
	push     *a2a.PushNotificationConfig
	blocking bool
}

func (m *TaskManager) handleSend(
	ctx context.Context, msg *a2a.Message, taskID, contextID string, opts sendOptions,
) (a2a.Task, error) {
	if err := msg.Validate(); err != nil {
		return a2a.Task{}, err
	}

	if taskID == "" {
		taskID = uuid.NewString()
	}

	unlock := m.locks.Lock(taskID)
	locked := true

	defer func() {
		if locked {
			unlock()
		}
	}()

	if contextID == "" {
		if existing, err := m.store.Get(ctx, taskID); err == nil {
			contextID = existing.ContextID
		} else {
			contextID = uuid.NewString()
		}
	}

	task, created, err := m.store.Create(ctx, taskID, contextID)

	if err != nil {
		return a2a.Task{}, err
	}

	// Only now is the caller known to own the task.
	if opts.push != nil {
		if err := m.setPushConfig(taskID, *opts.push); err != nil {
			return a2a.Task{}, err
		}
	}

	if created {
		log.Info("task created", "task", taskID, "context", contextID)
		m.publish(task)
	}

	inbound := msg.Clone()
	inbound.Kind = "message"
	inbound.TaskID = taskID
	inbound.ContextID = contextID

	if inbound.Role == "" {
		inbound.Role = a2a.RoleUser
	}

	if inbound.MessageID == "" {
		inbound.MessageID = uuid.NewString()
	}

	// Tracked before the task turns working, so a cancel always reaches it.
	workerCtx, cancel := context.WithTimeout(m.baseCtx, m.timeout)
	m.track(taskID, cancel)

	task, err = m.store.Update(
		ctx, taskID, a2a.TaskStateWorking,
		stores.WithHistory(inbound),
		stores.WithMetadata(opts.metadata),
	)

	if err != nil {
		m.untrack(taskID)
		cancel()

		if workerCtx.Err() != nil {
			if current, ok := m.canceled(ctx, taskID, err); ok {
				return current, nil
			}
		}

		return a2a.Task{}, err
	}

	m.publish(task)

	if !opts.blocking {
		locked = false

		go func() {
			defer unlock()

			if _, err := m.finish(context.Background(), task, inbound, workerCtx, cancel); err != nil {
				log.Error("background send failed", "task", taskID, "error", err)
			}
		}()

		return task, nil
	}

	return m.finish(ctx, task, inbound, workerCtx, cancel)
}

/*
finish runs the worker for a task that is already working and records the
outcome. A task canceled before the worker started never reaches the worker.
*/
func (m *TaskManager) finish(
	ctx context.Context, task a2a.Task, inbound *a2a.Message,
	workerCtx context.Context, cancel context.CancelFunc,
) (a2a.Task, error) {
	var (
		result    worker.Result
		invokeErr = workerCtx.Err()
	)

	if invokeErr == nil {
		result, invokeErr = m.invoke(workerCtx, inbound, task.ContextID)
	}

	timedOut := invokeErr != nil && stderrors.Is(workerCtx.Err(), context.DeadlineExceeded)

	m.untrack(task.ID)
	cancel()

	return m.apply(ctx, task, result, invokeErr, timedOut)
}

/*
invoke runs the worker on its own goroutine so a worker that ignores its
context cannot hold the task past the deadline. Panics become errors.
*/
func (m *TaskManager) invoke(ctx context.Context, msg *a2a.Message, contextID string) (worker.Result, error) {
	type outcome struct {
		result worker.Result
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("worker panic: %v", r)}
			}
		}()

		result, err := m.worker.Invoke(ctx, msg.Clone(), contextID)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return worker.Result{}, ctx.Err()
	}
}

/*
apply maps the worker outcome onto the task. When the task was canceled
while the worker ran, the canceled snapshot is returned unchanged.
*/
func (m *TaskManager) apply(
	ctx context.Context, task a2a.Task, result worker.Result, invokeErr error, timedOut bool,
) (a2a.Task, error) {
	var (
		state     a2a.TaskState
		opts      []stores.UpdateOption
		artifacts []a2a.Artifact
	)

	switch {
	case timedOut:
		state, opts = m.failure(task, a2a.TaskErrorTimeout, (&errors.TimeoutError{After: m.timeout}).Error())
		log.Warn("worker timed out", "task", task.ID, "after", m.timeout)
	case invokeErr != nil:
		state, opts = m.failure(task, a2a.TaskErrorWorker, "worker failed to process the request")
		log.Error("worker failed", "task", task.ID, "error", &errors.WorkerError{Err: invokeErr})
	case result.ErrorDetail != "":
		state, opts = m.failure(task, a2a.TaskErrorWorker, result.ErrorDetail)
		log.Warn("worker reported failure", "task", task.ID, "detail", result.ErrorDetail)
	case result.RequiresInput:
		state = a2a.TaskStateInputReq
		reply := m.reply(task, result.Parts)
		opts = []stores.UpdateOption{stores.WithStatusMessage(reply), stores.WithHistory(reply)}
	default:
		state = a2a.TaskStateCompleted

		if len(result.Parts) > 0 {
			artifacts = append(artifacts, a2a.NewArtifact("result", result.Parts...))
			opts = []stores.UpdateOption{stores.WithArtifacts(artifacts...)}
		}
	}

	updated, err := m.store.Update(ctx, task.ID, state, opts...)

	if err != nil {
		if current, ok := m.canceled(ctx, task.ID, err); ok {
			return current, nil
		}

		return a2a.Task{}, err
	}

	log.Info("task state updated", "task", updated.ID, "state", updated.Status.State)
	m.publish(updated, artifacts...)

	return updated, nil
}

// canceled reports the current snapshot when err is a refused transition
// caused by the task having been canceled.
func (m *TaskManager) canceled(ctx context.Context, taskID string, err error) (a2a.Task, bool) {
	var transition *errors.InvalidTransitionError

	if !stderrors.As(err, &transition) {
		return a2a.Task{}, false
	}

	current, getErr := m.store.Get(ctx, taskID)

	if getErr != nil || current.Status.State != a2a.TaskStateCanceled {
		return a2a.Task{}, false
	}

	return current, true
}

func (m *TaskManager) failure(task a2a.Task, kind, summary string) (a2a.TaskState, []stores.UpdateOption) {
	return a2a.TaskStateFailed, []stores.UpdateOption{
		stores.WithError(&a2a.TaskError{
			Type:    kind,
			Code:    errors.CodeWorkerFailed,
			Message: summary,
		}),
		stores.WithStatusMessage(m.reply(task, []a2a.Part{a2a.NewTextPart(summary)})),
	}
}

func (m *TaskManager) reply(task a2a.Task, parts []a2a.Part) *a2a.Message {
	msg := a2a.NewMessage(a2a.RoleAgent, parts...)
	msg.TaskID = task.ID
	msg.ContextID = task.ContextID

	return msg
}

/*
GetTask returns the current snapshot of a task. A nil historyLength returns
the full history.
*/
func (m *TaskManager) GetTask(ctx context.Context, taskID string, historyLength *int) (a2a.Task, error) {
	task, err := m.store.Get(ctx, taskID)

	if err != nil {
		return a2a.Task{}, err
	}

	if historyLength != nil {
		task = task.WithHistoryLength(*historyLength)
	}

	return task, nil
}

/*
CancelTask moves a non-terminal task to canceled and signals its in-flight
worker. It does not wait for the per-task lock, so it can interrupt a running
HandleSend.
*/
func (m *TaskManager) CancelTask(ctx context.Context, taskID string) (a2a.Task, error) {
	task, err := m.store.Get(ctx, taskID)

	if err != nil {
		return a2a.Task{}, err
	}

	if task.Status.State.Terminal() {
		return a2a.Task{}, &errors.TaskNotCancelableError{TaskID: taskID, State: string(task.Status.State)}
	}

	task, err = m.store.Update(
		ctx, taskID, a2a.TaskStateCanceled,
		stores.WithStatusMessage(m.reply(task, []a2a.Part{a2a.NewTextPart("task canceled")})),
	)

	if err != nil {
		var transition *errors.InvalidTransitionError

		if stderrors.As(err, &transition) {
			return a2a.Task{}, &errors.TaskNotCancelableError{TaskID: taskID, State: transition.From}
		}

		return a2a.Task{}, err
	}

	m.mu.Lock()
	cancel, running := m.inflight[taskID]
	m.mu.Unlock()

	if running {
		cancel()
	}

	log.Info("task canceled", "task", taskID, "worker_running", running)
	m.publish(task)

	return task, nil
}

func (m *TaskManager) pushEnabled() bool {
	return m.push != nil && m.card.Capabilities.PushNotifications
}

/*
SetPushConfig registers a webhook for an existing task.
*/
func (m *TaskManager) SetPushConfig(
	ctx context.Context, params a2a.TaskPushNotificationConfig,
) (a2a.TaskPushNotificationConfig, error) {
	if !m.pushEnabled() {
		return a2a.TaskPushNotificationConfig{}, errors.ErrPushNotificationNotSupported
	}

	if _, err := m.store.Get(ctx, params.TaskID); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}

	if err := m.setPushConfig(params.TaskID, params.PushNotificationConfig); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}

	return params, nil
}

func (m *TaskManager) GetPushConfig(ctx context.Context, taskID string) (a2a.TaskPushNotificationConfig, error) {
	if !m.pushEnabled() {
		return a2a.TaskPushNotificationConfig{}, errors.ErrPushNotificationNotSupported
	}

	if _, err := m.store.Get(ctx, taskID); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}

	config, ok := m.push.GetConfig(taskID)

	if !ok {
		return a2a.TaskPushNotificationConfig{}, errors.ErrInvalidParams.WithMessagef(
			"no push notification config for task %s", taskID,
		)
	}

	return a2a.TaskPushNotificationConfig{TaskID: taskID, PushNotificationConfig: config}, nil
}

func (m *TaskManager) setPushConfig(taskID string, config a2a.PushNotificationConfig) error {
	if !m.pushEnabled() {
		return errors.ErrPushNotificationNotSupported
	}

	return m.push.SetConfig(taskID, config)
}

/*
Shutdown cancels every in-flight worker call. Tasks whose worker is cut off
this way end up failed.
*/
func (m *TaskManager) Shutdown() {
	m.mu.Lock()
	running := len(m.inflight)
	m.mu.Unlock()

	log.Info("task manager shutting down", "inflight", running)
	m.stop()
}

func (m *TaskManager) track(taskID string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.inflight[taskID] = cancel
	m.mu.Unlock()
}

func (m *TaskManager) untrack(taskID string) {
	m.mu.Lock()
	delete(m.inflight, taskID)
	m.mu.Unlock()
}

func (m *TaskManager) publish(task a2a.Task, artifacts ...a2a.Artifact) {
	if m.broker != nil {
		event := a2a.NewStatusUpdateEvent(task)

		if err := m.broker.Publish(task.ID, event.Kind, event); err != nil {
			log.Error("failed to publish status event", "task", task.ID, "error", err)
		}

		for _, artifact := range artifacts {
			event := a2a.NewArtifactUpdateEvent(task, artifact)

			if err := m.broker.Publish(task.ID, event.Kind, event); err != nil {
				log.Error("failed to publish artifact event", "task", task.ID, "error", err)
			}
		}
	}

	if m.pushEnabled() {
		m.push.Notify(task.ID, task)
	}
}
