package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"github.com/theapemachine/a2a-relay/pkg/auth"
	"github.com/theapemachine/a2a-relay/pkg/errors"
	"github.com/theapemachine/a2a-relay/pkg/stores"
)

const (
	laneSize      = 64
	laneIdle      = 30 * time.Second
	drainDeadline = 5 * time.Second
)

/*
Service delivers task snapshots to the webhook registered for each task.
Every task gets its own delivery lane, so a webhook that is slow or down
only holds back its own notifications.
*/
type Service struct {
	configs stores.PushConfigStore
	client  *http.Client
	signer  *auth.Service
	retry   *errors.RetryConfig
	lanes   map[string]chan any
	idle    time.Duration
	drain   time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

type Option func(*Service)

// WithSigner attaches a JWT over the payload digest to every request.
func WithSigner(signer *auth.Service) Option {
	return func(s *Service) {
		s.signer = signer
	}
}

func WithRetry(retry *errors.RetryConfig) Option {
	return func(s *Service) {
		s.retry = retry
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithDrainTimeout bounds how long Close waits for queued notifications
// before abandoning the remaining retries.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.drain = timeout
	}
}

// NewService creates a new push notification service.
func NewService(configs stores.PushConfigStore, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		configs: configs,
		client:  &http.Client{Timeout: 10 * time.Second},
		retry:   errors.DefaultRetryConfig(),
		lanes:   make(map[string]chan any),
		idle:    laneIdle,
		drain:   drainDeadline,
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ValidateConfig checks that config names an http or https webhook.
func ValidateConfig(config a2a.PushNotificationConfig) error {
	target, err := url.ParseRequestURI(config.URL)

	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return errors.ErrInvalidParams.WithMessagef("invalid push notification url %q", config.URL)
	}

	return nil
}

// SetConfig registers the webhook for a task.
func (s *Service) SetConfig(taskID string, config a2a.PushNotificationConfig) error {
	if err := ValidateConfig(config); err != nil {
		return err
	}

	s.configs.Set(taskID, config)

	log.Info("push notification config set", "task", taskID, "url", config.URL)

	return nil
}

// GetConfig retrieves the push notification configuration for a task
func (s *Service) GetConfig(taskID string) (a2a.PushNotificationConfig, bool) {
	return s.configs.Get(taskID)
}

/*
Notify queues event on the task's lane when the task has a webhook. It never
blocks the caller; a full lane drops the notification.
*/
func (s *Service) Notify(taskID string, event any) {
	if _, ok := s.configs.Get(taskID); !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	lane, ok := s.lanes[taskID]

	if !ok {
		lane = make(chan any, laneSize)
		s.lanes[taskID] = lane

		s.wg.Add(1)
		go s.deliverLane(taskID, lane)
	}

	select {
	case lane <- event:
	default:
		log.Warn("push lane full, dropping notification", "task", taskID)
	}
}

/*
Deliver sends one notification right away, retrying with backoff.
*/
func (s *Service) Deliver(ctx context.Context, taskID string, event any) error {
	config, ok := s.configs.Get(taskID)

	if !ok {
		return fmt.Errorf("no push notification config found for task %s", taskID)
	}

	body, err := json.Marshal(event)

	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return errors.RetryWithContext(ctx, s.retry, func() error {
		return s.send(ctx, config, body)
	})
}

func (s *Service) send(ctx context.Context, config a2a.PushNotificationConfig, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(body))

	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if config.Token != "" {
		req.Header.Set("X-A2A-Notification-Token", config.Token)
	}

	if s.signer != nil {
		token, err := s.signer.SignPayload(body)

		if err != nil {
			return err
		}

		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)

	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

/*
deliverLane sends a task's notifications in order. It retires the lane after
it has been idle for a while; the lane is only removed while empty, so
Notify never writes into a lane nobody reads.
*/
func (s *Service) deliverLane(taskID string, lane chan any) {
	defer s.wg.Done()

	idle := time.NewTimer(s.idle)
	defer idle.Stop()

	for {
		select {
		case event, ok := <-lane:
			if !ok {
				return
			}

			if err := s.Deliver(s.ctx, taskID, event); err != nil {
				log.Error("push notification failed", "task", taskID, "error", err)
			}

			idle.Reset(s.idle)
		case <-idle.C:
			s.mu.Lock()

			if len(lane) == 0 {
				delete(s.lanes, taskID)
				s.mu.Unlock()
				return
			}

			s.mu.Unlock()
			idle.Reset(s.idle)
		}
	}
}

/*
Close stops accepting notifications and lets queued ones finish. Deliveries
still retrying once the drain timeout passes are abandoned.
*/
func (s *Service) Close() {
	s.mu.Lock()

	if !s.closed {
		s.closed = true

		for taskID, lane := range s.lanes {
			close(lane)
			delete(s.lanes, taskID)
		}
	}

	s.mu.Unlock()

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.drain):
		log.Warn("push drain timed out, abandoning pending notifications")
		s.cancel()
		<-done
	}

	s.cancel()
}
