package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/theapemachine/a2a-relay/pkg/a2a"
	"github.com/theapemachine/a2a-relay/pkg/errors"
	"github.com/theapemachine/a2a-relay/pkg/metrics"
)

// Event represents a Server-Sent Event
type Event struct {
	ID    string
	Event string
	Data  []byte
}

/*
Decode turns a relay event into a2a.TaskStatusUpdateEvent or
a2a.TaskArtifactUpdateEvent depending on its kind.
*/
func (event *Event) Decode() (any, error) {
	switch event.Event {
	case "status-update":
		var out a2a.TaskStatusUpdateEvent
		return out, json.Unmarshal(event.Data, &out)
	case "artifact-update":
		var out a2a.TaskArtifactUpdateEvent
		return out, json.Unmarshal(event.Data, &out)
	default:
		return nil, fmt.Errorf("unknown event kind %q", event.Event)
	}
}

/*
Client follows the /events stream of a relay and reconnects with backoff
when the stream drops.
*/
type Client struct {
	URL     string
	Headers map[string]string
	Metrics *metrics.StreamingMetrics
	retry   *errors.RetryConfig
	http    *http.Client
	stop    chan struct{}
	once    sync.Once
}

// NewClient creates a client for the stream at url.
func NewClient(url string) *Client {
	return &Client{
		URL:     url,
		Headers: make(map[string]string),
		Metrics: metrics.NewStreamingMetrics(),
		retry:   errors.DefaultRetryConfig(),
		// No overall timeout: the stream stays open as long as the server wants.
		http: &http.Client{},
		stop: make(chan struct{}),
	}
}

// WithRetry replaces the reconnect policy.
func (c *Client) WithRetry(retry *errors.RetryConfig) *Client {
	c.retry = retry
	return c
}

/*
Subscribe calls handler for every event until ctx ends or Close is called. A
dropped stream is reopened; it gives up after the retry policy's attempts
fail in a row.
*/
func (c *Client) Subscribe(ctx context.Context, handler func(*Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	failures := 0
	delay := c.retry.InitialDelay

	for {
		err := c.stream(ctx, handler)

		if ctx.Err() != nil {
			return nil
		}

		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			// The stream was up; start the backoff over.
			failures = 0
			delay = c.retry.InitialDelay
		} else {
			failures++

			if failures >= c.retry.MaxAttempts {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
		}

		c.Metrics.RecordReconnection()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * c.retry.BackoffFactor)

		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}
}

func (c *Client) stream(ctx context.Context, handler func(*Event)) error {
	started := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)

	if err != nil {
		c.Metrics.RecordConnection(false, 0)
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)

	if err != nil {
		c.Metrics.RecordConnection(false, 0)
		return fmt.Errorf("failed to connect: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.Metrics.RecordConnection(false, 0)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	c.Metrics.RecordConnection(true, 0)
	defer func() { c.Metrics.RecordDisconnect(time.Since(started)) }()

	reader := bufio.NewReader(resp.Body)

	for {
		event, err := nextEvent(reader)

		if err != nil {
			return err
		}

		begin := time.Now()
		handler(event)
		c.Metrics.RecordEvent(event.Event, false, time.Since(begin))
	}
}

// nextEvent reads lines up to the blank line that ends an event. Comments
// such as heartbeats are skipped.
func nextEvent(reader *bufio.Reader) (*Event, error) {
	event := &Event{}

	var (
		data    strings.Builder
		inEvent bool
	)

	for {
		line, err := reader.ReadString('\n')

		if err != nil {
			return nil, err
		}

		line = strings.TrimRight(line, "\n\r")

		switch {
		case line == "":
			if inEvent {
				event.Data = []byte(data.String())
				return event, nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			inEvent = true
			event.ID = strings.TrimSpace(line[3:])
		case strings.HasPrefix(line, "event:"):
			inEvent = true
			event.Event = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			inEvent = true

			if data.Len() > 0 {
				data.WriteString("\n")
			}

			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}

// Close stops Subscribe.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.stop)
	})
}
