package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/theapemachine/a2a-relay/pkg/metrics"
)

/*
SSEBroker maintains a list of subscribers and broadcasts JSON-encoded task
events to them. Each event is written as

event: {kind}
data: {json}

A subscriber may narrow its stream to one task with the taskId query
parameter.
*/
type SSEBroker struct {
	mu       sync.RWMutex
	clients  map[*subscriber]struct{}
	closed   bool
	testMode bool
	metrics  *metrics.StreamingMetrics
}

type subscriber struct {
	ch     chan []byte
	taskID string
}

/*
NewSSEBroker creates a new SSEBroker.
*/
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{
		clients: make(map[*subscriber]struct{}),
		metrics: metrics.NewStreamingMetrics(),
	}
}

/*
NewTestSSEBroker creates a broker with a shorter ticker interval for testing
*/
func NewTestSSEBroker() *SSEBroker {
	broker := NewSSEBroker()
	broker.testMode = true
	return broker
}

/*
Subscribe turns the HTTP response into an SSE stream and blocks until the
client disconnects or the broker closes.
*/
func (broker *SSEBroker) Subscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)

	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := &subscriber{
		ch:     make(chan []byte, 16),
		taskID: r.URL.Query().Get("taskId"),
	}

	broker.mu.Lock()

	if broker.closed {
		broker.mu.Unlock()
		broker.metrics.RecordConnection(false, 0)
		http.Error(w, "broker closed", http.StatusGone)
		return
	}

	broker.clients[sub] = struct{}{}
	broker.mu.Unlock()

	connected := time.Now()
	broker.metrics.RecordConnection(true, 0)

	defer func() {
		broker.metrics.RecordDisconnect(time.Since(connected))
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// heartbeat ticker to keep connection alive in the presence of proxies.
	tickerInterval := 25 * time.Second

	if broker.testMode {
		tickerInterval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			broker.remove(sub)
			return
		case msg, ok := <-sub.ch:
			if !ok {
				return
			}

			_, _ = w.Write(msg)
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()
		}
	}
}

/*
Publish marshals v and sends it to every client subscribed to taskID or to
all tasks. Slow clients miss events rather than block the publisher.
*/
func (broker *SSEBroker) Publish(taskID, kind string, v any) error {
	data, err := json.Marshal(v)

	if err != nil {
		return err
	}

	msg := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", kind, data))

	broker.mu.RLock()
	defer broker.mu.RUnlock()

	if broker.closed {
		return nil
	}

	for sub := range broker.clients {
		if sub.taskID != "" && sub.taskID != taskID {
			continue
		}

		select {
		case sub.ch <- msg:
			broker.metrics.RecordEvent(kind, false, 0)
		default:
			broker.metrics.RecordEvent(kind, true, 0)
		}
	}

	return nil
}

// Metrics returns a snapshot of the stream counters.
func (broker *SSEBroker) Metrics() metrics.Snapshot {
	return broker.metrics.Snapshot()
}

// Subscribers returns the number of connected clients.
func (broker *SSEBroker) Subscribers() int {
	broker.mu.RLock()
	defer broker.mu.RUnlock()

	return len(broker.clients)
}

/*
Close disconnects all clients and prevents further subscriptions.
*/
func (broker *SSEBroker) Close() {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return
	}

	broker.closed = true

	for sub := range broker.clients {
		close(sub.ch)
	}

	broker.clients = map[*subscriber]struct{}{}
}

func (broker *SSEBroker) remove(sub *subscriber) {
	broker.mu.Lock()

	if _, ok := broker.clients[sub]; ok {
		delete(broker.clients, sub)
		close(sub.ch)
	}

	broker.mu.Unlock()
}
