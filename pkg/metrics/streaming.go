package metrics

import (
	"sync"
	"time"
)

// StreamingMetrics tracks connections and events on an SSE stream. It is
// used on both ends: by the broker serving /events and by the watcher
// reading it.
type StreamingMetrics struct {
	mu sync.RWMutex

	// Connection metrics
	TotalConnections   int64
	FailedConnections  int64
	ActiveConnections  int64
	Reconnections      int64
	ConnectionDuration time.Duration

	// Event metrics
	TotalEvents    int64
	DroppedEvents  int64
	EventsByKind   map[string]int64
	ProcessingTime time.Duration
}

// Snapshot is a point in time copy that is safe to encode.
type Snapshot struct {
	TotalConnections     int64            `json:"totalConnections"`
	FailedConnections    int64            `json:"failedConnections"`
	ActiveConnections    int64            `json:"activeConnections"`
	Reconnections        int64            `json:"reconnections"`
	ConnectionSeconds    float64          `json:"connectionSeconds"`
	TotalEvents          int64            `json:"totalEvents"`
	DroppedEvents        int64            `json:"droppedEvents"`
	EventsByKind         map[string]int64 `json:"eventsByKind,omitempty"`
	AvgProcessingSeconds float64          `json:"avgProcessingSeconds"`
}

// NewStreamingMetrics creates a new StreamingMetrics instance
func NewStreamingMetrics() *StreamingMetrics {
	return &StreamingMetrics{
		EventsByKind: make(map[string]int64),
	}
}

// RecordConnection records a connection attempt
func (m *StreamingMetrics) RecordConnection(success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalConnections++

	if !success {
		m.FailedConnections++
		return
	}

	m.ActiveConnections++
	m.ConnectionDuration += duration
}

// RecordDisconnect marks a previously successful connection as gone after
// being open for duration.
func (m *StreamingMetrics) RecordDisconnect(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ActiveConnections > 0 {
		m.ActiveConnections--
	}

	m.ConnectionDuration += duration
}

// RecordReconnection records a reconnection attempt
func (m *StreamingMetrics) RecordReconnection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconnections++
}

// RecordEvent records one event of kind, delivered or dropped.
func (m *StreamingMetrics) RecordEvent(kind string, dropped bool, processingTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalEvents++

	if dropped {
		m.DroppedEvents++
	}

	m.EventsByKind[kind]++
	m.ProcessingTime += processingTime
}

// Snapshot returns a copy of the current metrics.
func (m *StreamingMetrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		TotalConnections:  m.TotalConnections,
		FailedConnections: m.FailedConnections,
		ActiveConnections: m.ActiveConnections,
		Reconnections:     m.Reconnections,
		ConnectionSeconds: m.ConnectionDuration.Seconds(),
		TotalEvents:       m.TotalEvents,
		DroppedEvents:     m.DroppedEvents,
		EventsByKind:      make(map[string]int64, len(m.EventsByKind)),
	}

	for kind, n := range m.EventsByKind {
		snap.EventsByKind[kind] = n
	}

	if m.TotalEvents > 0 {
		snap.AvgProcessingSeconds = m.ProcessingTime.Seconds() / float64(m.TotalEvents)
	}

	return snap
}
