package stores

import (
	"sync"
	"time"

	"github.com/theapemachine/a2a-relay/pkg/a2a"
)

// PushConfigStore keeps the push notification target registered per task.
type PushConfigStore interface {
	Get(taskID string) (a2a.PushNotificationConfig, bool)
	Set(taskID string, config a2a.PushNotificationConfig)
	Delete(taskID string)
	Cleanup(now time.Time) int
}

type pushConfigEntry struct {
	config    a2a.PushNotificationConfig
	expiresAt time.Time
}

// InMemoryPushConfigStore is the default implementation.
type InMemoryPushConfigStore struct {
	mu         sync.RWMutex
	data       map[string]*pushConfigEntry
	expiration time.Duration
}

func NewInMemoryPushConfigStore(expiration time.Duration) *InMemoryPushConfigStore {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	return &InMemoryPushConfigStore{
		data:       make(map[string]*pushConfigEntry),
		expiration: expiration,
	}
}

func (s *InMemoryPushConfigStore) Get(taskID string) (a2a.PushNotificationConfig, bool) {
	s.mu.RLock()
	entry, ok := s.data[taskID]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return a2a.PushNotificationConfig{}, false
	}

	return entry.config, true
}

func (s *InMemoryPushConfigStore) Set(taskID string, config a2a.PushNotificationConfig) {
	s.mu.Lock()
	s.data[taskID] = &pushConfigEntry{
		config:    config,
		expiresAt: time.Now().Add(s.expiration),
	}
	s.mu.Unlock()
}

func (s *InMemoryPushConfigStore) Delete(taskID string) {
	s.mu.Lock()
	delete(s.data, taskID)
	s.mu.Unlock()
}

func (s *InMemoryPushConfigStore) Cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for id, entry := range s.data {
		if now.After(entry.expiresAt) {
			delete(s.data, id)
			removed++
		}
	}

	return removed
}
