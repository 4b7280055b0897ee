package mocks

import (
	"context"
	"sync"
	"time"

	"clinic-notify/internal/domain"
)

// NotificationLogStore records lifecycle entries in memory so tests can
// assert on the audit trail a flow leaves behind.
type NotificationLogStore struct {
	mu      sync.Mutex
	entries []domain.NotificationLog

	// CreateErr, when set, fails every Create with that error.
	CreateErr error
}

func NewNotificationLogStore() *NotificationLogStore {
	return &NotificationLogStore{}
}

func (s *NotificationLogStore) Create(_ context.Context, entry *domain.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return s.CreateErr
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *NotificationLogStore) CountsSince(_ context.Context, since time.Time) (map[domain.LogEvent]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.LogEvent]int64)
	for _, entry := range s.entries {
		if !entry.CreatedAt.Before(since) {
			counts[entry.Event]++
		}
	}
	return counts, nil
}

func (s *NotificationLogStore) Entries() []domain.NotificationLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.NotificationLog, len(s.entries))
	copy(out, s.entries)
	return out
}

// CountEvent returns how many recorded entries carry the given event.
func (s *NotificationLogStore) CountEvent(event domain.LogEvent) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, entry := range s.entries {
		if entry.Event == event {
			count++
		}
	}
	return count
}
