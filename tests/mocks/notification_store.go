package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"clinic-notify/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NotificationStore is an in-memory NotificationRepository that mirrors the
// conditional-update guards of the real queries. Lifecycle tests use it where
// call-sequence mocks would obscure the retry and acknowledgement races the
// guards exist to resolve.
type NotificationStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.Notification
	byEvent map[string]uuid.UUID

	// CreateErr, when set, fails every Create with that error.
	CreateErr error
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{
		byID:    make(map[uuid.UUID]*domain.Notification),
		byEvent: make(map[string]uuid.UUID),
	}
}

func (s *NotificationStore) Create(_ context.Context, notif *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return s.CreateErr
	}
	if _, exists := s.byEvent[notif.EventID]; exists {
		return &pq.Error{Code: "23505"}
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now()
	}
	stored := *notif
	s.byID[notif.ID] = &stored
	s.byEvent[notif.EventID] = notif.ID
	return nil
}

func (s *NotificationStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (s *NotificationStore) GetByEventID(_ context.Context, eventID string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEvent[eventID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s.byID[id]
	return &copied, nil
}

func (s *NotificationStore) ListByUser(_ context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]domain.Notification, int64, error) {
	filter.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.Notification
	for _, n := range s.byID {
		if n.UserID != userID {
			continue
		}
		if filter.Read != nil && n.IsRead != *filter.Read {
			continue
		}
		if filter.Priority != nil && n.Priority != *filter.Priority {
			continue
		}
		matched = append(matched, *n)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *NotificationStore) ListUndelivered(_ context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []domain.Notification
	for _, n := range s.byID {
		if n.UserID == userID && !n.Delivered {
			pending = append(pending, *n)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *NotificationStore) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.Delivered {
		return false, nil
	}
	now := time.Now()
	n.Delivered = true
	n.DeliveredAt = &now
	return true, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, id, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.UserID != userID || n.IsRead {
		return false, nil
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	return true, nil
}

func (s *NotificationStore) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	now := time.Now()
	for _, n := range s.byID {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (s *NotificationStore) Acknowledge(_ context.Context, id, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.UserID != userID || n.Acknowledged {
		return false, nil
	}
	now := time.Now()
	n.Acknowledged = true
	n.AcknowledgedAt = &now
	return true, nil
}

func (s *NotificationStore) IncrementRetry(_ context.Context, id uuid.UUID) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.Acknowledged || n.RetryCount >= n.MaxRetries {
		return 0, false, nil
	}
	n.RetryCount++
	return n.RetryCount, true, nil
}

func (s *NotificationStore) MarkEscalated(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok || n.Acknowledged || n.Escalated {
		return false, nil
	}
	n.Escalated = true
	return true, nil
}

func (s *NotificationStore) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, n := range s.byID {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// Snapshot returns a copy of the stored row for assertions.
func (s *NotificationStore) Snapshot(id uuid.UUID) (domain.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok {
		return domain.Notification{}, false
	}
	return *n, true
}

// ForUser returns copies of every stored row belonging to userID.
func (s *NotificationStore) ForUser(userID uuid.UUID) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Notification
	for _, n := range s.byID {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out
}
