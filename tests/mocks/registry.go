package mocks

import (
	"context"
	"sync"

	"clinic-notify/internal/domain"

	"github.com/google/uuid"
)

// Registry is a fake connection registry. Tests toggle presence per user and
// inspect every payload the router pushed.
type Registry struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	pushed map[uuid.UUID][]domain.PushPayload

	// Reject, when true, makes every Push report zero successful writes
	// while still recording the attempt.
	Reject bool
}

func NewRegistry() *Registry {
	return &Registry{
		online: make(map[uuid.UUID]bool),
		pushed: make(map[uuid.UUID][]domain.PushPayload),
	}
}

func (r *Registry) SetOnline(userID uuid.UUID, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.online[userID] = online
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online[userID]
}

func (r *Registry) Push(_ context.Context, userID uuid.UUID, payload domain.PushPayload) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.online[userID] {
		return 0
	}
	r.pushed[userID] = append(r.pushed[userID], payload)
	if r.Reject {
		return 0
	}
	return 1
}

// Pushed returns every payload attempted for userID, in order.
func (r *Registry) Pushed(userID uuid.UUID) []domain.PushPayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.PushPayload, len(r.pushed[userID]))
	copy(out, r.pushed[userID])
	return out
}

func (r *Registry) PushCount(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pushed[userID])
}
