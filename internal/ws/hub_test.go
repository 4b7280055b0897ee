package ws

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinic-notify/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu       sync.Mutex
	written  []domain.PushPayload
	writeErr error
	closed   bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, v.(domain.PushPayload))
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) writtenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHubPresence(t *testing.T) {
	hub := NewHub(time.Second, zap.NewNop())
	userID := uuid.New()

	assert.False(t, hub.IsOnline(userID))

	first := NewChannel(userID, &fakeConn{})
	second := NewChannel(userID, &fakeConn{})
	hub.Register(userID, first)
	hub.Register(userID, second)

	assert.True(t, hub.IsOnline(userID))
	assert.Len(t, hub.Channels(userID), 2)

	hub.Unregister(userID, first)
	assert.True(t, hub.IsOnline(userID))

	hub.Unregister(userID, second)
	assert.False(t, hub.IsOnline(userID))
	assert.Empty(t, hub.Channels(userID))
}

func TestHubPushFansOutToAllChannels(t *testing.T) {
	hub := NewHub(time.Second, zap.NewNop())
	userID := uuid.New()

	desktop := &fakeConn{}
	tablet := &fakeConn{}
	hub.Register(userID, NewChannel(userID, desktop))
	hub.Register(userID, NewChannel(userID, tablet))

	payload := domain.PushPayload{ID: uuid.New(), Message: "hello"}
	accepted := hub.Push(context.Background(), userID, payload)

	assert.Equal(t, 2, accepted)
	assert.Equal(t, 1, desktop.writtenCount())
	assert.Equal(t, 1, tablet.writtenCount())
}

func TestHubPushToOfflineUser(t *testing.T) {
	hub := NewHub(time.Second, zap.NewNop())

	accepted := hub.Push(context.Background(), uuid.New(), domain.PushPayload{})
	assert.Equal(t, 0, accepted)
}

func TestHubPushDropsFailingChannel(t *testing.T) {
	hub := NewHub(time.Second, zap.NewNop())
	userID := uuid.New()

	healthy := &fakeConn{}
	broken := &fakeConn{writeErr: errors.New("broken pipe")}
	hub.Register(userID, NewChannel(userID, healthy))
	hub.Register(userID, NewChannel(userID, broken))

	accepted := hub.Push(context.Background(), userID, domain.PushPayload{})

	assert.Equal(t, 1, accepted)
	assert.True(t, broken.isClosed())
	// the failed channel is gone; the healthy one remains
	assert.Len(t, hub.Channels(userID), 1)
	assert.True(t, hub.IsOnline(userID))
}

func TestHubPushIsolatesUsers(t *testing.T) {
	hub := NewHub(time.Second, zap.NewNop())
	alice := uuid.New()
	bob := uuid.New()

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{}
	hub.Register(alice, NewChannel(alice, aliceConn))
	hub.Register(bob, NewChannel(bob, bobConn))

	hub.Push(context.Background(), alice, domain.PushPayload{Message: "for alice"})

	assert.Equal(t, 1, aliceConn.writtenCount())
	assert.Equal(t, 0, bobConn.writtenCount())
}
