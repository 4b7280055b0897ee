package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinic-notify/internal/domain"
)

// Conn is the slice of a websocket connection the hub needs. The production
// implementation is *websocket.Conn from gofiber/contrib.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Channel is one live transport connection for a user (one device/tab).
type Channel struct {
	ID     uuid.UUID
	UserID uuid.UUID

	mu   sync.Mutex
	conn Conn
}

func NewChannel(userID uuid.UUID, conn Conn) *Channel {
	return &Channel{
		ID:     uuid.New(),
		UserID: userID,
		conn:   conn,
	}
}

// write serializes access to the underlying conn; websocket writes are not
// concurrency-safe.
func (c *Channel) write(payload domain.PushPayload, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(payload)
}

// Hub tracks which channels are open for which user. It is owned by main and
// injected into the router, never shared module state.
type Hub struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]map[uuid.UUID]*Channel

	writeTimeout time.Duration
	log          *zap.Logger
}

func NewHub(writeTimeout time.Duration, log *zap.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Hub{
		channels:     make(map[uuid.UUID]map[uuid.UUID]*Channel),
		writeTimeout: writeTimeout,
		log:          log,
	}
}

func (h *Hub) Register(userID uuid.UUID, ch *Channel) {
	h.mu.Lock()
	if _, ok := h.channels[userID]; !ok {
		h.channels[userID] = make(map[uuid.UUID]*Channel)
	}
	h.channels[userID][ch.ID] = ch
	total := len(h.channels[userID])
	h.mu.Unlock()

	h.log.Debug("channel registered",
		zap.String("user_id", userID.String()),
		zap.String("channel_id", ch.ID.String()),
		zap.Int("open_channels", total))
}

// Unregister removes a channel and prunes the user entry when the last
// channel is gone, so an offline user costs nothing.
func (h *Hub) Unregister(userID uuid.UUID, ch *Channel) {
	h.mu.Lock()
	if conns, ok := h.channels[userID]; ok {
		delete(conns, ch.ID)
		if len(conns) == 0 {
			delete(h.channels, userID)
		}
	}
	h.mu.Unlock()

	_ = ch.conn.Close()
	h.log.Debug("channel unregistered",
		zap.String("user_id", userID.String()),
		zap.String("channel_id", ch.ID.String()))
}

func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[userID]) > 0
}

func (h *Hub) Channels(userID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(h.channels[userID]))
	for id := range h.channels[userID] {
		ids = append(ids, id)
	}
	return ids
}

// Push writes the payload to every open channel of the user concurrently and
// returns how many accepted. Channels that fail the write are dropped, a
// single wedged channel never blocks the rest.
func (h *Hub) Push(ctx context.Context, userID uuid.UUID, payload domain.PushPayload) int {
	h.mu.RLock()
	targets := make([]*Channel, 0, len(h.channels[userID]))
	for _, ch := range h.channels[userID] {
		targets = append(targets, ch)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return 0
	}

	deadline := time.Now().Add(h.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var accepted int64
	var wg sync.WaitGroup
	for _, ch := range targets {
		wg.Add(1)
		go func(ch *Channel) {
			defer wg.Done()
			if err := ch.write(payload, deadline); err != nil {
				h.log.Warn("push failed, dropping channel",
					zap.String("user_id", userID.String()),
					zap.String("channel_id", ch.ID.String()),
					zap.Error(err))
				h.Unregister(userID, ch)
				return
			}
			atomic.AddInt64(&accepted, 1)
		}(ch)
	}
	wg.Wait()

	return int(atomic.LoadInt64(&accepted))
}
