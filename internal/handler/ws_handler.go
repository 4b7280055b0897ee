package handler

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"clinic-notify/internal/domain"
	"clinic-notify/internal/middleware"
	"clinic-notify/internal/service/notify"
	"clinic-notify/internal/ws"
)

type WSHandler struct {
	hub          *ws.Hub
	notifService notify.Service
	log          *zap.Logger
}

func NewWSHandler(hub *ws.Hub, notifService notify.Service, log *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, notifService: notifService, log: log}
}

// Serve owns one websocket connection for its lifetime: register the
// channel, flush whatever queued up while the user was offline, then sit in
// the read loop until the peer goes away.
func (h *WSHandler) Serve(c *websocket.Conn) {
	actor, ok := c.Locals(middleware.ActorContextKey).(domain.Actor)
	if !ok {
		_ = c.Close()
		return
	}

	channel := ws.NewChannel(actor.ID, c)
	h.hub.Register(actor.ID, channel)
	defer h.hub.Unregister(actor.ID, channel)

	go func() {
		if err := h.notifService.FlushPending(context.Background(), actor.ID); err != nil {
			h.log.Warn("pending flush failed",
				zap.String("user_id", actor.ID.String()), zap.Error(err))
		}
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
