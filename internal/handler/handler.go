package handler

import (
	"go.uber.org/zap"

	"clinic-notify/internal/service/notify"
	"clinic-notify/internal/ws"
)

type Handlers struct {
	Notification *NotificationHandler
	Preference   *PreferenceHandler
	Dispatch     *DispatchHandler
	Metrics      *MetricsHandler
	WS           *WSHandler
}

func NewHandlers(notifService notify.Service, hub *ws.Hub, log *zap.Logger) *Handlers {
	return &Handlers{
		Notification: NewNotificationHandler(notifService),
		Preference:   NewPreferenceHandler(notifService),
		Dispatch:     NewDispatchHandler(notifService),
		Metrics:      NewMetricsHandler(notifService),
		WS:           NewWSHandler(hub, notifService, log),
	}
}
