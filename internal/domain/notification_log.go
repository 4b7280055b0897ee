package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type LogEvent string

const (
	LogSent         LogEvent = "sent"
	LogDelivered    LogEvent = "delivered"
	LogRead         LogEvent = "read"
	LogAcknowledged LogEvent = "acknowledged"
	LogFailed       LogEvent = "failed"
	LogEscalated    LogEvent = "escalated"
)

// NotificationLog is an append-only lifecycle record. NotificationID is nil
// for failures that happen before a row was persisted.
type NotificationLog struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	NotificationID *uuid.UUID      `json:"notification_id,omitempty" db:"notification_id"`
	Event          LogEvent        `json:"event" db:"event"`
	Metadata       json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
