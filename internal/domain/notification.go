package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PayloadVersion is the schema version stamped on every pushed payload.
const PayloadVersion = "1"

type NotificationType string

const (
	NotifAppointmentCreated     NotificationType = "APPOINTMENT_CREATED"
	NotifAppointmentCancelled   NotificationType = "APPOINTMENT_CANCELLED"
	NotifXrayReady              NotificationType = "XRAY_READY"
	NotifXrayResultSent         NotificationType = "XRAY_RESULT_SENT"
	NotifPaymentCreated         NotificationType = "PAYMENT_CREATED"
	NotifPaymentUpdated         NotificationType = "PAYMENT_UPDATED"
	NotifTreatmentCompleted     NotificationType = "TREATMENT_COMPLETED"
	NotifTreatmentCostUpdated   NotificationType = "TREATMENT_COST_UPDATED"
	NotifDetailedBillingEnabled NotificationType = "DETAILED_BILLING_ENABLED"
	NotifEscalationAlert        NotificationType = "ESCALATION_ALERT"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotifAppointmentCreated, NotifAppointmentCancelled,
		NotifXrayReady, NotifXrayResultSent,
		NotifPaymentCreated, NotifPaymentUpdated,
		NotifTreatmentCompleted, NotifTreatmentCostUpdated,
		NotifDetailedBillingEnabled, NotifEscalationAlert:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityNormal   Priority = "NORMAL"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank orders priorities Low < Normal < High < Critical.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

type Notification struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	EventID        string           `json:"event_id" db:"event_id"`
	UserID         uuid.UUID        `json:"user_id" db:"user_id"`
	Type           NotificationType `json:"type" db:"type"`
	Priority       Priority         `json:"priority" db:"priority"`
	Title          string           `json:"title" db:"title"`
	Message        string           `json:"message" db:"message"`
	Data           json.RawMessage  `json:"data,omitempty" db:"data"`
	ActionURL      string           `json:"action_url,omitempty" db:"action_url"`
	RequiresAck    bool             `json:"requires_ack" db:"requires_ack"`
	MaxRetries     int              `json:"max_retries" db:"max_retries"`
	RetryCount     int              `json:"retry_count" db:"retry_count"`
	Delivered      bool             `json:"delivered" db:"delivered"`
	DeliveredAt    *time.Time       `json:"delivered_at,omitempty" db:"delivered_at"`
	IsRead         bool             `json:"is_read" db:"is_read"`
	ReadAt         *time.Time       `json:"read_at,omitempty" db:"read_at"`
	Acknowledged   bool             `json:"acknowledged" db:"acknowledged"`
	AcknowledgedAt *time.Time       `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	Escalated      bool             `json:"escalated" db:"escalated"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// PushPayload is the wire shape pushed to live channels and returned by the
// list endpoint.
type PushPayload struct {
	ID          uuid.UUID        `json:"id"`
	EventID     string           `json:"eventId"`
	Version     string           `json:"version"`
	Type        NotificationType `json:"type"`
	Priority    Priority         `json:"priority"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Data        json.RawMessage  `json:"data,omitempty"`
	ActionURL   string           `json:"actionUrl,omitempty"`
	RequiresAck bool             `json:"requiresAck"`
	Timestamp   time.Time        `json:"timestamp"`
}

func (n *Notification) ToPayload() PushPayload {
	return PushPayload{
		ID:          n.ID,
		EventID:     n.EventID,
		Version:     PayloadVersion,
		Type:        n.Type,
		Priority:    n.Priority,
		Title:       n.Title,
		Message:     n.Message,
		Data:        n.Data,
		ActionURL:   n.ActionURL,
		RequiresAck: n.RequiresAck,
		Timestamp:   n.CreatedAt,
	}
}

// SendRequest carries one delivery request into the router. Everything beyond
// UserID, Type and Message is optional and defaults from the taxonomy.
type SendRequest struct {
	UserID      uuid.UUID        `json:"user_id"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	Data        map[string]any   `json:"data,omitempty"`
	Priority    *Priority        `json:"priority,omitempty"`
	EventID     string           `json:"event_id,omitempty"`
	Title       string           `json:"title,omitempty"`
	ActionURL   string           `json:"action_url,omitempty"`
	RequiresAck *bool            `json:"requires_ack,omitempty"`
	MaxRetries  *int             `json:"max_retries,omitempty"`
}

func (r *SendRequest) Validate() error {
	if r.UserID == uuid.Nil {
		return Validation("user_id is required")
	}
	if !r.Type.Valid() {
		return Validation("unknown notification type")
	}
	if r.Message == "" {
		return Validation("message is required")
	}
	if r.Priority != nil && !r.Priority.Valid() {
		return Validation("unknown priority")
	}
	return nil
}

type SendResult struct {
	NotificationID uuid.UUID `json:"notification_id"`
	EventID        string    `json:"event_id"`
	Delivered      bool      `json:"delivered"`
	Duplicate      bool      `json:"duplicate,omitempty"`
	Skipped        bool      `json:"skipped,omitempty"`
}

// NotificationFilter narrows the list query. Nil pointers mean "no filter".
type NotificationFilter struct {
	Read     *bool     `query:"read"`
	Priority *Priority `query:"priority"`
	Limit    int       `query:"limit"`
	Offset   int       `query:"offset"`
}

func (f *NotificationFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
