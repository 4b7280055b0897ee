package notify

import (
	"fmt"
	"time"

	"clinic-notify/internal/domain"
)

// Taxonomy maps event types to their default priority, title and action URL,
// and priorities to the acknowledgement policy. The zero-config defaults are
// baked in; construction only overrides the tunable parts.
type Taxonomy struct {
	ackTimeoutCritical time.Duration
	ackTimeoutHigh     time.Duration
	maxRetriesOverride int
}

func NewTaxonomy(ackTimeoutCritical, ackTimeoutHigh time.Duration, maxRetries int) *Taxonomy {
	if ackTimeoutCritical <= 0 {
		ackTimeoutCritical = 30 * time.Second
	}
	if ackTimeoutHigh <= 0 {
		ackTimeoutHigh = 60 * time.Second
	}
	return &Taxonomy{
		ackTimeoutCritical: ackTimeoutCritical,
		ackTimeoutHigh:     ackTimeoutHigh,
		maxRetriesOverride: maxRetries,
	}
}

func (t *Taxonomy) PriorityOf(nt domain.NotificationType) domain.Priority {
	switch nt {
	case domain.NotifXrayReady:
		return domain.PriorityCritical
	case domain.NotifAppointmentCancelled, domain.NotifXrayResultSent, domain.NotifEscalationAlert:
		return domain.PriorityHigh
	case domain.NotifDetailedBillingEnabled:
		return domain.PriorityLow
	default:
		return domain.PriorityNormal
	}
}

func (t *Taxonomy) TitleOf(nt domain.NotificationType) string {
	switch nt {
	case domain.NotifAppointmentCreated:
		return "Appointment scheduled"
	case domain.NotifAppointmentCancelled:
		return "Appointment cancelled"
	case domain.NotifXrayReady:
		return "X-ray ready for review"
	case domain.NotifXrayResultSent:
		return "X-ray result sent to patient"
	case domain.NotifPaymentCreated:
		return "Payment received"
	case domain.NotifPaymentUpdated:
		return "Payment updated"
	case domain.NotifTreatmentCompleted:
		return "Treatment completed"
	case domain.NotifTreatmentCostUpdated:
		return "Treatment cost updated"
	case domain.NotifDetailedBillingEnabled:
		return "Detailed billing enabled"
	case domain.NotifEscalationAlert:
		return "Unacknowledged critical alert"
	default:
		return "Notification"
	}
}

// ActionURLOf builds the in-app link for a type from its payload data.
func (t *Taxonomy) ActionURLOf(nt domain.NotificationType, data map[string]any) string {
	switch nt {
	case domain.NotifAppointmentCreated, domain.NotifAppointmentCancelled:
		if id, ok := data["appointment_id"]; ok {
			return fmt.Sprintf("/appointments/%v", id)
		}
		return "/appointments"
	case domain.NotifXrayReady, domain.NotifXrayResultSent:
		if id, ok := data["xray_id"]; ok {
			return fmt.Sprintf("/xrays/%v", id)
		}
		return "/xrays"
	case domain.NotifPaymentCreated, domain.NotifPaymentUpdated:
		if id, ok := data["payment_id"]; ok {
			return fmt.Sprintf("/payments/%v", id)
		}
		return "/payments"
	case domain.NotifTreatmentCompleted, domain.NotifTreatmentCostUpdated:
		if id, ok := data["treatment_id"]; ok {
			return fmt.Sprintf("/treatments/%v", id)
		}
		return "/treatments"
	case domain.NotifDetailedBillingEnabled:
		return "/billing"
	case domain.NotifEscalationAlert:
		if id, ok := data["notification_id"]; ok {
			return fmt.Sprintf("/notifications/%v", id)
		}
		return "/notifications"
	default:
		return ""
	}
}

// RequiresAck holds for High and Critical only.
func (t *Taxonomy) RequiresAck(p domain.Priority) bool {
	return p == domain.PriorityHigh || p == domain.PriorityCritical
}

// AckTimeout returns zero for priorities with no timeout enforcement.
func (t *Taxonomy) AckTimeout(p domain.Priority) time.Duration {
	switch p {
	case domain.PriorityCritical:
		return t.ackTimeoutCritical
	case domain.PriorityHigh:
		return t.ackTimeoutHigh
	default:
		return 0
	}
}

func (t *Taxonomy) MaxRetriesOf(p domain.Priority) int {
	switch p {
	case domain.PriorityCritical, domain.PriorityHigh:
		if t.maxRetriesOverride > 0 {
			return t.maxRetriesOverride
		}
		return 3
	case domain.PriorityNormal:
		return 2
	default:
		return 1
	}
}
