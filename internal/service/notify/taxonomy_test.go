package notify

import (
	"testing"
	"time"

	"clinic-notify/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestTaxonomyPriorities(t *testing.T) {
	tax := NewTaxonomy(0, 0, 0)

	assert.Equal(t, domain.PriorityCritical, tax.PriorityOf(domain.NotifXrayReady))
	assert.Equal(t, domain.PriorityHigh, tax.PriorityOf(domain.NotifAppointmentCancelled))
	assert.Equal(t, domain.PriorityHigh, tax.PriorityOf(domain.NotifXrayResultSent))
	assert.Equal(t, domain.PriorityHigh, tax.PriorityOf(domain.NotifEscalationAlert))
	assert.Equal(t, domain.PriorityLow, tax.PriorityOf(domain.NotifDetailedBillingEnabled))
	assert.Equal(t, domain.PriorityNormal, tax.PriorityOf(domain.NotifPaymentCreated))
	assert.Equal(t, domain.PriorityNormal, tax.PriorityOf(domain.NotifTreatmentCompleted))
}

func TestTaxonomyAckPolicy(t *testing.T) {
	tax := NewTaxonomy(45*time.Second, 2*time.Minute, 5)

	assert.True(t, tax.RequiresAck(domain.PriorityCritical))
	assert.True(t, tax.RequiresAck(domain.PriorityHigh))
	assert.False(t, tax.RequiresAck(domain.PriorityNormal))
	assert.False(t, tax.RequiresAck(domain.PriorityLow))

	assert.Equal(t, 45*time.Second, tax.AckTimeout(domain.PriorityCritical))
	assert.Equal(t, 2*time.Minute, tax.AckTimeout(domain.PriorityHigh))
	assert.Equal(t, time.Duration(0), tax.AckTimeout(domain.PriorityNormal))

	assert.Equal(t, 5, tax.MaxRetriesOf(domain.PriorityCritical))
	assert.Equal(t, 5, tax.MaxRetriesOf(domain.PriorityHigh))
	assert.Equal(t, 2, tax.MaxRetriesOf(domain.PriorityNormal))
	assert.Equal(t, 1, tax.MaxRetriesOf(domain.PriorityLow))
}

func TestTaxonomyDefaultsWhenUnconfigured(t *testing.T) {
	tax := NewTaxonomy(0, 0, 0)

	assert.Equal(t, 30*time.Second, tax.AckTimeout(domain.PriorityCritical))
	assert.Equal(t, 60*time.Second, tax.AckTimeout(domain.PriorityHigh))
	assert.Equal(t, 3, tax.MaxRetriesOf(domain.PriorityCritical))
}

func TestTaxonomyActionURLs(t *testing.T) {
	tax := NewTaxonomy(0, 0, 0)

	assert.Equal(t, "/appointments/a1",
		tax.ActionURLOf(domain.NotifAppointmentCreated, map[string]any{"appointment_id": "a1"}))
	assert.Equal(t, "/appointments",
		tax.ActionURLOf(domain.NotifAppointmentCancelled, nil))
	assert.Equal(t, "/xrays/x9",
		tax.ActionURLOf(domain.NotifXrayReady, map[string]any{"xray_id": "x9"}))
	assert.Equal(t, "/payments/p3",
		tax.ActionURLOf(domain.NotifPaymentUpdated, map[string]any{"payment_id": "p3"}))
	assert.Equal(t, "/treatments",
		tax.ActionURLOf(domain.NotifTreatmentCostUpdated, nil))
	assert.Equal(t, "/billing",
		tax.ActionURLOf(domain.NotifDetailedBillingEnabled, nil))
	assert.Equal(t, "/notifications/n4",
		tax.ActionURLOf(domain.NotifEscalationAlert, map[string]any{"notification_id": "n4"}))
}
