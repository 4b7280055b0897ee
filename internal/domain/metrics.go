package domain

import "time"

// MetricsSnapshot is the point-in-time view of the in-memory recorder.
type MetricsSnapshot struct {
	TotalSent         uint64 `json:"total_sent"`
	TotalDelivered    uint64 `json:"total_delivered"`
	TotalRead         uint64 `json:"total_read"`
	TotalAcknowledged uint64 `json:"total_acknowledged"`
	TotalFailed       uint64 `json:"total_failed"`
	TotalEscalated    uint64 `json:"total_escalated"`

	AvgDeliveryMs float64 `json:"avg_delivery_ms"`
	SampleCount   int     `json:"sample_count"`

	DeliveredRate    float64 `json:"delivered_rate"`
	ReadRate         float64 `json:"read_rate"`
	AcknowledgedRate float64 `json:"acknowledged_rate"`
	FailedRate       float64 `json:"failed_rate"`
}

// MetricsAggregate holds the same rates recomputed from the durable event
// log, for drift detection against the in-memory counters.
type MetricsAggregate struct {
	Since            time.Time          `json:"since"`
	Counts           map[LogEvent]int64 `json:"counts"`
	DeliveredRate    float64            `json:"delivered_rate"`
	ReadRate         float64            `json:"read_rate"`
	AcknowledgedRate float64            `json:"acknowledged_rate"`
	FailedRate       float64            `json:"failed_rate"`
}

type MetricsReport struct {
	Live    MetricsSnapshot  `json:"live"`
	Last24h MetricsAggregate `json:"last_24h"`
}
