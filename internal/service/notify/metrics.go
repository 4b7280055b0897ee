package notify

import (
	"sync"
	"time"

	"clinic-notify/internal/domain"
)

// Recorder keeps running lifecycle counters plus a bounded rolling window of
// delivery-time samples for an approximate moving average.
type Recorder struct {
	mu sync.Mutex

	sent         uint64
	delivered    uint64
	read         uint64
	acknowledged uint64
	failed       uint64
	escalated    uint64

	samples []time.Duration
	next    int
	count   int
}

func NewRecorder(window int) *Recorder {
	if window <= 0 {
		window = 1000
	}
	return &Recorder{samples: make([]time.Duration, window)}
}

func (r *Recorder) IncSent() {
	r.mu.Lock()
	r.sent++
	r.mu.Unlock()
}

func (r *Recorder) IncRead() {
	r.mu.Lock()
	r.read++
	r.mu.Unlock()
}

// AddRead covers bulk mark-all-read.
func (r *Recorder) AddRead(n uint64) {
	r.mu.Lock()
	r.read += n
	r.mu.Unlock()
}

func (r *Recorder) IncAcknowledged() {
	r.mu.Lock()
	r.acknowledged++
	r.mu.Unlock()
}

func (r *Recorder) IncFailed() {
	r.mu.Lock()
	r.failed++
	r.mu.Unlock()
}

func (r *Recorder) IncEscalated() {
	r.mu.Lock()
	r.escalated++
	r.mu.Unlock()
}

// RecordDelivery counts one delivery and folds its latency into the window,
// evicting the oldest sample once full.
func (r *Recorder) RecordDelivery(d time.Duration) {
	r.mu.Lock()
	r.delivered++
	r.samples[r.next] = d
	r.next = (r.next + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
	r.mu.Unlock()
}

func (r *Recorder) Snapshot() domain.MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sum time.Duration
	for i := 0; i < r.count; i++ {
		sum += r.samples[i]
	}
	var avgMs float64
	if r.count > 0 {
		avgMs = float64(sum.Milliseconds()) / float64(r.count)
	}

	return domain.MetricsSnapshot{
		TotalSent:         r.sent,
		TotalDelivered:    r.delivered,
		TotalRead:         r.read,
		TotalAcknowledged: r.acknowledged,
		TotalFailed:       r.failed,
		TotalEscalated:    r.escalated,
		AvgDeliveryMs:     avgMs,
		SampleCount:       r.count,
		DeliveredRate:     rate(r.delivered, r.sent),
		ReadRate:          rate(r.read, r.delivered),
		AcknowledgedRate:  rate(r.acknowledged, r.delivered),
		FailedRate:        rate(r.failed, r.sent),
	}
}

func rate(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// BuildAggregate derives the same rates from durable event-log counts; the
// slow path used to detect drift between memory and ground truth.
func BuildAggregate(since time.Time, counts map[domain.LogEvent]int64) domain.MetricsAggregate {
	return domain.MetricsAggregate{
		Since:            since,
		Counts:           counts,
		DeliveredRate:    rate64(counts[domain.LogDelivered], counts[domain.LogSent]),
		ReadRate:         rate64(counts[domain.LogRead], counts[domain.LogDelivered]),
		AcknowledgedRate: rate64(counts[domain.LogAcknowledged], counts[domain.LogDelivered]),
		FailedRate:       rate64(counts[domain.LogFailed], counts[domain.LogSent]),
	}
}

func rate64(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
