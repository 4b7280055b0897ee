package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time so acknowledgement timers are deterministic in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

func SystemClock() Clock { return systemClock{} }

// Dispatcher decouples side-effect work (escalation fan-out, alert mail)
// from the calling goroutine. The default runs each unit on its own
// goroutine; tests substitute a synchronous one.
type Dispatcher interface {
	Go(fn func())
}

type routineDispatcher struct{}

func (routineDispatcher) Go(fn func()) { go fn() }

func AsyncDispatcher() Dispatcher { return routineDispatcher{} }

type syncDispatcher struct{}

func (syncDispatcher) Go(fn func()) { fn() }

func SyncDispatcher() Dispatcher { return syncDispatcher{} }

// timerSet owns the cancellable ack timers, keyed by notification ID.
// Cancelling a timer that already fired is a no-op; the store-order guards
// in the repository resolve that race.
type timerSet struct {
	mu     sync.Mutex
	clock  Clock
	timers map[uuid.UUID]Timer
}

func newTimerSet(clock Clock) *timerSet {
	return &timerSet{
		clock:  clock,
		timers: make(map[uuid.UUID]Timer),
	}
}

// schedule arms a one-shot timer, replacing any pending one for the same
// notification.
func (t *timerSet) schedule(id uuid.UUID, d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.timers[id]; ok {
		old.Stop()
	}
	t.timers[id] = t.clock.AfterFunc(d, func() {
		t.remove(id)
		fn()
	})
}

func (t *timerSet) cancel(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[id]; ok {
		timer.Stop()
		delete(t.timers, id)
	}
}

func (t *timerSet) remove(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.timers, id)
}

func (t *timerSet) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

func (t *timerSet) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
