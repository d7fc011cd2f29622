package gameserver

import (
	"sync"
	"time"
)

// DefaultTickHz is the simulation rate used when none is configured.
const DefaultTickHz = 60

// TickSource broadcasts the wall-clock time of each simulation tick to subscribed
// rooms. A subscriber that has not consumed its previous tick misses the current
// one; the room catches up on its next tick because the raid integrates over
// elapsed time.
type TickSource struct {
	hz          int
	interval    time.Duration
	mu          sync.Mutex
	subscribers map[chan<- time.Time]struct{}
	dropped     uint64
}

// NewTickSource creates a stopped TickSource firing hz times per second.
//
// Precondition: hz > 0.
// Postcondition: Returns a non-nil *TickSource ready to Start().
func NewTickSource(hz int) *TickSource {
	if hz <= 0 {
		panic("gameserver.NewTickSource: hz must be > 0")
	}
	return &TickSource{
		hz:          hz,
		interval:    time.Second / time.Duration(hz),
		subscribers: make(map[chan<- time.Time]struct{}),
	}
}

// Hz returns the tick rate.
func (t *TickSource) Hz() int { return t.hz }

// Interval returns the time between ticks.
func (t *TickSource) Interval() time.Duration { return t.interval }

// Subscribe registers ch to receive each tick.
// If ch is full, the tick is dropped for that subscriber (non-blocking).
//
// Precondition: ch must not be nil.
func (t *TickSource) Subscribe(ch chan<- time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers[ch] = struct{}{}
}

// Unsubscribe removes ch from the subscriber list.
func (t *TickSource) Unsubscribe(ch chan<- time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subscribers, ch)
}

// Subscribers returns the number of subscribed channels.
func (t *TickSource) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscribers)
}

// Dropped returns the number of ticks skipped because a subscriber was busy.
func (t *TickSource) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}

// Broadcast delivers now to every subscriber without blocking.
//
// Postcondition: each subscriber either received now or was skipped because its
// channel was full.
func (t *TickSource) Broadcast(now time.Time) {
	t.mu.Lock()
	subs := make([]chan<- time.Time, 0, len(t.subscribers))
	for ch := range t.subscribers {
		subs = append(subs, ch)
	}
	t.mu.Unlock()

	var dropped uint64
	for _, ch := range subs {
		select {
		case ch <- now:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		t.mu.Lock()
		t.dropped += dropped
		t.mu.Unlock()
	}
}

// Start launches the tick goroutine and returns a stop function.
// Calling stop() is idempotent.
//
// Postcondition: Broadcast is called once per interval until stop() is called.
func (t *TickSource) Start() (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				t.Broadcast(now)
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
	}
}
