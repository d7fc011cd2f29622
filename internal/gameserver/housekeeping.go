package gameserver

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Housekeeper runs registered maintenance tasks on a fixed interval, outside any
// room's tick loop. Tasks run sequentially in name order within one goroutine.
//
// Invariant: all tasks are invoked at most once per interval.
type Housekeeper struct {
	interval time.Duration
	mu       sync.Mutex
	tasks    map[string]func(now time.Time)
}

// NewHousekeeper returns a Housekeeper that fires every interval.
//
// Precondition: interval must be > 0.
func NewHousekeeper(interval time.Duration) *Housekeeper {
	if interval <= 0 {
		panic("gameserver.NewHousekeeper: interval must be > 0")
	}
	return &Housekeeper{
		interval: interval,
		tasks:    make(map[string]func(time.Time)),
	}
}

// Register adds a task under name. Replaces any existing task.
func (h *Housekeeper) Register(name string, fn func(now time.Time)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks[name] = fn
}

// Unregister removes the task registered under name.
func (h *Housekeeper) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.tasks, name)
}

// RunOnce invokes every registered task with now.
func (h *Housekeeper) RunOnce(now time.Time) {
	h.mu.Lock()
	names := make([]string, 0, len(h.tasks))
	for k := range h.tasks {
		names = append(names, k)
	}
	sort.Strings(names)
	fns := make([]func(time.Time), 0, len(names))
	for _, k := range names {
		fns = append(fns, h.tasks[k])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
}

// Start begins the task loop. Runs until ctx is cancelled.
//
// Postcondition: all registered tasks are invoked once per interval.
func (h *Housekeeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				h.RunOnce(now)
			}
		}
	}()
}
