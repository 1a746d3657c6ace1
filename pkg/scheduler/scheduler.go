// Package scheduler provides the execution context for lifecycle events and
// the one-shot delayed tasks used to debounce them.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Cancel stops a scheduled task. It reports whether the task was stopped
// before it was handed to its execution context.
type Cancel func() bool

// Scheduler runs a function once after a delay
type Scheduler interface {
	// ScheduleOnce arranges for fn to run after delay on the scheduler's
	// execution context
	ScheduleOnce(delay time.Duration, fn func()) Cancel
}

// Loop serializes posted functions onto a single goroutine. Lifecycle events
// and timer fires share the loop so the detector never races itself.
type Loop struct {
	queue   chan func()
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewLoop creates a loop with room for size pending functions
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post queues fn for execution on the loop. It returns false once the loop
// has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return false
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// ScheduleOnce implements Scheduler. The delay is measured on the wall clock
// and fn is posted to the loop when it expires.
func (l *Loop) ScheduleOnce(delay time.Duration, fn func()) Cancel {
	t := time.AfterFunc(delay, func() {
		if !l.Post(fn) {
			log.Printf("[scheduler] Dropping timer callback, loop stopped")
		}
	})
	return t.Stop
}

// Run executes posted functions until ctx is done
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			l.invoke(fn)
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] Recovered panic in loop task: %v", r)
		}
	}()
	fn()
}

func (l *Loop) stop() {
	close(l.done)
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}
