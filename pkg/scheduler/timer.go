package scheduler

import (
	"sync"
	"time"
)

type timerState int

const (
	timerPending timerState = iota
	timerCanceled
	timerFired
)

// Timer is a one-shot delayed action that can be canceled before it runs.
// The action either runs completely or not at all.
type Timer struct {
	mu     sync.Mutex
	state  timerState
	stop   Cancel
	action func()
}

// Schedule arranges for action to run once after delay on s
func Schedule(s Scheduler, delay time.Duration, action func()) *Timer {
	t := &Timer{action: action}

	// A short delay can fire on another goroutine before ScheduleOnce
	// returns; holding the lock keeps run from observing a nil stop.
	t.mu.Lock()
	stop := s.ScheduleOnce(delay, t.run)
	t.stop = stop
	t.mu.Unlock()

	return t
}

func (t *Timer) run() {
	t.mu.Lock()
	if t.state != timerPending {
		t.mu.Unlock()
		return
	}
	t.state = timerFired
	t.mu.Unlock()

	t.action()
}

// Cancel prevents the action from running. It returns false if the timer
// already fired or was already canceled.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != timerPending {
		return false
	}
	t.state = timerCanceled
	if t.stop != nil {
		t.stop()
	}
	return true
}

// Fired reports whether the action was invoked
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == timerFired
}

// Canceled reports whether Cancel stopped the timer before it fired
func (t *Timer) Canceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == timerCanceled
}
