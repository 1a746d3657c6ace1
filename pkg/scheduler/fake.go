package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced clock. Scheduled functions run synchronously
// inside Advance, in due-time order, on the caller's goroutine.
type Fake struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*fakeTask
}

type fakeTask struct {
	due time.Duration
	seq int
	fn  func()
}

// NewFake creates a fake scheduler at time zero
func NewFake() *Fake {
	return &Fake{}
}

// ScheduleOnce implements Scheduler
func (f *Fake) ScheduleOnce(delay time.Duration, fn func()) Cancel {
	f.mu.Lock()
	defer f.mu.Unlock()

	if delay < 0 {
		delay = 0
	}
	f.seq++
	task := &fakeTask{due: f.now + delay, seq: f.seq, fn: fn}
	f.tasks = append(f.tasks, task)

	return func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, t := range f.tasks {
			if t == task {
				f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
				return true
			}
		}
		return false
	}
}

// Advance moves the clock forward by d, running every task that falls due
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now + d
	f.mu.Unlock()

	for {
		task := f.popDue(target)
		if task == nil {
			break
		}
		task.fn()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// Now returns the elapsed fake time
func (f *Fake) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Pending returns the number of scheduled tasks that have not run
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func (f *Fake) popDue(target time.Duration) *fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.tasks) == 0 {
		return nil
	}
	sort.Slice(f.tasks, func(i, j int) bool {
		if f.tasks[i].due == f.tasks[j].due {
			return f.tasks[i].seq < f.tasks[j].seq
		}
		return f.tasks[i].due < f.tasks[j].due
	})
	next := f.tasks[0]
	if next.due > target {
		return nil
	}
	f.tasks = f.tasks[1:]
	if next.due > f.now {
		f.now = next.due
	}
	return next
}
