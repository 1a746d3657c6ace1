package lastwords

import (
	"log"
	"sync"

	"github.com/pkg/errors"
)

// Listener is notified when the application has no live surfaces left
type Listener interface {
	OnFinished()
}

// FuncListener adapts a function to Listener. Use a pointer so that the
// listener has an identity for Unregister.
type FuncListener struct {
	fn func()
}

// ListenerFunc wraps fn in a registrable listener
func ListenerFunc(fn func()) *FuncListener {
	return &FuncListener{fn: fn}
}

// OnFinished implements Listener
func (l *FuncListener) OnFinished() {
	l.fn()
}

// ListenerRegistry holds finish listeners behind its own lock so that a
// listener may unregister itself, or call back into the detector, while
// being notified.
type ListenerRegistry struct {
	mu        sync.Mutex
	listeners map[Listener]struct{}
	logger    *log.Logger
	onError   func(error)
}

// NewListenerRegistry creates an empty registry. onError receives panics
// recovered from listeners; it may be nil.
func NewListenerRegistry(logger *log.Logger, onError func(error)) *ListenerRegistry {
	if logger == nil {
		logger = log.Default()
	}
	return &ListenerRegistry{
		listeners: make(map[Listener]struct{}),
		logger:    logger,
		onError:   onError,
	}
}

// Register adds l. Registering the same listener twice has no effect.
func (r *ListenerRegistry) Register(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[l] = struct{}{}
}

// Unregister removes l if present
func (r *ListenerRegistry) Unregister(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, l)
}

// Len returns the number of registered listeners
func (r *ListenerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// NotifyAll calls every listener registered at the time of the call. A
// listener removed concurrently may still be called once.
func (r *ListenerRegistry) NotifyAll() {
	r.mu.Lock()
	snapshot := make([]Listener, 0, len(r.listeners))
	for l := range r.listeners {
		snapshot = append(snapshot, l)
	}
	r.mu.Unlock()

	for _, l := range snapshot {
		if err := r.notify(l); err != nil {
			r.logger.Printf("[lastwords] Listener failed: %v", err)
			if r.onError != nil {
				r.onError(err)
			}
		}
	}
}

func (r *ListenerRegistry) notify(l Listener) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = errors.Wrapf(e, "listener %T panicked", l)
				return
			}
			err = errors.Errorf("listener %T panicked: %v", l, rec)
		}
	}()
	l.OnFinished()
	return nil
}
