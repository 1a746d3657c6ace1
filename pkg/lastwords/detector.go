// Package lastwords decides when an application has no live surfaces left
// and tells registered listeners exactly once per finish.
//
// A Detector consumes surface lifecycle events. When the last live surface
// goes away it waits for a grace period, so that moving from one surface to
// the next does not count as finishing, and then flips its finished flag and
// notifies listeners. Events and timer callbacks are expected to arrive on a
// single execution context such as scheduler.Loop.
package lastwords

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/lastwords/lastwords/pkg/scheduler"
	"github.com/lastwords/lastwords/pkg/surface"
)

// DefaultGraceDelay is how long the detector waits after the last surface
// died before it confirms the application finished
const DefaultGraceDelay = 5 * time.Second

// ErrAlreadyInitialized is returned by a second call to Init
var ErrAlreadyInitialized = errors.New("detector already initialized")

// State of the finish state machine
type State int

const (
	// StateFinished means no surface is alive and listeners were notified.
	// A new detector starts here.
	StateFinished State = iota
	// StateActive means at least one surface was alive at the last check
	StateActive
	// StateDraining means no surface is alive and a confirmation is pending
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateFinished:
		return "finished"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// EventKind names what caused an evaluation
type EventKind string

const (
	EventCreated    EventKind = "created"
	EventPaused     EventKind = "paused"
	EventStopped    EventKind = "stopped"
	EventDestroyed  EventKind = "destroyed"
	EventTimerFired EventKind = "timer_fired"
	EventShutdown   EventKind = "shutdown"
)

// Transition describes one evaluation of the state machine
type Transition struct {
	Event    EventKind
	Surface  surface.ID
	From     State
	To       State
	Alive    int
	Finished bool
	At       time.Time
}

// Lifecycle receives surface lifecycle events from the host
type Lifecycle interface {
	OnSurfaceCreated(h surface.Handle)
	OnSurfacePaused(id surface.ID)
	OnSurfaceStopped(id surface.ID)
	OnSurfaceDestroyed(id surface.ID)
}

// LifecycleSource is a host that emits surface lifecycle events
type LifecycleSource interface {
	Subscribe(l Lifecycle) error
}

// Config for a Detector. The zero value is usable.
type Config struct {
	// GraceDelay defaults to DefaultGraceDelay when zero
	GraceDelay time.Duration

	Logger *log.Logger

	// Observer is called after every evaluation, outside all locks
	Observer func(Transition)

	// OnError receives reported errors such as listener panics
	OnError func(error)

	// Now defaults to time.Now
	Now func() time.Time
}

// Detector is the finish state machine
type Detector struct {
	sched     scheduler.Scheduler
	cfg       Config
	logger    *log.Logger
	surfaces  *SurfaceRegistry
	listeners *ListenerRegistry

	finished    atomic.Bool
	initialized atomic.Bool

	mu          sync.Mutex
	state       State
	pending     *scheduler.Timer
	generation  uint64
	override    time.Duration
	hasOverride bool
}

// New creates a detector that schedules its confirmation timer on sched
func New(sched scheduler.Scheduler, cfg Config) *Detector {
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = DefaultGraceDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d := &Detector{
		sched:    sched,
		cfg:      cfg,
		logger:   cfg.Logger,
		surfaces: NewSurfaceRegistry(),
		state:    StateFinished,
	}
	d.listeners = NewListenerRegistry(cfg.Logger, d.report)
	d.finished.Store(true)
	return d
}

// Init subscribes the detector to src. It may be called once.
func (d *Detector) Init(src LifecycleSource) error {
	if !d.initialized.CompareAndSwap(false, true) {
		err := errors.WithStack(ErrAlreadyInitialized)
		d.logger.Printf("[lastwords] Configuration error: %v", err)
		d.report(err)
		return err
	}

	if err := src.Subscribe(d); err != nil {
		d.initialized.Store(false)
		return errors.Wrap(err, "failed to subscribe to lifecycle events")
	}
	return nil
}

// Register adds a finish listener
func (d *Detector) Register(l Listener) {
	d.listeners.Register(l)
}

// Unregister removes a finish listener
func (d *Detector) Unregister(l Listener) {
	d.listeners.Unregister(l)
}

// IsFinished reports whether no surface was alive at the last confirmed check
func (d *Detector) IsFinished() bool {
	return d.finished.Load()
}

// State returns the current state
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// AliveCount returns how many tracked surfaces are alive, without pruning
func (d *Detector) AliveCount() int {
	return d.surfaces.CountAlive()
}

// Surfaces returns the tracked surfaces that are alive
func (d *Detector) Surfaces() []surface.Surface {
	return d.surfaces.Snapshot()
}

// GraceDelay returns the default confirmation delay
func (d *Detector) GraceDelay() time.Duration {
	return d.cfg.GraceDelay
}

// OnSurfaceCreated implements Lifecycle. A new surface cancels any drain in
// progress, and with it the shutdown delay of that drain.
func (d *Detector) OnSurfaceCreated(h surface.Handle) {
	d.finished.Store(false)

	d.mu.Lock()
	from := d.state
	if from == StateDraining {
		d.hasOverride = false
	}
	d.cancelPendingLocked()
	d.surfaces.Put(h)
	d.state = StateActive
	d.mu.Unlock()

	d.observe(EventCreated, h.ID(), from, StateActive)
}

// OnSurfacePaused implements Lifecycle
func (d *Detector) OnSurfacePaused(id surface.ID) {
	d.evaluate(EventPaused, id)
}

// OnSurfaceStopped implements Lifecycle
func (d *Detector) OnSurfaceStopped(id surface.ID) {
	d.evaluate(EventStopped, id)
}

// OnSurfaceDestroyed implements Lifecycle
func (d *Detector) OnSurfaceDestroyed(id surface.ID) {
	d.evaluate(EventDestroyed, id)
}

func (d *Detector) evaluate(event EventKind, id surface.ID) {
	d.mu.Lock()
	from := d.state
	alive := d.surfaces.PruneDead()
	if alive == 0 && !d.finished.Load() {
		d.cancelPendingLocked()
		d.scheduleLocked(d.graceDelayLocked())
		d.state = StateDraining
	}
	to := d.state
	d.mu.Unlock()

	d.observe(event, id, from, to)
}

func (d *Detector) scheduleLocked(delay time.Duration) {
	d.generation++
	gen := d.generation
	d.pending = scheduler.Schedule(d.sched, delay, func() {
		d.confirm(gen)
	})
}

func (d *Detector) confirm(gen uint64) {
	d.mu.Lock()
	from := d.state
	if gen != d.generation {
		d.mu.Unlock()
		return
	}
	d.pending = nil

	if d.surfaces.PruneDead() != 0 || d.finished.Load() {
		to := d.state
		d.mu.Unlock()
		d.observe(EventTimerFired, "", from, to)
		return
	}

	d.surfaces.Clear()
	d.hasOverride = false
	d.state = StateFinished
	d.finished.Store(true)
	d.mu.Unlock()

	d.observe(EventTimerFired, "", from, StateFinished)
	d.logger.Printf("[lastwords] All surfaces finished, notifying %d listeners", d.listeners.Len())
	d.listeners.NotifyAll()
}

func (d *Detector) cancelPendingLocked() {
	if d.pending != nil {
		d.pending.Cancel()
		d.pending = nil
	}
}

func (d *Detector) graceDelayLocked() time.Duration {
	if d.hasOverride {
		return d.override
	}
	return d.cfg.GraceDelay
}

// setShutdownDelay overrides the grace delay until the next finish or until
// a new surface cancels the drain
func (d *Detector) setShutdownDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.override = delay
	d.hasOverride = true
}

// finishNow marks the application finished without a drain. Listeners are
// not notified; the caller decides what runs next.
func (d *Detector) finishNow() {
	d.mu.Lock()
	from := d.state
	d.cancelPendingLocked()
	d.generation++
	d.surfaces.Clear()
	d.hasOverride = false
	d.state = StateFinished
	d.finished.Store(true)
	d.mu.Unlock()

	d.observe(EventShutdown, "", from, StateFinished)
}

func (d *Detector) observe(event EventKind, id surface.ID, from, to State) {
	if d.cfg.Observer == nil {
		return
	}
	d.cfg.Observer(Transition{
		Event:    event,
		Surface:  id,
		From:     from,
		To:       to,
		Alive:    d.surfaces.CountAlive(),
		Finished: d.finished.Load(),
		At:       d.cfg.Now(),
	})
}

func (d *Detector) report(err error) {
	if d.cfg.OnError != nil {
		d.cfg.OnError(err)
	}
}
