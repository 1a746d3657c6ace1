// Package x11 reports top-level X11 windows as surfaces.
//
// A Watcher selects SubstructureNotify on the root window. A newly mapped
// client window is a created surface, an unmapped one is paused when the
// window manager iconified it and stopped otherwise, and a destroyed one is
// destroyed. A window reparented away from the root is destroyed as well;
// its new frame shows up as a fresh map. Asking a window to finish sends it
// WM_DELETE_WINDOW.
package x11

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/lastwords/lastwords/pkg/lastwords"
	"github.com/lastwords/lastwords/pkg/surface"
)

// Poster runs functions on the detector's execution context
type Poster interface {
	Post(fn func()) bool
}

type Config struct {
	// Display defaults to $DISPLAY
	Display string
	// PID limits tracking to windows with this _NET_WM_PID. 0 tracks all.
	PID uint32

	Logger  *log.Logger
	OnError func(error)
}

// Window is a tracked top-level window
type Window struct {
	frame  xproto.Window
	client xproto.Window
	pid    uint32
	class  string

	watcher   *Watcher
	finishing atomic.Bool
	destroyed atomic.Bool
}

func (w *Window) ID() surface.ID {
	return surface.ID(fmt.Sprintf("0x%x", uint32(w.frame)))
}

// Alive reports whether the window is neither destroyed nor asked to close
func (w *Window) Alive() bool {
	return !w.finishing.Load() && !w.destroyed.Load()
}

func (w *Window) RequestFinish() {
	if !w.finishing.CompareAndSwap(false, true) {
		return
	}
	if err := w.watcher.x.deleteWindow(w.client); err != nil {
		w.watcher.report(err)
	}
}

func (w *Window) PID() uint32 {
	return w.pid
}

func (w *Window) Class() string {
	return w.class
}

// Watcher implements lastwords.LifecycleSource for an X display
type Watcher struct {
	cfg    Config
	loop   Poster
	logger *log.Logger

	x    server
	done chan struct{}

	mu        sync.Mutex
	windows   map[xproto.Window]*Window
	lifecycle lastwords.Lifecycle
}

func NewWatcher(cfg Config, loop Poster) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Watcher{
		cfg:     cfg,
		loop:    loop,
		logger:  cfg.Logger,
		done:    make(chan struct{}),
		windows: make(map[xproto.Window]*Window),
	}
}

// Subscribe connects to the display, reports windows that are already mapped
// and starts watching for changes. It may be called once.
func (w *Watcher) Subscribe(l lastwords.Lifecycle) error {
	w.mu.Lock()
	if w.lifecycle != nil {
		w.mu.Unlock()
		return errors.New("x11 watcher already subscribed")
	}
	w.lifecycle = l
	w.mu.Unlock()

	if w.x == nil {
		c, err := dial(w.cfg.Display)
		if err != nil {
			w.mu.Lock()
			w.lifecycle = nil
			w.mu.Unlock()
			return err
		}
		w.x = c
	}

	children, err := w.x.children()
	if err != nil {
		w.report(err)
	}
	for _, win := range children {
		if w.x.viewable(win) {
			w.mapped(win)
		}
	}

	go w.run()
	w.logger.Printf("[x11] Watching root window 0x%x (pid filter %d)", uint32(w.x.root()), w.cfg.PID)
	return nil
}

// Close disconnects from the display and waits for the event loop to exit
func (w *Watcher) Close() error {
	if w.x == nil {
		return nil
	}
	w.x.close()
	<-w.done
	return nil
}

// Len returns the number of tracked windows
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.windows)
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		ev, err := w.x.nextEvent()
		if ev == nil && err == nil {
			w.logger.Println("[x11] Connection closed")
			return
		}
		if err != nil {
			w.report(errors.Wrap(err, "x11 protocol error"))
			continue
		}
		w.dispatch(ev)
	}
}

func (w *Watcher) dispatch(ev xgb.Event) {
	root := w.x.root()

	switch e := ev.(type) {
	case xproto.MapNotifyEvent:
		if e.Event == root && !e.OverrideRedirect {
			w.mapped(e.Window)
		}
	case xproto.UnmapNotifyEvent:
		if e.Event == root {
			w.unmapped(e.Window)
		}
	case xproto.DestroyNotifyEvent:
		if e.Event == root {
			w.retire(e.Window, "destroyed")
		}
	case xproto.ReparentNotifyEvent:
		if e.Event == root && e.Parent != root {
			w.retire(e.Window, "reparented")
		}
	}
}

func (w *Watcher) mapped(frame xproto.Window) {
	w.mu.Lock()
	_, known := w.windows[frame]
	w.mu.Unlock()
	if known {
		return
	}

	clientWin := w.x.clientOf(frame)
	pid := w.x.pid(clientWin)
	if w.cfg.PID != 0 && pid != w.cfg.PID {
		return
	}
	_, class := w.x.class(clientWin)

	win := &Window{
		frame:   frame,
		client:  clientWin,
		pid:     pid,
		class:   class,
		watcher: w,
	}

	w.mu.Lock()
	w.windows[frame] = win
	l := w.lifecycle
	w.mu.Unlock()

	w.logger.Printf("[x11] Window %s mapped (class %q, pid %d)", win.ID(), class, pid)

	handle := surface.Weak(win)
	w.post(func() { l.OnSurfaceCreated(handle) })
}

func (w *Watcher) unmapped(frame xproto.Window) {
	w.mu.Lock()
	win, ok := w.windows[frame]
	l := w.lifecycle
	w.mu.Unlock()
	if !ok {
		return
	}

	id := win.ID()
	if w.x.iconic(win.client) {
		w.post(func() { l.OnSurfacePaused(id) })
		return
	}
	w.post(func() { l.OnSurfaceStopped(id) })
}

func (w *Watcher) retire(frame xproto.Window, reason string) {
	w.mu.Lock()
	win, ok := w.windows[frame]
	delete(w.windows, frame)
	l := w.lifecycle
	w.mu.Unlock()
	if !ok {
		return
	}

	win.destroyed.Store(true)
	id := win.ID()
	w.logger.Printf("[x11] Window %s %s", id, reason)
	w.post(func() { l.OnSurfaceDestroyed(id) })
}

func (w *Watcher) post(fn func()) {
	if !w.loop.Post(fn) {
		w.logger.Println("[x11] Dropping window event, loop stopped")
	}
}

func (w *Watcher) report(err error) {
	w.logger.Printf("[x11] %v", err)
	if w.cfg.OnError != nil {
		w.cfg.OnError(err)
	}
}
