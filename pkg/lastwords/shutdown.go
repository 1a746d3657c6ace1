package lastwords

import (
	"sync"
	"time"
)

// Shutdown closes every live surface and runs a termination action once the
// detector confirms the application finished.
type Shutdown struct {
	detector  *Detector
	terminate func()
}

// NewShutdown creates an orchestrator. terminate runs at most once per
// RequestShutdown call and is not waited on.
func NewShutdown(d *Detector, terminate func()) *Shutdown {
	return &Shutdown{
		detector:  d,
		terminate: terminate,
	}
}

type oneShot struct {
	once sync.Once
	fn   func(l *oneShot)
}

func (o *oneShot) OnFinished() {
	o.once.Do(func() { o.fn(o) })
}

// RequestShutdown asks every live surface to finish. timeout replaces the
// grace delay for this sequence only. Zero confirms as soon as the last
// surface is gone and a negative timeout counts as zero. With no live
// surface the termination action runs before RequestShutdown returns.
func (s *Shutdown) RequestShutdown(timeout time.Duration) {
	d := s.detector

	listener := &oneShot{fn: func(l *oneShot) {
		d.Unregister(l)
		d.logger.Printf("[shutdown] Application finished, terminating")
		s.terminate()
	}}
	d.Register(listener)

	alive := d.surfaces.Snapshot()
	if len(alive) == 0 {
		d.logger.Printf("[shutdown] No live surfaces, terminating immediately")
		d.finishNow()
		listener.OnFinished()
		return
	}

	if timeout < 0 {
		timeout = 0
	}
	d.setShutdownDelay(timeout)
	d.logger.Printf("[shutdown] Requesting %d surfaces to finish (grace %v)", len(alive), timeout)
	for _, sf := range alive {
		sf.RequestFinish()
	}
}
