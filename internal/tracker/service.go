package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lastwords/lastwords/internal/database"
	"github.com/lastwords/lastwords/internal/models"
	"github.com/lastwords/lastwords/pkg/lastwords"
)

const queueSize = 256

// Service journals detector transitions. Observe is called on the detector's
// loop and only queues; Start drains the queue into the database.
type Service struct {
	repo     *database.Repository
	events   chan lastwords.Transition
	stopChan chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	running bool
	cycle   *models.FinishCycle
	dropped int

	shutdownRequested bool
}

func NewService(repo *database.Repository) *Service {
	return &Service{
		repo:     repo,
		events:   make(chan lastwords.Transition, queueSize),
		stopChan: make(chan struct{}),
	}
}

// Observe queues a transition for journaling. It never blocks.
func (s *Service) Observe(tr lastwords.Transition) {
	select {
	case s.events <- tr:
	default:
		s.mu.Lock()
		s.dropped++
		dropped := s.dropped
		s.mu.Unlock()
		log.Printf("[journal] Queue full, dropped %s event (%d dropped so far)", tr.Event, dropped)
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("journal is already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	log.Println("Starting journal")

	for {
		select {
		case <-ctx.Done():
			s.flush()
			log.Println("Journal stopped by context")
			return ctx.Err()

		case <-s.stopChan:
			s.flush()
			log.Println("Journal stopped")
			return nil

		case tr := <-s.events:
			if err := s.record(tr); err != nil {
				s.storeError("journal", err)
			}
		}
	}
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CurrentCycle returns the id of the open cycle, or "" between cycles
func (s *Service) CurrentCycle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cycle == nil {
		return ""
	}
	return s.cycle.ID
}

// MarkShutdown flags the open cycle as ended by an explicit shutdown request.
// The flag is consumed by the next shutdown or finish transition.
func (s *Service) MarkShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownRequested = true
}

// ReportError stores err in the error log. It is safe for concurrent use.
func (s *Service) ReportError(source string, err error) {
	s.storeError(source, err)
}

// ErrorReporter returns a callback that stores errors under source
func (s *Service) ErrorReporter(source string) func(error) {
	return func(err error) {
		s.storeError(source, err)
	}
}

func (s *Service) flush() {
	for {
		select {
		case tr := <-s.events:
			if err := s.record(tr); err != nil {
				s.storeError("journal", err)
			}
		default:
			return
		}
	}
}

func (s *Service) record(tr lastwords.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tr.Event == lastwords.EventCreated {
		if s.cycle == nil {
			s.cycle = &models.FinishCycle{
				ID:        uuid.New().String(),
				StartedAt: tr.At,
			}
			if err := s.repo.CreateCycle(s.cycle); err != nil {
				return errors.Wrap(err, "failed to open cycle")
			}
			log.Printf("[journal] Cycle %s started", s.cycle.ID)
		}
		if tr.From == lastwords.StateDraining {
			s.cycle.DrainsCanceled++
			s.cycle.DrainStartedAt = nil
		}
		s.cycle.SurfacesCreated++
	}

	if tr.To == lastwords.StateDraining && tr.From != lastwords.StateDraining && s.cycle != nil {
		at := tr.At
		s.cycle.DrainStartedAt = &at
	}

	event := &models.SurfaceEvent{
		Timestamp: tr.At,
		Event:     string(tr.Event),
		SurfaceID: string(tr.Surface),
		FromState: tr.From.String(),
		ToState:   tr.To.String(),
		Alive:     tr.Alive,
		Finished:  tr.Finished,
	}
	if s.cycle != nil {
		event.CycleID = s.cycle.ID
	}
	if err := s.repo.CreateEvent(event); err != nil {
		return errors.Wrap(err, "failed to save event")
	}

	if s.cycle == nil {
		if tr.Event == lastwords.EventShutdown {
			s.shutdownRequested = false
		}
		return nil
	}

	if tr.To == lastwords.StateFinished && tr.From != lastwords.StateFinished {
		at := tr.At
		s.cycle.FinishedAt = &at
		s.cycle.Shutdown = tr.Event == lastwords.EventShutdown || s.shutdownRequested
		cycle := s.cycle
		s.cycle = nil
		s.shutdownRequested = false
		if err := s.repo.UpdateCycle(cycle); err != nil {
			return errors.Wrap(err, "failed to close cycle")
		}
		log.Printf("[journal] Cycle %s finished (%d surfaces, %d canceled drains)",
			cycle.ID, cycle.SurfacesCreated, cycle.DrainsCanceled)
		return nil
	}

	if err := s.repo.UpdateCycle(s.cycle); err != nil {
		return errors.Wrap(err, "failed to update cycle")
	}
	return nil
}

func (s *Service) storeError(source string, err error) {
	errorLog := &models.ErrorLog{
		Timestamp: time.Now(),
		Source:    source,
		ErrorMsg:  err.Error(),
		CreatedAt: time.Now(),
	}

	if dbErr := s.repo.CreateErrorLog(errorLog); dbErr != nil {
		log.Printf("Failed to store error in database: %v (original error: %v)", dbErr, err)
	} else {
		log.Printf("Error logged to database: %v", err)
	}
}
