package database

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lastwords/lastwords/internal/models"

	"gorm.io/gorm"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := Connect(dsn)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	return NewRepository(db)
}

func TestEvents(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	events := []*models.SurfaceEvent{
		{Timestamp: base, CycleID: "c1", Event: "created", SurfaceID: "0x1", FromState: "finished", ToState: "active", Alive: 1},
		{Timestamp: base.Add(time.Second), CycleID: "c1", Event: "destroyed", SurfaceID: "0x1", FromState: "active", ToState: "draining"},
		{Timestamp: base.Add(6 * time.Second), CycleID: "c1", Event: "timer_fired", FromState: "draining", ToState: "finished", Finished: true},
		{Timestamp: base.Add(time.Hour), CycleID: "c2", Event: "created", SurfaceID: "0x2", FromState: "finished", ToState: "active", Alive: 1},
	}
	for _, e := range events {
		if err := repo.CreateEvent(e); err != nil {
			t.Fatalf("CreateEvent() error: %v", err)
		}
	}

	got, err := repo.GetEventsSince(base.Add(time.Second))
	if err != nil {
		t.Fatalf("GetEventsSince() error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("GetEventsSince() returned %d events, want 3", len(got))
	}

	byCycle, err := repo.GetEventsByCycle("c1")
	if err != nil {
		t.Fatalf("GetEventsByCycle() error: %v", err)
	}
	if len(byCycle) != 3 || byCycle[2].Event != "timer_fired" {
		t.Errorf("GetEventsByCycle(c1) = %d events, want 3 ending in timer_fired", len(byCycle))
	}

	counts, err := repo.CountEventsSince(base)
	if err != nil {
		t.Fatalf("CountEventsSince() error: %v", err)
	}
	if counts["created"] != 2 || counts["destroyed"] != 1 || counts["timer_fired"] != 1 {
		t.Errorf("CountEventsSince() = %v", counts)
	}

	latest, err := repo.GetLatestEvent()
	if err != nil {
		t.Fatalf("GetLatestEvent() error: %v", err)
	}
	if latest == nil || latest.CycleID != "c2" {
		t.Errorf("GetLatestEvent() = %+v, want the c2 event", latest)
	}

	deleted, err := repo.DeleteOldEvents(base.Add(time.Minute))
	if err != nil {
		t.Fatalf("DeleteOldEvents() error: %v", err)
	}
	if deleted != 3 {
		t.Errorf("DeleteOldEvents() = %d, want 3", deleted)
	}
}

func TestGetLatestEventEmpty(t *testing.T) {
	repo := newTestRepository(t)

	latest, err := repo.GetLatestEvent()
	if err != nil {
		t.Fatalf("GetLatestEvent() error: %v", err)
	}
	if latest != nil {
		t.Errorf("GetLatestEvent() = %+v on an empty table, want nil", latest)
	}
}

func TestCycles(t *testing.T) {
	repo := newTestRepository(t)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	cycle := &models.FinishCycle{ID: "8b7f7c1e-0000-4000-8000-000000000001", StartedAt: start, SurfacesCreated: 1}
	if err := repo.CreateCycle(cycle); err != nil {
		t.Fatalf("CreateCycle() error: %v", err)
	}

	drain := start.Add(time.Minute)
	finished := drain.Add(5 * time.Second)
	cycle.DrainStartedAt = &drain
	cycle.FinishedAt = &finished
	cycle.SurfacesCreated = 3
	if err := repo.UpdateCycle(cycle); err != nil {
		t.Fatalf("UpdateCycle() error: %v", err)
	}

	got, err := repo.GetCycle(cycle.ID)
	if err != nil {
		t.Fatalf("GetCycle() error: %v", err)
	}
	if got.SurfacesCreated != 3 {
		t.Errorf("SurfacesCreated = %d, want 3", got.SurfacesCreated)
	}
	if got.DrainSeconds() != 5 {
		t.Errorf("DrainSeconds() = %v, want 5", got.DrainSeconds())
	}

	if _, err := repo.GetCycle("missing"); err != gorm.ErrRecordNotFound {
		t.Errorf("GetCycle(missing) error = %v, want ErrRecordNotFound", err)
	}

	cycles, err := repo.GetCyclesSince(start)
	if err != nil {
		t.Fatalf("GetCyclesSince() error: %v", err)
	}
	if len(cycles) != 1 {
		t.Errorf("GetCyclesSince() returned %d cycles, want 1", len(cycles))
	}
}

func TestErrorLogsAndClear(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	for i, msg := range []string{"first", "second"} {
		err := repo.CreateErrorLog(&models.ErrorLog{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Source:    "x11",
			ErrorMsg:  msg,
		})
		if err != nil {
			t.Fatalf("CreateErrorLog() error: %v", err)
		}
	}

	logs, err := repo.GetRecentErrors(1)
	if err != nil {
		t.Fatalf("GetRecentErrors() error: %v", err)
	}
	if len(logs) != 1 || logs[0].ErrorMsg != "second" {
		t.Errorf("GetRecentErrors(1) = %+v, want the second error", logs)
	}

	if err := repo.CreateEvent(&models.SurfaceEvent{Timestamp: now, Event: "created", FromState: "finished", ToState: "active"}); err != nil {
		t.Fatalf("CreateEvent() error: %v", err)
	}
	if err := repo.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	events, _ := repo.GetEventsSince(time.Time{})
	logs, _ = repo.GetRecentErrors(10)
	if len(events) != 0 || len(logs) != 0 {
		t.Errorf("Clear() left %d events and %d error logs", len(events), len(logs))
	}
}
