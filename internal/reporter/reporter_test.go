package reporter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lastwords/lastwords/internal/database"
	"github.com/lastwords/lastwords/internal/models"
)

func ptr(t time.Time) *time.Time {
	return &t
}

func TestGetPeriod(t *testing.T) {
	// Wednesday
	now := time.Date(2026, 10, 21, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		period    string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{"day", time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC), false},
		{"today", time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC), false},
		{"week", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC), false},
		{"month", time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), false},
		{"year", time.Time{}, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			p, err := GetPeriod(tt.period, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetPeriod() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !p.Start.Equal(tt.wantStart) || !p.End.Equal(tt.wantEnd) {
				t.Errorf("GetPeriod(%s) = %v..%v, want %v..%v", tt.period, p.Start, p.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestGetPeriodWeekOnSunday(t *testing.T) {
	sunday := time.Date(2026, 10, 25, 8, 0, 0, 0, time.UTC)
	p, err := GetPeriod("week", sunday)
	if err != nil {
		t.Fatalf("GetPeriod() error: %v", err)
	}
	if p.Start.Weekday() != time.Monday || p.Start.Day() != 19 {
		t.Errorf("week start = %v, want Monday the 19th", p.Start)
	}
}

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)
	cycles := []*models.FinishCycle{
		{ID: "a", StartedAt: base, DrainStartedAt: ptr(base.Add(time.Hour)), FinishedAt: ptr(base.Add(time.Hour + 5*time.Second)), SurfacesCreated: 4, DrainsCanceled: 2},
		{ID: "b", StartedAt: base.Add(2 * time.Hour), DrainStartedAt: ptr(base.Add(3 * time.Hour)), FinishedAt: ptr(base.Add(3*time.Hour + time.Second)), SurfacesCreated: 1, Shutdown: true},
		{ID: "c", StartedAt: base.Add(4 * time.Hour), SurfacesCreated: 2},
	}

	s := Summarize(cycles)

	if s.Cycles != 3 || s.Finished != 2 || s.Shutdowns != 1 {
		t.Errorf("Cycles/Finished/Shutdowns = %d/%d/%d, want 3/2/1", s.Cycles, s.Finished, s.Shutdowns)
	}
	if s.SurfacesCreated != 7 || s.DrainsCanceled != 2 {
		t.Errorf("SurfacesCreated/DrainsCanceled = %d/%d, want 7/2", s.SurfacesCreated, s.DrainsCanceled)
	}
	if s.MeanDrainSeconds != 3 {
		t.Errorf("MeanDrainSeconds = %v, want 3", s.MeanDrainSeconds)
	}
	if s.TotalActiveSeconds != 3605+3601 {
		t.Errorf("TotalActiveSeconds = %d, want %d", s.TotalActiveSeconds, 3605+3601)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Cycles != 0 || s.MeanDrainSeconds != 0 {
		t.Errorf("Summarize(nil) = %+v, want zero value", s)
	}
}

func TestFormatReport(t *testing.T) {
	r := &Reporter{}
	base := time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)
	report := &models.Report{
		Period: models.ReportPeriod{Start: base, End: base.Add(24 * time.Hour), Type: "day"},
		Cycles: []*models.FinishCycle{
			{ID: "c1", StartedAt: base, DrainStartedAt: ptr(base.Add(90 * time.Minute)), FinishedAt: ptr(base.Add(90*time.Minute + 5*time.Second)), SurfacesCreated: 3},
			{ID: "c2", StartedAt: base.Add(2 * time.Hour), SurfacesCreated: 1},
		},
		EventCounts: map[string]int{"created": 4},
	}
	report.Summary = Summarize(report.Cycles)

	text := r.FormatReportText(report)
	for _, want := range []string{"Finish Report - day", "Cycles: 2 (1 finished, 0 by shutdown)", "c1", "open", "5.0s"} {
		if !strings.Contains(text, want) {
			t.Errorf("FormatReportText() missing %q:\n%s", want, text)
		}
	}

	data, err := r.FormatReportJSON(report)
	if err != nil {
		t.Fatalf("FormatReportJSON() error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		t.Fatalf("FormatReportJSON() produced invalid JSON: %v", err)
	}
	if _, ok := decoded["summary"]; !ok {
		t.Error("JSON report has no summary")
	}
}

func TestFormatReportTextEmpty(t *testing.T) {
	r := &Reporter{}
	report := &models.Report{Period: models.ReportPeriod{Type: "week"}}

	if text := r.FormatReportText(report); !strings.Contains(text, "No cycles recorded") {
		t.Errorf("FormatReportText() = %q, want the empty message", text)
	}
}

func TestGenerateReport(t *testing.T) {
	db, err := database.Connect("file:reporter_generate?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer db.Close()
	if err := db.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	repo := database.NewRepository(db)

	now := time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)
	if err := repo.CreateCycle(&models.FinishCycle{ID: "today", StartedAt: now.Add(-time.Hour), SurfacesCreated: 2}); err != nil {
		t.Fatalf("CreateCycle() error: %v", err)
	}
	if err := repo.CreateCycle(&models.FinishCycle{ID: "old", StartedAt: now.AddDate(0, 0, -3)}); err != nil {
		t.Fatalf("CreateCycle() error: %v", err)
	}
	if err := repo.CreateEvent(&models.SurfaceEvent{Timestamp: now.Add(-time.Hour), CycleID: "today", Event: "created", FromState: "finished", ToState: "active"}); err != nil {
		t.Fatalf("CreateEvent() error: %v", err)
	}

	r := New(repo)
	r.now = func() time.Time { return now }

	report, err := r.GenerateReport("day")
	if err != nil {
		t.Fatalf("GenerateReport() error: %v", err)
	}
	if report.Summary.Cycles != 1 || report.Cycles[0].ID != "today" {
		t.Errorf("GenerateReport(day) cycles = %+v, want only today", report.Cycles)
	}
	if report.EventCounts["created"] != 1 {
		t.Errorf("EventCounts = %v, want created=1", report.EventCounts)
	}

	if _, err := r.GenerateReport("fortnight"); err == nil {
		t.Error("GenerateReport(fortnight) error = nil")
	}
}
