package models

import (
	"time"

	"gorm.io/gorm"
)

// SurfaceEvent is one evaluation of the finish detector
type SurfaceEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	CycleID   string         `gorm:"index" json:"cycle_id"`
	Event     string         `gorm:"not null;index" json:"event"` // "created", "paused", "stopped", "destroyed", "timer_fired", "shutdown"
	SurfaceID string         `gorm:"index" json:"surface_id"`
	FromState string         `gorm:"not null" json:"from_state"`
	ToState   string         `gorm:"not null" json:"to_state"`
	Alive     int            `gorm:"not null;default:0" json:"alive"`
	Finished  bool           `gorm:"not null;default:false" json:"finished"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// FinishCycle spans from the first surface created to the confirmed finish
type FinishCycle struct {
	ID              string         `gorm:"primaryKey" json:"id"` // uuid
	StartedAt       time.Time      `gorm:"not null;index" json:"started_at"`
	DrainStartedAt  *time.Time     `json:"drain_started_at,omitempty"`
	FinishedAt      *time.Time     `gorm:"index" json:"finished_at,omitempty"`
	SurfacesCreated int            `gorm:"not null;default:0" json:"surfaces_created"`
	DrainsCanceled  int            `gorm:"not null;default:0" json:"drains_canceled"`
	Shutdown        bool           `gorm:"not null;default:false" json:"shutdown"` // Ended by an explicit shutdown request
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// DrainSeconds returns how long the final drain took, or 0 if unfinished
func (c *FinishCycle) DrainSeconds() float64 {
	if c.DrainStartedAt == nil || c.FinishedAt == nil {
		return 0
	}
	return c.FinishedAt.Sub(*c.DrainStartedAt).Seconds()
}

// CycleSummary aggregates the cycles of a report period
type CycleSummary struct {
	Cycles             int     `json:"cycles"`
	Finished           int     `json:"finished"`
	Shutdowns          int     `json:"shutdowns"`
	SurfacesCreated    int64   `json:"surfaces_created"`
	DrainsCanceled     int64   `json:"drains_canceled"`
	MeanDrainSeconds   float64 `json:"mean_drain_seconds"`
	TotalActiveSeconds int64   `json:"total_active_seconds"`
}

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

type Report struct {
	Period      ReportPeriod   `json:"period"`
	Summary     CycleSummary   `json:"summary"`
	Cycles      []*FinishCycle `json:"cycles"`
	EventCounts map[string]int `json:"event_counts"`
	GeneratedAt time.Time      `json:"generated_at"`
}
