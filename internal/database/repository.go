package database

import (
	"time"

	"github.com/lastwords/lastwords/internal/models"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository handles all database operations for the journal
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateEvent inserts a new surface event into the database
func (r *Repository) CreateEvent(event *models.SurfaceEvent) error {
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert surface event")
	}
	return nil
}

// GetEventsSince retrieves all surface events since a given time
func (r *Repository) GetEventsSince(since time.Time) ([]*models.SurfaceEvent, error) {
	var events []*models.SurfaceEvent
	result := r.db.Where("timestamp >= ?", since).Order("timestamp ASC, id ASC").Find(&events)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query surface events")
	}

	return events, nil
}

// GetEventsByCycle retrieves the events recorded for one cycle
func (r *Repository) GetEventsByCycle(cycleID string) ([]*models.SurfaceEvent, error) {
	var events []*models.SurfaceEvent
	result := r.db.Where("cycle_id = ?", cycleID).Order("timestamp ASC, id ASC").Find(&events)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query cycle events")
	}

	return events, nil
}

// CountEventsSince returns event counts grouped by kind
// Uses SQL COUNT for efficiency - runtime does the formatting
func (r *Repository) CountEventsSince(since time.Time) (map[string]int, error) {
	var rows []struct {
		Event string
		Count int
	}

	result := r.db.Model(&models.SurfaceEvent{}).
		Select("event, COUNT(*) as count").
		Where("timestamp >= ?", since).
		Group("event").
		Scan(&rows)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to count surface events")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Event] = row.Count
	}
	return counts, nil
}

// GetLatestEvent retrieves the most recent surface event
func (r *Repository) GetLatestEvent() (*models.SurfaceEvent, error) {
	var event models.SurfaceEvent
	result := r.db.Order("timestamp DESC, id DESC").First(&event)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest event")
	}
	return &event, nil
}

// CreateCycle inserts a new finish cycle
func (r *Repository) CreateCycle(cycle *models.FinishCycle) error {
	result := r.db.Create(cycle)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert finish cycle")
	}
	return nil
}

// UpdateCycle saves an existing finish cycle
func (r *Repository) UpdateCycle(cycle *models.FinishCycle) error {
	result := r.db.Save(cycle)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update finish cycle")
	}
	if result.RowsAffected == 0 {
		return errors.Errorf("cycle %s not found", cycle.ID)
	}
	return nil
}

// GetCycle retrieves a finish cycle by its ID
func (r *Repository) GetCycle(id string) (*models.FinishCycle, error) {
	var cycle models.FinishCycle
	result := r.db.First(&cycle, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, errors.Wrap(result.Error, "failed to get finish cycle")
	}
	return &cycle, nil
}

// GetCyclesSince retrieves all cycles started since a given time
func (r *Repository) GetCyclesSince(since time.Time) ([]*models.FinishCycle, error) {
	var cycles []*models.FinishCycle
	result := r.db.Where("started_at >= ?", since).Order("started_at ASC").Find(&cycles)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query finish cycles")
	}

	return cycles, nil
}

// DeleteOldEvents deletes events older than a specified date (soft delete)
func (r *Repository) DeleteOldEvents(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before).Delete(&models.SurfaceEvent{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to delete old events")
	}
	return result.RowsAffected, nil
}

// CreateErrorLog inserts a new error log into the database
func (r *Repository) CreateErrorLog(errorLog *models.ErrorLog) error {
	result := r.db.Create(errorLog)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert error log")
	}
	return nil
}

// GetRecentErrors returns the newest error logs first
func (r *Repository) GetRecentErrors(limit int) ([]*models.ErrorLog, error) {
	var logs []*models.ErrorLog
	result := r.db.Order("timestamp DESC, id DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query error logs")
	}
	return logs, nil
}

// Clear removes all journal data from the database
func (r *Repository) Clear() error {
	for _, table := range []string{"surface_events", "finish_cycles", "error_logs"} {
		result := r.db.Exec("DELETE FROM " + table)
		if result.Error != nil {
			return errors.Wrapf(result.Error, "failed to clear %s", table)
		}
	}
	return nil
}
