package reporter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/lastwords/lastwords/internal/database"
	"github.com/lastwords/lastwords/internal/models"
	"github.com/lastwords/lastwords/pkg/utils"
)

// Reporter handles report generation
type Reporter struct {
	repo *database.Repository
	now  func() time.Time
}

// New creates a new reporter
func New(repo *database.Repository) *Reporter {
	return &Reporter{
		repo: repo,
		now:  time.Now,
	}
}

// GenerateReport generates a report for the specified period
func (r *Reporter) GenerateReport(periodType string) (*models.Report, error) {
	period, err := GetPeriod(periodType, r.now())
	if err != nil {
		return nil, err
	}

	cycles, err := r.repo.GetCyclesSince(period.Start)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get cycles")
	}

	counts, err := r.repo.CountEventsSince(period.Start)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count events")
	}

	return &models.Report{
		Period:      *period,
		Summary:     Summarize(cycles),
		Cycles:      cycles,
		EventCounts: counts,
		GeneratedAt: r.now(),
	}, nil
}

// Summarize aggregates cycles; the database only stores raw rows
func Summarize(cycles []*models.FinishCycle) models.CycleSummary {
	var summary models.CycleSummary
	var drainTotal float64

	for _, c := range cycles {
		summary.Cycles++
		summary.SurfacesCreated += int64(c.SurfacesCreated)
		summary.DrainsCanceled += int64(c.DrainsCanceled)
		if c.FinishedAt == nil {
			continue
		}
		summary.Finished++
		if c.Shutdown {
			summary.Shutdowns++
		}
		drainTotal += c.DrainSeconds()
		summary.TotalActiveSeconds += int64(c.FinishedAt.Sub(c.StartedAt).Seconds())
	}

	if summary.Finished > 0 {
		summary.MeanDrainSeconds = drainTotal / float64(summary.Finished)
	}
	return summary
}

// GetPeriod calculates the time range for a report relative to now
func GetPeriod(periodType string, now time.Time) (*models.ReportPeriod, error) {
	var start, end time.Time

	switch periodType {
	case "day", "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end = start.Add(24 * time.Hour)

	case "week":
		// Start of week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)

	default:
		return nil, fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.Report) string {
	s := report.Summary

	output := fmt.Sprintf("Finish Report - %s\n", report.Period.Type)
	output += fmt.Sprintf("Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))

	if s.Cycles == 0 {
		output += "\nNo cycles recorded for this period.\n"
		return output
	}

	output += fmt.Sprintf("Cycles: %d (%d finished, %d by shutdown)\n", s.Cycles, s.Finished, s.Shutdowns)
	output += fmt.Sprintf("Surfaces created: %d, drains canceled: %d\n", s.SurfacesCreated, s.DrainsCanceled)
	output += fmt.Sprintf("Mean drain: %.1fs, total active: %s\n\n", s.MeanDrainSeconds, utils.FormatRoundedUnit(s.TotalActiveSeconds))

	output += fmt.Sprintf("%-38s %-17s %10s %9s %8s\n", "Cycle", "Started", "Active", "Surfaces", "Drain")
	output += fmt.Sprintf("%s\n", "--------------------------------------------------------------------------------------")

	for _, c := range report.Cycles {
		active := "open"
		drain := "-"
		if c.FinishedAt != nil {
			active = utils.FormatRoundedUnit(int64(c.FinishedAt.Sub(c.StartedAt).Seconds()))
			drain = fmt.Sprintf("%.1fs", c.DrainSeconds())
		}
		output += fmt.Sprintf("%-38s %-17s %10s %9d %8s\n",
			c.ID,
			c.StartedAt.Format("2006-01-02 15:04"),
			active,
			c.SurfacesCreated,
			drain)
	}

	return output
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal JSON")
	}
	return string(data), nil
}
