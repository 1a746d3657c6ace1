package web

import (
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lastwords/lastwords/internal/config"
	"github.com/lastwords/lastwords/internal/database"
	"github.com/lastwords/lastwords/internal/models"
	"github.com/lastwords/lastwords/internal/reporter"
	"github.com/lastwords/lastwords/pkg/lastwords"
	"github.com/lastwords/lastwords/pkg/surface"
	"github.com/lastwords/lastwords/pkg/utils"
)

// Detector is the read side of the finish detector exposed over HTTP
type Detector interface {
	State() lastwords.State
	AliveCount() int
	Surfaces() []surface.Surface
	GraceDelay() time.Duration
}

// Shutdowner starts a shutdown sequence
type Shutdowner interface {
	RequestShutdown(timeout time.Duration)
}

// ShutdownFunc adapts a function to Shutdowner
type ShutdownFunc func(timeout time.Duration)

func (f ShutdownFunc) RequestShutdown(timeout time.Duration) {
	f(timeout)
}

// Journal is the subset of the tracker service the handler needs
type Journal interface {
	CurrentCycle() string
	MarkShutdown()
}

type Handler struct {
	config   *config.Config
	repo     *database.Repository
	reporter *reporter.Reporter
	detector Detector
	shutdown Shutdowner
	journal  Journal
}

func NewHandler(cfg *config.Config, repo *database.Repository, detector Detector, shutdown Shutdowner, journal Journal) *Handler {
	return &Handler{
		config:   cfg,
		repo:     repo,
		reporter: reporter.New(repo),
		detector: detector,
		shutdown: shutdown,
		journal:  journal,
	}
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.HandleFunc("/api/cycles", h.handleCycles)
	mux.HandleFunc("/api/report", h.handleReport)
	mux.HandleFunc("/api/shutdown", h.handleShutdown)

	mux.HandleFunc("/health", h.handleHealth)

	mux.HandleFunc("/", h.handleIndex)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := h.detector.State()
	live := h.detector.Surfaces()
	ids := make([]string, 0, len(live))
	for _, sf := range live {
		ids = append(ids, string(sf.ID()))
	}

	status := map[string]interface{}{
		"state":         state.String(),
		"finished":      state == lastwords.StateFinished,
		"alive":         h.detector.AliveCount(),
		"surfaces":      ids,
		"grace_delay":   h.detector.GraceDelay().String(),
		"terminate":     h.config.Terminate.Mode,
		"database_path": h.config.Database.Path,
	}
	if h.journal != nil {
		status["cycle"] = h.journal.CurrentCycle()
	}

	if latest, _ := h.repo.GetLatestEvent(); latest != nil {
		status["latest_event"] = map[string]interface{}{
			"event":      latest.Event,
			"surface_id": latest.SurfaceID,
			"to_state":   latest.ToState,
			"timestamp":  latest.Timestamp,
		}
	}

	respondJSON(w, status)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	var events []*models.SurfaceEvent
	var err error

	switch {
	case query.Get("cycle") != "":
		events, err = h.repo.GetEventsByCycle(query.Get("cycle"))
	case query.Get("period") != "":
		period, perr := reporter.GetPeriod(query.Get("period"), time.Now())
		if perr != nil {
			http.Error(w, perr.Error(), http.StatusBadRequest)
			return
		}
		events, err = h.repo.GetEventsSince(period.Start)
	default:
		events, err = h.repo.GetEventsSince(time.Now().Add(-24 * time.Hour))
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch events: %v", err), http.StatusInternalServerError)
		return
	}

	limit := 100 // default
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if len(events) > limit {
		events = events[len(events)-limit:]
	}

	respondJSON(w, events)
}

func (h *Handler) handleCycles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	period, err := reporter.GetPeriod(periodType, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cycles, err := h.repo.GetCyclesSince(period.Start)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch cycles: %v", err), http.StatusInternalServerError)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		h.respondCyclesHTML(w, cycles)
		return
	}

	respondJSON(w, map[string]interface{}{
		"period":  period,
		"summary": reporter.Summarize(cycles),
		"cycles":  cycles,
	})
}

func (h *Handler) respondCyclesHTML(w http.ResponseWriter, cycles []*models.FinishCycle) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if len(cycles) == 0 {
		w.Write([]byte(`<div class="loading">No cycles recorded</div>`))
		return
	}

	out := `<div class="listing">`
	for _, c := range cycles {
		active := "open"
		if c.FinishedAt != nil {
			active = utils.FormatRoundedUnit(int64(c.FinishedAt.Sub(c.StartedAt).Seconds()))
		}
		out += fmt.Sprintf(`
		<div class="cycle-item">
			<span class="cycle-start">%s</span>
			<span class="cycle-active">%s</span>
			<span class="cycle-surfaces">%d surfaces</span>
		</div>`, html.EscapeString(c.StartedAt.Format("15:04:05")), active, c.SurfacesCreated)
	}
	out += `</div>`

	summary := reporter.Summarize(cycles)
	out += fmt.Sprintf(`<div class="total">%d cycles, mean drain %.1fs</div>`, summary.Cycles, summary.MeanDrainSeconds)

	w.Write([]byte(out))
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	report, err := h.reporter.GenerateReport(periodType)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(h.reporter.FormatReportText(report)))
		return
	}

	respondJSON(w, report)
}

func (h *Handler) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	timeout := h.config.ShutdownTimeout()
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		parsed, err := parseTimeout(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		timeout = parsed
	}

	if h.journal != nil {
		h.journal.MarkShutdown()
	}
	h.shutdown.RequestShutdown(timeout)
	log.Printf("[web] Shutdown requested with timeout %s", utils.FormatDelay(timeout))

	respondJSONStatus(w, http.StatusAccepted, map[string]string{
		"status":  "shutdown requested",
		"timeout": timeout.String(),
	})
}

// parseTimeout accepts plain milliseconds or a Go duration string
func parseTimeout(raw string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", raw)
	}
	return d, nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	page := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>LastWords</title>
    <script src="https://unpkg.com/htmx.org@1.9.10"></script>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: #f5f5f5;
            color: #333;
            padding: 20px;
        }
        .report-box {
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            padding: 24px;
            max-width: 640px;
        }
        .cycle-item {
            display: flex;
            justify-content: space-between;
            padding: 8px;
            border-bottom: 1px solid #eee;
        }
        .loading { color: #7f8c8d; font-style: italic; }
        .total { margin-top: 16px; font-weight: 600; color: #2c3e50; }
    </style>
</head>
<body>
    <h1>LastWords</h1>
    <div class="report-box">
        <h2>Today's cycles</h2>
        <div hx-get="/api/cycles?period=today" hx-trigger="load, every 10s" hx-swap="innerHTML">
            <div class="loading">Loading...</div>
        </div>
    </div>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(page))
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	body, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error encoding JSON: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}
