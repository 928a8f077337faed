// Package api implements the HTTP admin surface for the monitor service.
//
// Routes:
//
//	GET  /status                → orchestrator phase, last summary, cycle log
//	POST /cycles/run            → trigger a cycle now (409 while one runs)
//	POST /scheduler/pause       → skip scheduled ticks
//	POST /scheduler/resume      → resume scheduled ticks
//	POST /scheduler/reschedule  → change the cycle interval
//	GET  /analytics/{profileID} → per-profile match statistics
//	GET  /dashboard             → store-wide counts
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"retrievr/monitor-service/internal/orchestrator"
	"retrievr/monitor-service/internal/scheduler"
	"retrievr/monitor-service/internal/store"
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	orch      *orchestrator.Orchestrator
	sched     *scheduler.Scheduler
	analytics *store.AnalysisStore
}

// NewHandler returns a configured Handler.
func NewHandler(orch *orchestrator.Orchestrator, sched *scheduler.Scheduler, analytics *store.AnalysisStore) *Handler {
	return &Handler{orch: orch, sched: sched, analytics: analytics}
}

// RegisterRoutes mounts all monitor-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/cycles/run", h.handleRunCycle)
	mux.HandleFunc("/scheduler/", h.handleSchedulerAction)
	mux.HandleFunc("/analytics/", h.handleAnalytics)
	mux.HandleFunc("/dashboard", h.handleDashboard)
}

// ─── Route dispatch ──────────────────────────────────────────────────────────

type statusResponse struct {
	orchestrator.Snapshot
	Paused   bool   `json:"paused"`
	Interval string `json:"interval"`
}

// handleStatus handles GET /status
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jsonOK(w, statusResponse{
		Snapshot: h.orch.State().Snapshot(),
		Paused:   h.sched.Paused(),
		Interval: h.sched.Interval(),
	})
}

// handleRunCycle handles POST /cycles/run
func (h *Handler) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.sched.RunNow(); err != nil {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "cycle started"})
}

// handleSchedulerAction handles POST /scheduler/{pause|resume|reschedule}
func (h *Handler) handleSchedulerAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "pause":
		h.sched.Pause()
		jsonOK(w, map[string]string{"status": "paused"})
	case "resume":
		h.sched.Resume()
		jsonOK(w, map[string]string{"status": "resumed"})
	case "reschedule":
		h.reschedule(w, r)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", parts[1]), http.StatusNotFound)
	}
}

// ─── Individual handlers ─────────────────────────────────────────────────────

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IntervalMinutes int `json:"intervalMinutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IntervalMinutes == 0 {
		jsonError(w, "body must contain intervalMinutes", http.StatusBadRequest)
		return
	}

	if err := h.sched.Reschedule(body.IntervalMinutes); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	jsonOK(w, map[string]string{"status": "rescheduled", "interval": h.sched.Interval()})
}

// handleAnalytics handles GET /analytics/{profileID}
func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	stats, err := h.analytics.ProfileAnalytics(r.Context(), parts[1])
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "profile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[api] profileAnalytics error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, stats)
}

// handleDashboard handles GET /dashboard
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.analytics.DashboardStats(r.Context())
	if err != nil {
		log.Printf("[api] dashboardStats error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, stats)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
