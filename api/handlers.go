package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/warp/lesson-reconciler/store/sqlite"
)

// Handler serves the admin API: health, run history, manual trigger.
type Handler struct {
	Store     *sqlite.Store
	Scheduler *DailyScheduler
	Log       *zap.Logger
}

func NewHandler(store *sqlite.Store, scheduler *DailyScheduler, log *zap.Logger) *Handler {
	return &Handler{Store: store, Scheduler: scheduler, Log: log}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runResponse struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	StaffProcessed   int        `json:"staffProcessed"`
	ClientsProcessed int        `json:"clientsProcessed"`
	ClientsFailed    int        `json:"clientsFailed"`
	ClientsNotified  int        `json:"clientsNotified"`
	LessonsPaid      int        `json:"lessonsPaid"`
	ReportsSent      int        `json:"reportsSent"`
	Error            string     `json:"error,omitempty"`
}

// ListRuns returns run history, most recent first. Optional ?limit=N.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		h.Log.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			ID:               run.ID,
			Status:           run.Status,
			StartedAt:        run.StartedAt,
			CompletedAt:      run.CompletedAt,
			StaffProcessed:   run.StaffProcessed,
			ClientsProcessed: run.ClientsProcessed,
			ClientsFailed:    run.ClientsFailed,
			ClientsNotified:  run.ClientsNotified,
			LessonsPaid:      run.LessonsPaid,
			ReportsSent:      run.ReportsSent,
			Error:            run.Error,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// TriggerRun starts a reconciliation run in the background and returns
// immediately. The run record appears in /api/runs once it starts.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	// Detached from the request context: the run outlives the request.
	go func() {
		if err := h.Scheduler.RunNow(context.Background()); err != nil {
			h.Log.Error("triggered run failed", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
