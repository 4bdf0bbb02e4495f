package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dangson92/crawl2/internal/domain"
	"github.com/dangson92/crawl2/internal/export"
	"github.com/dangson92/crawl2/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// addURLsRequest is the JSON form of the enqueue call. A text/plain
// body with newline-delimited URLs is accepted too.
type addURLsRequest struct {
	URLs  []string `json:"urls"`
	Force bool     `json:"force"`
}

// taskSummary is the list view of a task; the full log stream is only
// on the detail endpoint.
type taskSummary struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Status     domain.TaskStatus `json:"status"`
	Progress   int               `json:"progress"`
	Error      string            `json:"error,omitempty"`
	LogCount   int               `json:"log_count"`
	HasResult  bool              `json:"has_result"`
	CreatedAt  time.Time         `json:"created_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

func summarize(t *domain.Task) taskSummary {
	return taskSummary{
		ID:         t.ID,
		URL:        t.URL,
		Status:     t.Status,
		Progress:   t.Progress,
		Error:      t.Error,
		LogCount:   len(t.Logs),
		HasResult:  t.Result != nil,
		CreatedAt:  t.CreatedAt,
		FinishedAt: t.FinishedAt,
	}
}

func (s *Server) handleAddURLs(w http.ResponseWriter, r *http.Request) {
	var req addURLsRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	} else {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Could not read request body")
			return
		}
		req.URLs = strings.Split(string(body), "\n")
		req.Force = r.URL.Query().Get("force") == "true"
	}

	var urls []string
	for _, raw := range req.URLs {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if _, err := url.ParseRequestURI(u); err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Invalid URL in list: "+u)
			return
		}
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "URL list cannot be empty")
		return
	}

	created := s.orch.Add(r.Context(), urls, req.Force)
	summaries := make([]taskSummary, len(created))
	for i, t := range created {
		summaries[i] = summarize(t)
	}
	s.respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"queued":  len(created),
		"skipped": len(urls) - len(created),
		"tasks":   summaries,
	})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	removed := s.orch.Clear()
	s.respondWithJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.orch.Start()
	s.respondWithJSON(w, http.StatusOK, map[string]string{"state": s.controlState()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.orch.Pause()
	s.respondWithJSON(w, http.StatusOK, map[string]string{"state": s.controlState()})
}

func (s *Server) handleControlState(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]string{"state": s.controlState()})
}

func (s *Server) controlState() string {
	if s.orch.Running() {
		return "running"
	}
	return "stopped"
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.orch.Snapshot()
	summaries := make([]taskSummary, len(tasks))
	for i, t := range tasks {
		summaries[i] = summarize(t)
	}
	s.respondWithJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.orch.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondWithError(w, http.StatusNotFound, "Task not found")
		return
	}
	s.respondWithJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.orch.Cancel(id) {
		s.respondWithError(w, http.StatusConflict, "Task is not in flight")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"cancelled": id})
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleResetTasks(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "ids list is required")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]int{"reset": s.orch.Reset(req.IDs)})
}

func (s *Server) handleDeleteTasks(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.IDs) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "ids list is required")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]int{"deleted": s.orch.Delete(req.IDs)})
}

func (s *Server) handleGlobalLogs(w http.ResponseWriter, r *http.Request) {
	n := 100
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			n = parsed
		}
	}
	s.respondWithJSON(w, http.StatusOK, s.sink.Tail(n))
}

// settingsPayload is the API shape of the pacing knobs, delays in
// seconds.
type settingsPayload struct {
	Concurrency       int `json:"concurrency"`
	DelayPerTaskSec   int `json:"delay_per_task_seconds"`
	BatchSize         int `json:"batch_size"`
	BatchPauseSeconds int `json:"batch_pause_seconds"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current := s.orch.Settings()
	s.respondWithJSON(w, http.StatusOK, settingsPayload{
		Concurrency:       current.Concurrency,
		DelayPerTaskSec:   int(current.DelayPerTask / time.Second),
		BatchSize:         current.BatchSize,
		BatchPauseSeconds: int(current.BatchPause / time.Second),
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	err := s.orch.UpdateSettings(scheduler.Settings{
		Concurrency:  payload.Concurrency,
		DelayPerTask: time.Duration(payload.DelayPerTaskSec) * time.Second,
		BatchSize:    payload.BatchSize,
		BatchPause:   time.Duration(payload.BatchPauseSeconds) * time.Second,
	})
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondWithJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"state": s.controlState(),
		"queue": s.orch.Counts(),
	}
	if s.pgStore != nil {
		if stored, err := s.pgStore.Stats(r.Context()); err != nil {
			s.logger.Error("failed to read store stats", zap.Error(err))
		} else {
			response["stored"] = stored
		}
	}
	s.respondWithJSON(w, http.StatusOK, response)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	tasks := s.orch.Snapshot()
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="hotels.json"`)
		if err := export.WriteJSON(w, tasks); err != nil {
			s.logger.Error("json export failed", zap.Error(err))
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="hotels.csv"`)
		if err := export.WriteCSV(w, tasks); err != nil {
			s.logger.Error("csv export failed", zap.Error(err))
		}
	default:
		s.respondWithError(w, http.StatusBadRequest, "Unknown export format: "+format)
	}
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if s.pgStore != nil {
		if err := s.pgStore.Ping(ctx); err != nil {
			healthStatus["postgres"] = "unhealthy"
			s.logger.Error("health check failed for postgres", zap.Error(err))
		} else {
			healthStatus["postgres"] = "healthy"
		}
	}
	if s.redisStore != nil {
		if err := s.redisStore.Ping(ctx); err != nil {
			healthStatus["redis"] = "unhealthy"
			s.logger.Error("health check failed for redis", zap.Error(err))
		} else {
			healthStatus["redis"] = "healthy"
		}
	}

	for _, v := range healthStatus {
		if v != "healthy" {
			s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
			return
		}
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
