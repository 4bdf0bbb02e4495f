package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/api/health", s.handleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/queue", s.handleAddURLs)
		r.Delete("/queue", s.handleClearQueue)

		r.Post("/control/start", s.handleStart)
		r.Post("/control/pause", s.handlePause)
		r.Get("/control", s.handleControlState)

		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Post("/tasks/{id}/cancel", s.handleCancelTask)
		r.Post("/tasks/reset", s.handleResetTasks)
		r.Post("/tasks/delete", s.handleDeleteTasks)

		r.Get("/logs", s.handleGlobalLogs)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
		r.Get("/stats", s.handleStats)
		r.Get("/export", s.handleExport)
	})

	return r
}
