package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dangson92/crawl2/internal/config"
	"github.com/dangson92/crawl2/internal/scheduler"
	"github.com/dangson92/crawl2/internal/storage"
	"go.uber.org/zap"
)

// Server holds the dependencies for the operator-facing HTTP API.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	orch       *scheduler.Orchestrator
	sink       *scheduler.LogSink
	pgStore    *storage.PostgresStore
	redisStore *storage.RedisStore
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, orch *scheduler.Orchestrator, sink *scheduler.LogSink, ps *storage.PostgresStore, rs *storage.RedisStore, l *zap.Logger) *Server {
	s := &Server{
		config:     cfg,
		orch:       orch,
		sink:       sink,
		pgStore:    ps,
		redisStore: rs,
		logger:     l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
