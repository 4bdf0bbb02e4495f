package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dangson92/crawl2/internal/api"
	"github.com/dangson92/crawl2/internal/browser"
	"github.com/dangson92/crawl2/internal/config"
	"github.com/dangson92/crawl2/internal/monitoring"
	"github.com/dangson92/crawl2/internal/scheduler"
	"github.com/dangson92/crawl2/internal/scraper"
	"github.com/dangson92/crawl2/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// run returns instead of exiting so every defer it registers
	// still fires on a late init failure.
	if err := run(logger); err != nil {
		logger.Error("crawler exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}

	// Initialize Storage Layer
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	pgStore, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pgStore.Close()
	redisStore := storage.NewRedisStore(cfg.RedisAddr, time.Duration(cfg.DeduplicationDays)*24*time.Hour)
	defer redisStore.Close()

	// The browser is a hard prerequisite: a missing binary blocks
	// crawling entirely rather than failing task by task.
	launcher, err := browser.NewLauncher(browser.Options{
		Headless:          cfg.Headless,
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: time.Duration(cfg.NavigationTimeout) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer launcher.Close()

	metrics := monitoring.New(prometheus.DefaultRegisterer)
	sink := scheduler.NewLogSink(cfg.GlobalLogCap)
	assembler := scraper.NewAssembler(launcher, time.Duration(cfg.GallerySettleMs)*time.Millisecond, logger)

	orch := scheduler.New(assembler, pgStore, redisStore, sink, metrics, scheduler.Settings{
		Concurrency:  cfg.Concurrency,
		DelayPerTask: time.Duration(cfg.DelayPerTaskSec) * time.Second,
		BatchSize:    cfg.BatchSize,
		BatchPause:   time.Duration(cfg.BatchPauseSec) * time.Second,
	}, logger)
	defer orch.Close()

	// Restore the persisted queue so a restart resumes where it left
	// off.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 15*time.Second)
	restored, err := pgStore.LoadAll(loadCtx, 0, 0)
	loadCancel()
	if err != nil {
		logger.Error("failed to restore persisted tasks", zap.Error(err))
	} else if len(restored) > 0 {
		orch.Restore(restored)
		logger.Info("restored persisted tasks", zap.Int("count", len(restored)))
	}

	server := api.NewServer(cfg, orch, sink, pgStore, redisStore, logger)

	// Graceful Shutdown
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("could not start server: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exiting")
	return nil
}
