// Command renderqueued runs the render job queue and pipeline orchestrator
// as a standalone HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CheapNud/shotcutrenderqueue/internal/bootstrap"
	"github.com/CheapNud/shotcutrenderqueue/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting render queue orchestrator",
		slog.Int("port", cfg.Port),
		slog.String("store_path", cfg.StorePath),
		slog.String("temp_dir", cfg.TempDir),
		slog.Int("max_concurrent_renders", cfg.MaxConcurrentRenders),
	)

	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("running crash-recovery pass",
		slog.String("owner_process_id", deps.OwnerProcessID),
		slog.String("owner_host_id", deps.OwnerHostID),
	)
	if err := deps.Recoverer.Run(ctx, deps.OwnerProcessID, deps.OwnerHostID); err != nil {
		return fmt.Errorf("crash recovery: %w", err)
	}

	schedErrCh := make(chan error, 1)
	go func() {
		if err := deps.Scheduler.Run(ctx); err != nil {
			schedErrCh <- fmt.Errorf("scheduler stopped: %w", err)
			return
		}
		schedErrCh <- nil
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      deps.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE progress streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErrCh <- fmt.Errorf("server failed: %w", err)
			return
		}
		srvErrCh <- nil
	}()

	schedDone := false
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		if err != nil {
			return err
		}
	case err := <-schedErrCh:
		schedDone = true
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
	}

	stop()
	if !schedDone {
		if err := <-schedErrCh; err != nil {
			logger.Error("scheduler shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("render queue orchestrator stopped gracefully")
	return nil
}
