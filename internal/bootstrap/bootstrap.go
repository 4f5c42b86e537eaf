// Package bootstrap wires the orchestrator's dependency graph: the job
// store, stage set, pipeline executor, work queue, event broker, scheduler,
// crash recoverer, controller, and HTTP layer.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/CheapNud/shotcutrenderqueue/internal/api"
	"github.com/CheapNud/shotcutrenderqueue/internal/config"
	"github.com/CheapNud/shotcutrenderqueue/internal/controller"
	"github.com/CheapNud/shotcutrenderqueue/internal/events"
	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
	"github.com/CheapNud/shotcutrenderqueue/internal/queue"
	"github.com/CheapNud/shotcutrenderqueue/internal/recovery"
	"github.com/CheapNud/shotcutrenderqueue/internal/sched"
	"github.com/CheapNud/shotcutrenderqueue/internal/stage"
	"github.com/CheapNud/shotcutrenderqueue/internal/store"
	"github.com/CheapNud/shotcutrenderqueue/internal/storage"
	"github.com/CheapNud/shotcutrenderqueue/internal/supervisor"
)

// Dependencies holds every initialized component the HTTP server and the
// crash-recovery pass need at startup.
type Dependencies struct {
	Store      store.JobStore
	TempDir    *storage.TempDirManager
	Queue      *queue.WorkQueue
	Broker     *events.Broker
	Scheduler  *sched.Scheduler
	Recoverer  *recovery.Recoverer
	Controller *controller.Controller
	Router     http.Handler

	OwnerProcessID string
	OwnerHostID    string
}

// NewDependencies creates and wires all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	st, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("create job store: %w", err)
	}
	logger.Info("job store opened", slog.String("path", cfg.StorePath))

	tempDir, err := storage.NewTempDirManager(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create temp dir manager: %w", err)
	}
	logger.Info("temp directory manager ready", slog.String("root", tempDir.Root()))

	stages := buildStageSet(cfg, tempDir, logger)
	logStageAvailability(cfg, logger)

	exec := pipeline.NewExecutor(stages)
	wq := queue.New(cfg.WorkQueueCapacity)
	broker := events.NewBroker()

	schedCfg := sched.Config{
		Concurrency:          int64(cfg.MaxConcurrentRenders),
		OwnerProcessID:       strconv.Itoa(os.Getpid()),
		ShutdownGrace:        cfg.ShutdownDrain(),
		ProgressEventFloor:   cfg.ProgressEventFloor(),
		ProgressPersistFloor: cfg.ProgressPersistFloor(),
	}
	if hostname, err := os.Hostname(); err == nil {
		schedCfg.OwnerHostID = hostname
	}

	scheduler := sched.New(schedCfg, st, wq, exec, broker, logger)
	recoverer := recovery.New(st, wq, logger)
	ctrl := controller.New(st, wq, scheduler, broker, tempDir)

	handlers := api.NewHandlers(ctrl, logger)
	router := api.NewRouter(handlers, logger, api.DefaultConfig())

	return &Dependencies{
		Store:          st,
		TempDir:        tempDir,
		Queue:          wq,
		Broker:         broker,
		Scheduler:      scheduler,
		Recoverer:      recoverer,
		Controller:     ctrl,
		Router:         router,
		OwnerProcessID: schedCfg.OwnerProcessID,
		OwnerHostID:    schedCfg.OwnerHostID,
	}, nil
}

// buildStageSet constructs one Stage implementation per variant a job's
// flags can select, each backed by a supervisor with the grace window
// appropriate to its tool weight: the timeline renderer and AI backends are
// heavy, the encoder run on its own for classic upscale is auxiliary.
func buildStageSet(cfg *config.Config, tempDir *storage.TempDirManager, logger *slog.Logger) pipeline.StageSet {
	heavySup := &supervisor.Supervisor{GraceWindow: cfg.GraceStopHeavy()}
	auxSup := &supervisor.Supervisor{GraceWindow: cfg.GraceStopAux()}

	timelineRender := &stage.TimelineRender{
		ToolPath: cfg.TimelineRendererPath,
		Sup:      heavySup,
		TempDir:  tempDir.Root(),
		Logger:   logger,
	}

	upscaleClassic := &stage.Upscale{
		Variant:         job.UpscaleClassic,
		EncoderToolPath: cfg.EncoderPath,
		Sup:             auxSup,
	}
	upscaleAnime := &stage.Upscale{
		Variant:         job.UpscaleAIAnime,
		BackendToolPath: cfg.UpscaleAIAnimePath,
		EncoderToolPath: cfg.EncoderPath,
		Sup:             heavySup,
	}
	upscalePhoto := &stage.Upscale{
		Variant:         job.UpscaleAIPhoto,
		BackendToolPath: cfg.UpscaleAIPhotoPath,
		EncoderToolPath: cfg.EncoderPath,
		Sup:             heavySup,
	}
	interpolate := &stage.Interpolate{
		BackendToolPath: cfg.InterpolateBackendPath,
		EncoderToolPath: cfg.EncoderPath,
		Sup:             heavySup,
	}

	return pipeline.StageSet{
		TimelineRender: timelineRender,
		UpscaleAIAnime: upscaleAnime,
		UpscaleAIPhoto: upscalePhoto,
		UpscaleClassic: upscaleClassic,
		Interpolate:    interpolate,
	}
}

// logStageAvailability warns at startup about optional tool paths left
// unconfigured, so a misconfigured deployment gets a clear signal instead of
// every matching job silently failing preflight one at a time.
func logStageAvailability(cfg *config.Config, logger *slog.Logger) {
	if cfg.UpscaleAIAnimePath == "" {
		logger.Warn("TOOL_UPSCALE_AI_ANIME_PATH not configured; ai_anime upscale jobs will fail preflight")
	}
	if cfg.UpscaleAIPhotoPath == "" {
		logger.Warn("TOOL_UPSCALE_AI_PHOTO_PATH not configured; ai_photo upscale jobs will fail preflight")
	}
	if cfg.InterpolateBackendPath == "" {
		logger.Warn("TOOL_INTERPOLATE_BACKEND_PATH not configured; interpolate jobs will fail preflight")
	}
}
