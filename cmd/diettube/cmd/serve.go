package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/diettube/diettube/internal/archive"
	"github.com/diettube/diettube/internal/config"
	"github.com/diettube/diettube/internal/database"
	"github.com/diettube/diettube/internal/ffmpeg"
	internalhttp "github.com/diettube/diettube/internal/http"
	"github.com/diettube/diettube/internal/http/handlers"
	"github.com/diettube/diettube/internal/progress"
	"github.com/diettube/diettube/internal/recovery"
	"github.com/diettube/diettube/internal/repository"
	"github.com/diettube/diettube/internal/scanner"
	"github.com/diettube/diettube/internal/scheduler"
	"github.com/diettube/diettube/internal/settings"
	"github.com/diettube/diettube/internal/tasklog"
	"github.com/diettube/diettube/internal/verify"
	"github.com/diettube/diettube/internal/version"
	"github.com/diettube/diettube/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the diettube server",
	Long: `Start the diettube worker and HTTP API.

The server provides:
- REST API for tasks, queue control, settings, and trash management
- Live task log streaming over SSE
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to")
	serveCmd.Flags().Int("port", 0, "Port to listen on")
	serveCmd.Flags().String("source-dir", "", "Media library root to scan and convert")
	serveCmd.Flags().String("temp-dir", "", "Directory for in-flight encodes and trash")
	serveCmd.Flags().String("config-dir", "", "Directory for the database and durable state")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyServeFlags(cmd, cfg)
	initLogging(cfg)
	logger := slog.Default()

	if err := os.MkdirAll(cfg.Library.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	db, err := database.New(cfg.DatabaseFile(), cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	taskRepo := repository.NewTaskRepository(db.DB)
	statsRepo := repository.NewStatsRepository(db.DB)
	settingsRepo := repository.NewSettingsRepository(db.DB)
	taskLogRepo := repository.NewTaskLogRepository(db.DB)

	startupCtx := context.Background()

	// Recovery runs before the worker touches anything: stuck tasks back to
	// pending, partial outputs wiped, stats rebuilt from the task table.
	if _, err := recovery.Run(startupCtx, taskRepo, statsRepo, cfg.Library, logger); err != nil {
		return fmt.Errorf("running crash recovery: %w", err)
	}

	settingsMgr, err := settings.NewManager(startupCtx, settingsRepo, logger)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	prober := ffmpeg.NewProber(cfg.Encoder.FFprobePath, cfg.Encoder.ProbeTimeout)
	encoder := ffmpeg.NewTranscoder(cfg.Encoder.FFmpegPath, logger)
	verifier := verify.New(prober, cfg.Verify, logger)
	installer := archive.NewInstaller(cfg.Library, cfg.Encoder.OutputExtension, logger)
	trash := archive.NewTrash(cfg.Library.TrashDir())
	tracker := progress.NewTracker()
	journal := tasklog.NewService(taskLogRepo, logger)

	wrk := worker.New(*cfg, taskRepo, statsRepo, settingsMgr, prober, encoder,
		verifier, installer, tracker, journal, logger)

	scn := scanner.New(cfg.Library, cfg.Encoder.Marker, taskRepo, statsRepo,
		prober, settingsMgr, logger)

	sched, err := scheduler.New(scn, cfg.Scan.Schedule, logger)
	if err != nil {
		return fmt.Errorf("initializing scan scheduler: %w", err)
	}

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	handlers.NewHealthHandler(cfg.Library.SourceDir, cfg.Library.TempDir).Register(server.API())
	handlers.NewTasksHandler(taskRepo, statsRepo, wrk, tracker).Register(server.API())
	handlers.NewLogsHandler(journal, logger).Register(server.API(), server.Router())
	handlers.NewScanHandler(scn).Register(server.API())
	handlers.NewQueueHandler(wrk).Register(server.API())
	handlers.NewSettingsHandler(settingsMgr, cfg.Encoder.Marker).Register(server.API())
	handlers.NewTrashHandler(trash).Register(server.API())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	go wrk.Run(ctx)

	sched.Start()
	defer sched.Stop()

	if cfg.Scan.OnStartup {
		if err := scn.ScanAsync(ctx); err != nil {
			logger.Warn("startup scan not started", slog.String("error", err.Error()))
		}
	}

	logger.Info("starting diettube server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("source_dir", cfg.Library.SourceDir),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// applyServeFlags copies explicitly set serve flags over the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	overrideString(flags, "source-dir", &cfg.Library.SourceDir)
	overrideString(flags, "temp-dir", &cfg.Library.TempDir)
	overrideString(flags, "config-dir", &cfg.Library.ConfigDir)
	overrideString(flags, "host", &cfg.Server.Host)
	if flags.Changed("port") {
		if v, err := flags.GetInt("port"); err == nil {
			cfg.Server.Port = v
		}
	}
}
