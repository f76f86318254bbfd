package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/practice-engine/internal/api"
	"github.com/terra-clan/practice-engine/internal/cache"
	"github.com/terra-clan/practice-engine/internal/cleanup"
	"github.com/terra-clan/practice-engine/internal/config"
	"github.com/terra-clan/practice-engine/internal/execution"
	"github.com/terra-clan/practice-engine/internal/questions"
	"github.com/terra-clan/practice-engine/internal/session"
	"github.com/terra-clan/practice-engine/internal/storage"
	"github.com/terra-clan/practice-engine/internal/telemetry"
)

// questionSource is a question store that can also be browsed
type questionSource interface {
	storage.QuestionStore
	storage.Catalog
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting practice-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"questions", cfg.Questions.Source,
		"remote_execution", cfg.Execution.Remote,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	if cfg.Telemetry.Enabled {
		if err := telemetry.Init(initCtx, telemetry.Config{
			Enabled:     true,
			Endpoint:    cfg.Telemetry.Endpoint,
			ServiceName: cfg.Telemetry.ServiceName,
			Insecure:    cfg.Telemetry.Insecure,
		}); err != nil {
			slog.Warn("failed to initialize tracing", "error", err)
		}
	}

	ready := make(map[string]api.Pinger)

	sessions, err := openSessionStore(initCtx, cfg)
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	ready["sessions"] = sessions

	bank, closeQuestions, err := openQuestionStore(initCtx, cfg)
	if err != nil {
		slog.Error("failed to open question store", "error", err)
		os.Exit(1)
	}

	var snapshots session.SnapshotCache
	var redisCache *cache.RedisSnapshotCache
	if cfg.Redis.Address != "" {
		redisCache, err = cache.NewRedisSnapshotCache(initCtx, cache.RedisConfig{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			slog.Warn("snapshot cache disabled", "error", err)
		} else {
			snapshots = redisCache
			ready["redis"] = redisCache
		}
	}

	strategy, closeStrategy, err := buildStrategy(initCtx, cfg.Execution)
	if err != nil {
		slog.Error("failed to set up code execution", "error", err)
		os.Exit(1)
	}

	manager := session.NewManager(session.ManagerOptions{
		Questions:      bank,
		Sessions:       sessions,
		History:        sessions,
		Strategy:       strategy,
		Cache:          snapshots,
		TickInterval:   cfg.Session.TickInterval,
		PersistTimeout: cfg.Session.PersistTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleaner := cleanup.NewCleaner(manager, cfg.Session.CleanupInterval, cfg.Session.Retention, cfg.Session.MaxIdle)
	cleaner.Start(ctx)

	server := api.NewServer(cfg.Server, api.Deps{
		Sessions: manager,
		Catalog:  bank,
		History:  sessions,
		Ready:    ready,
		RunRate:  cfg.Session.RunRate,
		RunBurst: cfg.Session.RunBurst,
	})
	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Abort running sessions while the stores are still open
	manager.Shutdown()

	closeStrategy()
	closeQuestions()
	if redisCache != nil {
		redisCache.Close()
	}
	if err := sessions.Close(); err != nil {
		slog.Error("session store close error", "error", err)
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}

	slog.Info("practice-engine stopped")
}

// openSessionStore connects to PostgreSQL when a DSN is configured and
// falls back to process memory otherwise.
func openSessionStore(ctx context.Context, cfg *config.Config) (storage.SessionRepository, error) {
	if cfg.Database.DSN == "" {
		slog.Warn("no database configured, session history is kept in memory")
		return storage.NewMemoryStore(), nil
	}

	repo, err := storage.NewPostgresSessionStore(ctx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxConns),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Database.MigrateOnBoot {
		slog.Info("running database migrations")
		if err := storage.RunMigrations(ctx, repo.Pool(), storage.Migrations()); err != nil {
			repo.Close()
			return nil, err
		}
	}

	slog.Info("database connected successfully")
	return repo, nil
}

// openQuestionStore returns the configured question source and its closer
func openQuestionStore(ctx context.Context, cfg *config.Config) (questionSource, func(), error) {
	switch cfg.Questions.Source {
	case config.QuestionsPostgres:
		store, err := storage.NewPostgresQuestionStore(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}

		if cfg.Questions.Seed {
			if err := seedQuestions(ctx, store, cfg.Questions.Dir); err != nil {
				store.Close()
				return nil, nil, err
			}
		}

		return store, func() { store.Close() }, nil

	default:
		bank := questions.NewBank()
		if err := bank.LoadFromDir(cfg.Questions.Dir); err != nil {
			return nil, nil, err
		}
		if bank.Len() == 0 {
			slog.Warn("question bank is empty", "dir", cfg.Questions.Dir)
		}
		return bank, func() {}, nil
	}
}

// seedQuestions imports the YAML bank into PostgreSQL
func seedQuestions(ctx context.Context, store *storage.PostgresQuestionStore, dir string) error {
	bank := questions.NewBank()
	if err := bank.LoadFromDir(dir); err != nil {
		return err
	}

	topics, err := bank.Topics(ctx)
	if err != nil {
		return err
	}
	all, err := bank.GetQuestions(ctx, "", "", 0)
	if err != nil {
		return err
	}

	return store.Import(ctx, topics, all)
}

// buildStrategy assembles the remote strategy (if any) followed by the
// in-process fallback.
func buildStrategy(ctx context.Context, cfg config.ExecutionConfig) (execution.Strategy, func(), error) {
	var strategies []execution.Strategy
	closeFn := func() {}

	switch cfg.Remote {
	case config.RemoteHTTP:
		sandbox := execution.NewHTTPSandbox(cfg.RemoteURL, nil)
		strategies = append(strategies, execution.NewRemoteSandbox(sandbox, cfg.RemoteTimeout, cfg.MemoryLimitMB))
		slog.Info("remote execution enabled", "transport", "http", "url", cfg.RemoteURL)

	case config.RemoteDocker:
		sandbox, err := execution.NewDockerSandbox(execution.DockerConfig{
			Host:          cfg.DockerHost,
			Image:         cfg.DockerImage,
			MemoryLimitMB: cfg.MemoryLimitMB,
			PidsLimit:     int64(cfg.PidsLimit),
			PullImage:     cfg.PullImage,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := sandbox.EnsureImage(ctx); err != nil {
			// Runs still fall back to the local strategy
			slog.Warn("runtime image unavailable", "image", cfg.DockerImage, "error", err)
		}
		strategies = append(strategies, execution.NewRemoteSandbox(sandbox, cfg.RemoteTimeout, cfg.MemoryLimitMB))
		closeFn = func() { sandbox.Close() }
		slog.Info("remote execution enabled", "transport", "docker", "image", cfg.DockerImage)
	}

	if cfg.LocalFallback {
		strategies = append(strategies, execution.NewLocalInProcess(cfg.LocalTimeout))
	}

	return execution.NewFallback(strategies...), closeFn, nil
}
