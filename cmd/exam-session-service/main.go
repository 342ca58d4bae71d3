package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/SAP-F-2025/exam-session-service/internal/cache"
	"github.com/SAP-F-2025/exam-session-service/internal/client"
	"github.com/SAP-F-2025/exam-session-service/internal/config"
	"github.com/SAP-F-2025/exam-session-service/internal/handlers"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-session-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/session"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"github.com/SAP-F-2025/exam-session-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("exam session service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Environment, os.Stdout)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	slogger := utils.ToSlogLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapshots, closeSnapshots, err := openSnapshotStore(ctx, cfg, slogger)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	opts := []client.ClientOption{}
	if cfg.ScoringAPIToken != "" {
		opts = append(opts, client.WithBearerToken(cfg.ScoringAPIToken))
	}
	scoring := client.NewScoringClient(cfg.ScoringAPIURL, slogger, opts...)

	v := validator.New()
	sessionService := services.NewSessionService(session.Config{
		TickInterval:    cfg.TickInterval,
		AutosaveTimeout: cfg.AutosaveTimeout,
		SubmitTimeout:   cfg.SubmitTimeout,
	}, scoring, snapshots, publisher, v, slogger)
	sheetService := services.NewAnswerSheetService(sessionService, slogger)

	var tokenParser handlers.TokenParser
	if cfg.AuthEnabled {
		tokenParser = handlers.NewCasdoorTokenParser(
			cfg.Casdoor.Endpoint,
			cfg.Casdoor.ClientID,
			cfg.Casdoor.ClientSecret,
			cfg.Casdoor.Certificate,
			cfg.Casdoor.Organization,
			cfg.Casdoor.Application,
		)
	} else {
		logger.Warn("Authentication disabled, trusting X-User-ID header")
	}

	router := gin.New()
	router.Use(gin.Recovery(), utils.LoggerMiddleware(logger), utils.ContextLogger(logger))
	handlers.NewHandlerManager(sessionService, sheetService, tokenParser, logger).SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Exam session service listening", "port", cfg.Port, "snapshot_backend", cfg.SnapshotBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down exam session service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "HTTP server shutdown failed")
	}
	return sessionService.Shutdown(shutdownCtx)
}

// openSnapshotStore returns the configured snapshot repository and a
// function releasing its connection.
func openSnapshotStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.SnapshotRepository, func(), error) {
	switch cfg.SnapshotBackend {
	case config.SnapshotBackendPostgres:
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
		return postgres.NewSnapshotPostgreSQL(db), closeFn, nil
	case config.SnapshotBackendMemory:
		logger.Warn("Using in-memory snapshots, practice sessions will not survive a restart")
		return memory.NewSnapshotMemory(), func() {}, nil
	default:
		rdb, err := pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store := cache.NewSnapshotCache(cache.NewRedisCache(rdb, logger), cfg.SnapshotTTL)
		return store, func() { rdb.Close() }, nil
	}
}
