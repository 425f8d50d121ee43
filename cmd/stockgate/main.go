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

	"github.com/hibiken/asynq"

	"github.com/stockgate/stockgate/internal/adjustment"
	"github.com/stockgate/stockgate/internal/app"
	"github.com/stockgate/stockgate/internal/auth"
	"github.com/stockgate/stockgate/internal/ledger"
	"github.com/stockgate/stockgate/internal/notify"
	"github.com/stockgate/stockgate/internal/observability"
	"github.com/stockgate/stockgate/internal/platform/cache"
	"github.com/stockgate/stockgate/internal/platform/db"
	"github.com/stockgate/stockgate/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)
	emitter := notify.NewEmitter(asynqClient, logger)

	ledgerRepo := ledger.NewRepository(pool)
	adjustmentRepo := adjustment.NewRepository(pool)
	sequencer := adjustment.NewRedisSequencer(redisClient)
	threshold := adjustment.NewThreshold(cfg.ApprovalThreshold)

	service := adjustment.NewService(adjustmentRepo, threshold, sequencer, emitter, auditLogger, idemStore, nil)

	authMiddleware := auth.NewMiddleware(logger, auth.NewRepository(pool))
	adjustmentHandler := adjustment.NewHandler(logger, service, metrics)
	ledgerHandler := ledger.NewHandler(logger, ledgerRepo)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthMiddleware:    authMiddleware,
		AdjustmentHandler: adjustmentHandler,
		LedgerHandler:     ledgerHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("stockgate listening",
		slog.String("addr", cfg.AppAddr),
		slog.Float64("approval_threshold", cfg.ApprovalThreshold))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
