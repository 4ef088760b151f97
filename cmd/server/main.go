package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mailforge/campaign-pipeline/internal/aggregator"
	"github.com/mailforge/campaign-pipeline/internal/api"
	"github.com/mailforge/campaign-pipeline/internal/config"
	"github.com/mailforge/campaign-pipeline/internal/crypto"
	"github.com/mailforge/campaign-pipeline/internal/db"
	"github.com/mailforge/campaign-pipeline/internal/eventbus"
	"github.com/mailforge/campaign-pipeline/internal/mailer"
	"github.com/mailforge/campaign-pipeline/internal/metrics"
	"github.com/mailforge/campaign-pipeline/internal/queue"
	"github.com/mailforge/campaign-pipeline/internal/replicator"
	"github.com/mailforge/campaign-pipeline/internal/repository"
	"github.com/mailforge/campaign-pipeline/internal/service"
	"github.com/mailforge/campaign-pipeline/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cipher, err := crypto.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal("invalid encryption key", zap.Error(err))
	}

	campaigns := repository.NewPgCampaignRepository(pool)
	sendLogs := repository.NewPgSendLogRepository(pool)
	senders := repository.NewPgSenderSnapshotRepository(pool)
	recipients := repository.NewPgRecipientSnapshotRepository(pool)

	bus := eventbus.New(logger)
	q := queue.New(queue.Config{
		Capacity:           cfg.QueueCapacity,
		MaxAttempts:        cfg.MaxAttempts,
		BaseBackoff:        cfg.BaseBackoff,
		CompletedRetention: cfg.CompletedRetention,
		DeadRetention:      cfg.DeadRetention,
	}, logger)
	metrics.ObserveQueue(reg, q)

	svc := service.NewCampaignService(campaigns, senders, recipients, sendLogs, q, logger)

	// ---- background goroutines ----
	// Context for everything long-running; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	replicator.NewSenderReplicator(senders, logger).Start(bus)
	replicator.NewRecipientReplicator(recipients, logger).Start(bus)

	agg := aggregator.New(campaigns, sendLogs, logger)
	agg.Start(bus)
	go agg.Run(workerCtx, cfg.SweepInterval)

	go q.RunJanitor(workerCtx, cfg.JanitorInterval)

	onSent, onFailed, onSkipped := m.WorkerHooks()
	smtpMailer := mailer.NewSMTPMailer(cfg.SMTPTimeout)
	limiter := rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendRate)
	workerPool := worker.NewPool(cfg.WorkerCount, q, sendLogs, cipher, smtpMailer, limiter, bus, worker.MetricHooks{
		OnSent:    onSent,
		OnFailed:  onFailed,
		OnSkipped: onSkipped,
	}, logger)
	workerPool.Start(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, q, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal workers, the janitor, and the settle sweep to stop.
	cancelWorkers()

	// 3. Wait for in-flight workers to finish their current job.
	workerPool.Wait()

	// 4. Drain the event bus so the aggregator sees the final outcomes.
	bus.Close()

	logger.Info("server stopped cleanly")
}
