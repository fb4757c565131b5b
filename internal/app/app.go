// Package app собирает сервис воедино: хранилище, процессоры,
// HTTP API, фоновые воркеры и сервер метрик.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/fulfillment/internal/health"
	"github.com/vladislavdragonenkov/fulfillment/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/audit"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/httpapi"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/integrity"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/ledger"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/outbox"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/returns"
	"github.com/vladislavdragonenkov/fulfillment/internal/version"
)

const shutdownTimeout = 10 * time.Second

// Run запускает приложение и блокируется до отмены ctx или фатальной
// ошибки HTTP-сервера. При отмене ctx возвращает ctx.Err().
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	dirs := newDemoDirectories()
	if cfg.StorageDriver == StorageDriverMemory || cfg.StorageDriver == "" {
		if err := seedDemoProducts(ctx, deps.store); err != nil {
			return fmt.Errorf("seed demo products: %w", err)
		}
	}

	auditTrail := audit.New(nil, "fulfillment-service")
	stockLedger := ledger.New(nil)
	recalc := orders.NewRecalculator(nil)
	orderProcessor := orders.New(deps.store, dirs.customers, dirs.addresses, dirs.catalog, stockLedger, auditTrail, nil)
	returnProcessor := returns.New(deps.store, stockLedger, auditTrail, nil)
	checker := integrity.New(deps.store, dirs.catalog, recalc, stockLedger, auditTrail, nil)

	api := httpapi.New(deps.store, orderProcessor, returnProcessor, recalc, checker, stockLedger, deps.idempotencyRepo, nil)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		// Событийная шина не критична для обработки заказов:
		// outbox накапливает сообщения до следующего запуска.
		logger.WithError(err).Warn("kafka unavailable, running without outbox worker")
	}

	var outboxCancel context.CancelFunc
	var outboxDone chan struct{}
	if producer != nil {
		worker := outbox.NewWorker(
			deps.outboxRepo,
			kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
			outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)

		var workerCtx context.Context
		workerCtx, outboxCancel = context.WithCancel(context.Background())
		outboxDone = make(chan struct{})
		go func() {
			defer close(outboxDone)
			worker.Run(workerCtx)
		}()
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	cleanupWorker := idempotency.NewCleanupWorker(
		deps.idempotencyRepo,
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	go cleanupWorker.Run(cleanupCtx)

	metricsServer := startMetricsServer(cfg.MetricsAddr, deps.storageChecker, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = err
	}

	logger.Info("shutting down")
	shutdownHTTP(httpServer, "http-api", logger)
	shutdownHTTP(metricsServer, "metrics", logger)
	shutdownOutboxWorker(outboxCancel, outboxDone, logger)
	closeKafkaProducer(producer, logger)

	if deps.closeFn != nil {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}

	return runErr
}

// startMetricsServer поднимает отдельный HTTP-сервер с метриками
// Prometheus и health-эндпоинтами.
func startMetricsServer(addr string, storageChecker healthcheck.Checker, logger *log.Entry) *http.Server {
	v, _, _ := version.Info()
	healthHandler := healthcheck.NewHandler(v)
	if storageChecker != nil {
		healthHandler.RegisterChecker("storage", storageChecker)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.WithField("addr", addr).Info("metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server failed")
		}
	}()
	return server
}

func shutdownHTTP(server *http.Server, name string, logger *log.Entry) {
	if server == nil {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).WithField("server", name).Warn("http shutdown failed")
	}
}

// shutdownOutboxWorker останавливает outbox-воркер и ждёт завершения
// текущей итерации, но не дольше shutdownTimeout.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
		logger.Info("outbox worker stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}
