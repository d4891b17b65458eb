package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/marketplace/internal/health"
	"github.com/vladislavdragonenkov/marketplace/internal/httpapi"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/service/messaging"
	"github.com/vladislavdragonenkov/marketplace/internal/service/outbox"
	"github.com/vladislavdragonenkov/marketplace/internal/service/resolution"
	"github.com/vladislavdragonenkov/marketplace/internal/version"
)

// Run собирает сервис резолюции предложений и блокируется до отмены ctx
// или фатальной ошибки HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	// Kafka опциональна: без брокеров события outbox уходят в лог.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	publisher, dlqPublisher := buildPublishers(kafkaProducer, cfg.KafkaTopic, logger)

	messenger := messaging.NewService(
		deps.conversations,
		deps.notifications,
		logger.WithField("component", "messaging"),
	)
	workflow := resolution.NewWorkflow(
		deps.requests,
		deps.offers,
		deps.orders,
		messenger,
		deps.outbox,
		logger.WithField("component", "resolution"),
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var wg sync.WaitGroup

	outboxWorker := outbox.NewWorker(
		deps.outbox,
		publisher,
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithDLQPublisher(dlqPublisher),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		outboxWorker.Run(workerCtx)
	}()

	reconciler := resolution.NewReconciler(
		deps.requests,
		deps.offers,
		deps.orders,
		deps.outbox,
		resolution.WithLogger(logger.WithField("component", "reconciler")),
		resolution.WithInterval(cfg.ReconcileInterval),
		resolution.WithBatchSize(cfg.ReconcileBatchSize),
		resolution.WithReopenGrace(cfg.ReconcileReopenGrace),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(workerCtx)
	}()

	healthHandler := newHealthHandler(deps)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiLogger := logger.WithField("component", "httpapi")
	apiServer := httpapi.NewServer(
		deps.requests,
		deps.offers,
		deps.orders,
		deps.notifications,
		workflow,
		apiLogger,
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(apiServer, apiLogger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API listening on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownHTTP(srv, logger)
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		stopWorkers()
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// buildPublishers выбирает publisher для outbox: Kafka при наличии брокеров,
// иначе лог. DLQ-паблишер существует только вместе с Kafka.
func buildPublishers(producer *kafka.Producer, topic string, logger *log.Entry) (domain.OutboxPublisher, domain.OutboxPublisher) {
	if producer == nil {
		return outbox.NewLogPublisher(logger.WithField("component", "outbox-log-publisher")), nil
	}
	return kafka.NewOutboxPublisher(producer, topic),
		kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
}

// newHealthHandler собирает health handler с проверкой хранилища,
// если драйвер её предоставляет.
func newHealthHandler(deps *runtimeDependencies) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.String())
	if deps.storageChecker != nil {
		handler.RegisterChecker("storage", deps.storageChecker)
	}
	return handler
}

// startMetricsServer поднимает отдельный сервер для /metrics и проб здоровья.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, health *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		logger.Infof("metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server stopped")
		}
	}()

	return srv
}

func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http server shutdown failed")
	}
}
