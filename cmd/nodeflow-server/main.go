// Nodeflow Server — HTTP API движка workflow.
//
// Сервер:
//   - Выполняет workflow через executor.Controller
//   - Кэширует результаты узлов (memory или Redis)
//   - Архивирует завершённые выполнения в Postgres (если задан DB_URL)
//   - Публикует события в RabbitMQ (если задан RABBITMQ_URL)
//   - Стримит события по WebSocket на /api/v1/events
//
// Конфигурация читается из окружения и необязательного JSON файла
// NODEFLOW_CONFIG.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Nodeflow/internal/api"
	"github.com/shaiso/Nodeflow/internal/config"
	"github.com/shaiso/Nodeflow/internal/events"
	"github.com/shaiso/Nodeflow/internal/executor"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/repo"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var startTime = time.Now()

func main() {
	cfg, err := config.Load(os.Getenv("NODEFLOW_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting nodeflow-server")

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Кэш результатов
	store, closeCache, err := cfg.OpenCache(ctx)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer closeCache()
	logger.Info("result cache ready", "backend", cfg.CacheBackend)

	observers := []events.Observer{
		events.NewLogObserver(logger),
		telemetry.NewMetricsObserver(),
	}

	// WebSocket hub
	hub := api.NewHub(logger)
	observers = append(observers, hub)

	// RabbitMQ — опционально
	var publisher *mq.EventPublisher
	if cfg.RabbitMQURL != "" {
		conn, err := mq.Dial(ctx, cfg.MQConnection(logger))
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer conn.Close()

		publisher = mq.NewEventPublisher(mq.EventPublisherConfig{
			Sink:   mq.NewPublisher(conn, logger),
			Logger: logger,
		})
		observers = append(observers, publisher)
		logger.Info("publishing events to rabbitmq", "exchange", mq.ExchangeEvents)
	}

	ec := cfg.ExecutorConfig(store)
	ec.Observer = events.Combine(observers...)
	ec.Logger = logger

	handlerCfg := api.Config{Hub: hub, Logger: logger}

	// Postgres архив — опционально
	if cfg.DatabaseURL != "" {
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := repo.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		archive := repo.NewExecutionRepo(pool)
		ec.Archive = archive
		handlerCfg.Archive = archive
		logger.Info("execution archive enabled")
	}

	controller, err := executor.New(ec)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}
	handlerCfg.Controller = controller

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	api.NewHandler(handlerCfg).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Активные run'ы останавливаются на ближайшей границе уровней.
	if controller.IsRunning() {
		_ = controller.Stop()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	if publisher != nil {
		if err := publisher.Close(shutdownCtx); err != nil {
			logger.Warn("event publisher close", "error", err, "dropped", publisher.Dropped())
		}
	}
	return nil
}
