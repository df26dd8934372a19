// Nodeflow Worker — remote node execution API.
//
// Worker принимает POST /execute с описанием узла, выполняет его
// локальным обработчиком и возвращает {output} или {error}.
// Сервер направляет сюда типы узлов без локального обработчика
// (NODEFLOW_REMOTE_URL=http://worker:8090/execute).
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Nodeflow/internal/config"
	"github.com/shaiso/Nodeflow/internal/events"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/telemetry"
	"github.com/shaiso/Nodeflow/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("NODEFLOW_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting nodeflow-worker")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	w := worker.New(worker.Config{
		Registry:    nodes.DefaultRegistry(),
		NodeTimeout: cfg.NodeTimeout(),
		Observer:    events.Combine(events.NewLogObserver(logger), telemetry.NewMetricsObserver()),
		Logger:      logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	w.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.WorkerAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.WorkerAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("nodeflow-worker stopped")
}
