// Conductor API — HTTP сервер управления flows, runs и schedules.
//
// API:
//   - Регистрирует flows (DSL валидируется до записи)
//   - Ставит runs в очередь через RabbitMQ
//   - Управляет schedules
//   - Отдаёт состояние runs из PostgreSQL
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conductor/internal/api"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/store"
	"github.com/shaiso/Conductor/internal/tasks"
	"github.com/shaiso/Conductor/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conductor-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := store.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	flows := store.NewPostgresFlows(pool)
	runs := store.NewPostgresRuns(pool)
	schedules := store.NewPostgresSchedules(pool)

	// RabbitMQ: без него API работает в режиме read-only
	// (создание runs вернёт 503)
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, run creation disabled", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	var staleAfter time.Duration
	if v := os.Getenv("STALE_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			staleAfter = d
		} else {
			logger.Warn("invalid STALE_AFTER, using default", "value", v)
		}
	}

	handler := api.NewHandler(api.Config{
		Flows:      flows,
		Runs:       runs,
		Schedules:  schedules,
		Registry:   tasks.Builtin(),
		Publisher:  publisher,
		StaleAfter: staleAfter,
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
