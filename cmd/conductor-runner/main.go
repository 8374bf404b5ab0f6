// Conductor Runner — выполняет flows.
//
// Runner:
//   - Получает запросы run.requested из RabbitMQ
//   - Парсит DSL, строит DAG и выполняет run целиком in-process
//   - Пишет ход выполнения в PostgreSQL
//   - Публикует run.finished
//
// Runners масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conductor/internal/engine"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/runner"
	"github.com/shaiso/Conductor/internal/store"
	"github.com/shaiso/Conductor/internal/tasks"
	"github.com/shaiso/Conductor/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conductor-runner")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := store.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	flows := store.NewPostgresFlows(pool)
	runs := store.NewPostgresRuns(pool)

	// RabbitMQ обязателен: runner без очереди бесполезен
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}

	publisher := mq.NewPublisher(mqConn, logger)

	// Параметры выполнения
	mode := engine.ModeSequential
	if os.Getenv("RUNNER_PARALLEL") == "true" {
		mode = engine.ModeParallel
	}

	var workers int
	if v := os.Getenv("RUNNER_WORKERS"); v != "" {
		workers, _ = strconv.Atoi(v)
	}

	var taskTimeout time.Duration
	if v := os.Getenv("RUNNER_TASK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			taskTimeout = d
		} else {
			logger.Warn("invalid RUNNER_TASK_TIMEOUT, ignoring", "value", v)
		}
	}

	var prefetch int
	if v := os.Getenv("RUNNER_PREFETCH"); v != "" {
		prefetch, _ = strconv.Atoi(v)
	}

	r := runner.New(runner.Config{
		Flows:       flows,
		Runs:        runs,
		Registry:    tasks.Builtin(),
		Publisher:   publisher,
		Conn:        mqConn,
		Mode:        mode,
		Workers:     workers,
		TaskTimeout: taskTimeout,
		Prefetch:    prefetch,
		Logger:      logger,
	})

	if err := r.Start(ctx); err != nil {
		logger.Error("failed to start runner", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("RUNNER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	r.Stop()
	logger.Info("conductor-runner stopped")
}
