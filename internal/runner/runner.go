package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Conductor/internal/engine"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/registry"
	"github.com/shaiso/Conductor/internal/store"
)

// defaultPrefetch — количество runs, обрабатываемых одним runner'ом
// одновременно.
const defaultPrefetch = 2

// Runner потребляет запросы run.requested и выполняет flows.
type Runner struct {
	flows    store.FlowStore
	runs     store.RunStore
	registry *registry.Registry
	engine   *engine.Engine

	publisher *mq.Publisher
	conn      *mq.Connection
	consumer  *mq.Consumer

	execOpts engine.Options
	prefetch int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Runner.
type Config struct {
	Flows    store.FlowStore
	Runs     store.RunStore
	Registry *registry.Registry

	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Параметры выполнения для всех runs этого сервиса.
	Mode        engine.Mode
	Workers     int
	TaskTimeout time.Duration

	// Prefetch — количество одновременно обрабатываемых runs (default: 2).
	Prefetch int

	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	eng := engine.New(engine.Config{
		Registry: cfg.Registry,
		Recorder: cfg.Runs,
		Logger:   logger,
	})

	return &Runner{
		flows:     cfg.Flows,
		runs:      cfg.Runs,
		registry:  cfg.Registry,
		engine:    eng,
		publisher: cfg.Publisher,
		conn:      cfg.Conn,
		execOpts: engine.Options{
			Mode:        cfg.Mode,
			Workers:     cfg.Workers,
			TaskTimeout: cfg.TaskTimeout,
		},
		prefetch: prefetch,
		logger:   logger,
	}
}

// Start запускает Runner. Возвращается сразу; потребление идёт
// в фоновой горутине до Stop или отмены контекста.
func (r *Runner) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.consumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueRunsRequested),
		Handler:  r.handleRunRequested,
		Prefetch: r.prefetch,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("run consumer error", "error", err)
		}
	}()

	r.logger.Info("runner started",
		"mode", string(r.execOpts.Mode),
		"prefetch", r.prefetch,
	)
	return nil
}

// Stop останавливает Runner и дожидается завершения активных runs.
func (r *Runner) Stop() {
	r.logger.Info("stopping runner...")

	if r.consumer != nil {
		r.consumer.Stop()
	}
	if r.cancelFunc != nil {
		r.cancelFunc()
	}

	r.wg.Wait()

	r.logger.Info("runner stopped")
}
