package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
	"github.com/shaiso/Conductor/internal/registry"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// Mode — режим выполнения flow.
type Mode string

// Режимы выполнения.
const (
	// ModeSequential — строго в топологическом порядке, в одном потоке.
	ModeSequential Mode = "sequential"

	// ModeParallel — диспетчеризация по готовности зависимостей
	// на ограниченном пуле воркеров.
	ModeParallel Mode = "parallel"
)

// defaultWorkers — размер пула воркеров по умолчанию:
// количество ядер, но не больше 4.
func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 4 {
		return 4
	}
	return n
}

// Options — параметры одного запуска.
type Options struct {
	// Mode — режим выполнения. По умолчанию ModeSequential.
	Mode Mode

	// Workers — размер пула воркеров для ModeParallel.
	// По умолчанию количество ядер, но не больше 4.
	Workers int

	// TaskTimeout — таймаут одной задачи. 0 — без таймаута.
	// Превышение проваливает задачу с TimeoutError; её горутина
	// не прерывается (отмена кооперативная).
	TaskTimeout time.Duration

	// FailFast — прекратить диспетчеризацию новых задач после первого
	// падения: все ещё не запущенные задачи становятся SKIPPED.
	// По умолчанию false: ветви, не зависящие от упавшей задачи,
	// продолжают выполняться.
	FailFast bool

	// RunID — заранее выделенный идентификатор run (например, выданный
	// API при постановке в очередь). Нулевой UUID — сгенерировать новый.
	RunID uuid.UUID
}

func (o Options) normalized() Options {
	if o.Mode == "" {
		o.Mode = ModeSequential
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers()
	}
	return o
}

// Recorder принимает записи о ходе выполнения.
//
// Записи во время активного run — best-effort (для живого просмотра);
// авторитетная запись делается в FinalizeRun. Ошибки Recorder'а
// логируются и не влияют на выполнение.
type Recorder interface {
	CreateRun(ctx context.Context, run *domain.FlowRun) error
	RecordTaskTransition(ctx context.Context, runID uuid.UUID, task *domain.TaskRun) error
	FinalizeRun(ctx context.Context, run *domain.FlowRun) error
}

// Engine — движок выполнения DAG.
type Engine struct {
	registry *registry.Registry
	recorder Recorder
	logger   *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	// Registry — реестр задач, обязателен.
	Registry *registry.Registry

	// Recorder — приёмник записей о выполнении. Может быть nil.
	Recorder Recorder

	// Logger — логгер. По умолчанию slog.Default().
	Logger *slog.Logger
}

// New создаёт движок.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: cfg.Registry,
		recorder: cfg.Recorder,
		logger:   logger,
	}
}

// Run выполняет DAG и возвращает FlowRun.
//
// Падения задач не являются ошибкой Run: они отражаются в статусах
// TaskRun и в итоговом статусе flow. Ненулевая ошибка возвращается
// только при некорректном вызове (nil DAG, пустой граф).
func (e *Engine) Run(ctx context.Context, dag *graph.DAG, input map[string]any, opts Options) (*domain.FlowRun, error) {
	if dag == nil || dag.Size() == 0 {
		return nil, errors.New("engine: nil or empty DAG")
	}
	opts = opts.normalized()

	run := domain.NewFlowRun(dag.FlowName, input)
	if opts.RunID != uuid.Nil {
		run.ID = opts.RunID
	}
	for _, node := range dag.Order {
		run.Tasks = append(run.Tasks, domain.NewTaskRun(node.Name))
	}

	run.MarkRunning()
	if e.recorder != nil {
		if err := e.recorder.CreateRun(ctx, run); err != nil {
			e.logger.Warn("create run record failed", "run_id", run.ID, "error", err)
		}
	}

	log := e.logger.With("run_id", run.ID, "flow", run.FlowName, "mode", string(opts.Mode))
	log.Info("flow run started", "tasks", len(run.Tasks))

	ex := newExecution(e, dag, run, opts, log)
	switch opts.Mode {
	case ModeParallel:
		ex.runParallel(ctx)
	default:
		ex.runSequential(ctx)
	}

	e.finalize(ctx, dag, run, ex.aborted)
	log.Info("flow run finished",
		"status", string(run.Status),
		"duration", run.Duration(),
	)
	return run, nil
}

// finalize вычисляет итоговый статус и результат run и пишет
// авторитетную запись в Recorder.
func (e *Engine) finalize(ctx context.Context, dag *graph.DAG, run *domain.FlowRun, aborted bool) {
	var failed []string
	for _, task := range run.Tasks {
		if task.Status == domain.TaskStatusFailed {
			failed = append(failed, task.Name)
		}
	}

	result := mergeLeafOutputs(dag, run)

	switch {
	case len(failed) > 0:
		run.MarkFailed(fmt.Sprintf("%d task(s) failed: %s", len(failed), strings.Join(failed, ", ")))
		run.Result = result
	case aborted:
		run.MarkFailed("run aborted before all tasks were dispatched")
		run.Result = result
	default:
		run.MarkCompleted(result)
	}

	telemetry.ObserveRun(string(run.Status), run.Duration())

	if e.recorder != nil {
		if err := e.recorder.FinalizeRun(ctx, run); err != nil {
			e.logger.Error("finalize run record failed", "run_id", run.ID, "error", err)
		}
	}
}

// mergeLeafOutputs собирает итоговый результат flow: объединение
// выходов успешно завершённых листовых задач в топологическом порядке,
// более поздний лист перекрывает ключи более раннего.
func mergeLeafOutputs(dag *graph.DAG, run *domain.FlowRun) map[string]any {
	result := make(map[string]any)
	for _, leaf := range dag.Leaves() {
		task := run.TaskByName(leaf.Name)
		if task == nil || task.Status != domain.TaskStatusCompleted {
			continue
		}
		for k, v := range task.Output {
			result[k] = v
		}
	}
	return result
}

// executeTask вызывает тело задачи с валидацией входа/выхода
// и необязательным таймаутом.
func (e *Engine) executeTask(ctx context.Context, task *registry.Task, input map[string]any, timeout time.Duration) (map[string]any, error) {
	if task.InputValidator != nil {
		if err := task.InputValidator.Validate(input); err != nil {
			return nil, &ValidationError{Task: task.Name, Stage: "input", Err: err}
		}
	}

	output, err := e.invoke(ctx, task, input, timeout)
	if err != nil {
		return nil, err
	}

	if task.OutputValidator != nil {
		if err := task.OutputValidator.Validate(output); err != nil {
			return nil, &ValidationError{Task: task.Name, Stage: "output", Err: err}
		}
	}
	return output, nil
}

// invoke запускает тело задачи. При таймауте горутина задачи
// остаётся брошенной: тело считается блокирующим и не прерывается.
func (e *Engine) invoke(ctx context.Context, task *registry.Task, input map[string]any, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		output, err := callSafely(ctx, task, input)
		if err != nil {
			return nil, &ExecutionError{Task: task.Name, Err: err}
		}
		return output, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type callResult struct {
		output map[string]any
		err    error
	}
	done := make(chan callResult, 1)

	go func() {
		output, err := callSafely(ctx, task, input)
		done <- callResult{output, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, &ExecutionError{Task: task.Name, Err: res.err}
		}
		return res.output, nil
	case <-time.After(timeout):
		return nil, &TimeoutError{Task: task.Name, Limit: timeout}
	}
}

// callSafely вызывает тело задачи, превращая панику в ошибку.
func callSafely(ctx context.Context, task *registry.Task, input map[string]any) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Fn(ctx, input)
}
