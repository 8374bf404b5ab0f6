package engine

import (
	"context"
	"log/slog"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
	"github.com/shaiso/Conductor/internal/telemetry"
)

// execution — состояние одного запуска, общее для обоих режимов.
//
// Все изменения FlowRun проходят через методы execution; в параллельном
// режиме их вызывает только горутина-координатор (единственный писатель).
type execution struct {
	engine *Engine
	dag    *graph.DAG
	run    *domain.FlowRun
	opts   Options
	log    *slog.Logger

	// tasks — записи задач по имени.
	tasks map[string]*domain.TaskRun

	// failed — есть хотя бы одна упавшая задача (для FailFast).
	failed bool

	// aborted — выполнение прервано снаружи до полной диспетчеризации.
	aborted bool
}

func newExecution(e *Engine, dag *graph.DAG, run *domain.FlowRun, opts Options, log *slog.Logger) *execution {
	tasks := make(map[string]*domain.TaskRun, len(run.Tasks))
	for _, task := range run.Tasks {
		tasks[task.Name] = task
	}
	return &execution{
		engine: e,
		dag:    dag,
		run:    run,
		opts:   opts,
		log:    log,
		tasks:  tasks,
	}
}

// runSequential выполняет задачи строго в топологическом порядке.
//
// Задача запускается, только если все её родители COMPLETED; иначе
// она становится SKIPPED. Падение одной задачи не останавливает
// ветви, от неё не зависящие (если не задан FailFast).
func (x *execution) runSequential(ctx context.Context) {
	for _, node := range x.dag.Order {
		task := x.tasks[node.Name]

		if ctx.Err() != nil {
			x.aborted = true
			x.skip(ctx, task)
			continue
		}
		if x.failed && x.opts.FailFast {
			x.skip(ctx, task)
			continue
		}
		if !x.parentsCompleted(node) {
			x.skip(ctx, task)
			continue
		}

		x.execute(ctx, node, task)
	}
}

// execute запускает одну задачу: собирает вход, переводит запись
// в RUNNING, выполняет тело и фиксирует терминальный статус.
func (x *execution) execute(ctx context.Context, node *graph.Node, taskRun *domain.TaskRun) {
	registered, err := x.engine.registry.Resolve(node.Name)
	if err != nil {
		// Реестр проверялся при построении графа; сюда можно попасть,
		// только если задачу сняли с регистрации между Build и Run.
		x.start(ctx, taskRun, nil)
		x.fail(ctx, taskRun, err)
		return
	}

	input := x.inputFor(node)
	x.start(ctx, taskRun, input)

	output, err := x.engine.executeTask(ctx, registered, input, x.opts.TaskTimeout)
	if err != nil {
		x.fail(ctx, taskRun, err)
		return
	}
	x.complete(ctx, taskRun, output)
}

// parentsCompleted возвращает true, если все родители узла COMPLETED.
func (x *execution) parentsCompleted(node *graph.Node) bool {
	for _, parent := range node.Parents {
		if x.tasks[parent.Name].Status != domain.TaskStatusCompleted {
			return false
		}
	}
	return true
}

// inputFor собирает эффективный вход задачи: поверхностное объединение
// входа flow (низший приоритет) и выходов родителей в топологическом
// порядке — более поздний родитель перекрывает ключи более раннего.
// Правило одинаково для обоих режимов.
func (x *execution) inputFor(node *graph.Node) map[string]any {
	merged := domain.CopyData(x.run.Input)
	if merged == nil {
		merged = make(map[string]any)
	}

	parents := make(map[string]bool, len(node.Parents))
	for _, parent := range node.Parents {
		parents[parent.Name] = true
	}

	for _, candidate := range x.dag.Order {
		if !parents[candidate.Name] {
			continue
		}
		for k, v := range x.tasks[candidate.Name].Output {
			merged[k] = v
		}
	}
	return merged
}

// --- переходы записей задач ---

func (x *execution) start(ctx context.Context, task *domain.TaskRun, input map[string]any) {
	task.MarkRunning(input)
	x.log.Debug("task started", "task", task.Name)
	x.record(ctx, task)
}

func (x *execution) complete(ctx context.Context, task *domain.TaskRun, output map[string]any) {
	task.MarkCompleted(output)
	telemetry.ObserveTask(string(task.Status), task.Duration())
	x.log.Debug("task completed", "task", task.Name, "duration", task.Duration())
	x.record(ctx, task)
}

func (x *execution) fail(ctx context.Context, task *domain.TaskRun, err error) {
	x.failed = true
	task.MarkFailed(err.Error())
	telemetry.ObserveTask(string(task.Status), task.Duration())
	x.log.Warn("task failed", "task", task.Name, "error", err)
	x.record(ctx, task)
}

func (x *execution) skip(ctx context.Context, task *domain.TaskRun) {
	task.MarkSkipped()
	telemetry.ObserveTask(string(task.Status), 0)
	x.log.Debug("task skipped", "task", task.Name)
	x.record(ctx, task)
}

// record пишет переход задачи в Recorder. Best-effort: ошибка
// логируется и не влияет на выполнение.
func (x *execution) record(ctx context.Context, task *domain.TaskRun) {
	if x.engine.recorder == nil {
		return
	}
	if err := x.engine.recorder.RecordTaskTransition(ctx, x.run.ID, task); err != nil {
		x.log.Warn("record task transition failed", "task", task.Name, "error", err)
	}
}
