package engine

import (
	"context"
	"sync"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
)

// job — задача, отправленная воркеру. Вход собирается координатором
// до отправки: воркеры не читают общее состояние выполнения.
type job struct {
	node  *graph.Node
	input map[string]any
}

// taskEvent — событие от воркера координатору.
// Все изменения FlowRun делает координатор, получая события.
type taskEvent struct {
	node    *graph.Node
	started bool
	input   map[string]any
	output  map[string]any
	err     error
}

// runParallel выполняет задачи диспетчеризацией по готовности:
// задача отправляется в пул, как только счётчик её незакрытых
// родителей доходит до нуля. Упавший родитель немедленно переводит
// всех строгих потомков в SKIPPED, не дожидаясь счётчиков.
//
// Единственный писатель состояния — координатор (этот метод);
// воркеры общаются с ним только через каналы jobs и events.
func (x *execution) runParallel(ctx context.Context) {
	jobs := make(chan job, len(x.dag.Order))
	events := make(chan taskEvent, len(x.dag.Order)*2)

	var wg sync.WaitGroup
	for i := 0; i < x.opts.Workers; i++ {
		wg.Add(1)
		go x.worker(ctx, &wg, jobs, events)
	}

	// unmet — количество родителей задачи, ещё не достигших
	// терминального состояния.
	unmet := make(map[string]int, len(x.dag.Order))
	dispatched := make(map[string]bool, len(x.dag.Order))
	for _, node := range x.dag.Order {
		unmet[node.Name] = node.InDegree
	}

	remaining := len(x.dag.Order)

	dispatch := func(node *graph.Node) {
		dispatched[node.Name] = true
		jobs <- job{node: node, input: x.inputFor(node)}
	}

	for _, root := range x.dag.Roots {
		dispatch(root)
	}

	ctxDone := ctx.Done()
	for remaining > 0 {
		select {
		case <-ctxDone:
			// Внешнее прерывание: новые задачи не диспетчеризуются,
			// уже запущенные доделываются (прерывание кооперативное).
			ctxDone = nil
			skipped := x.skipPending(ctx, dispatched)
			remaining -= skipped
			if skipped > 0 {
				x.aborted = true
			}

		case ev := <-events:
			task := x.tasks[ev.node.Name]
			if ev.started {
				x.start(ctx, task, ev.input)
				continue
			}

			remaining--

			if ev.err != nil {
				x.fail(ctx, task, ev.err)
				remaining -= x.skipDescendants(ctx, ev.node, dispatched)
				if x.opts.FailFast {
					remaining -= x.skipPending(ctx, dispatched)
				}
				continue
			}

			x.complete(ctx, task, ev.output)
			for _, child := range ev.node.Children {
				if dispatched[child.Name] || x.tasks[child.Name].Status != domain.TaskStatusPending {
					continue
				}
				unmet[child.Name]--
				if unmet[child.Name] == 0 {
					dispatch(child)
				}
			}
		}
	}

	close(jobs)
	wg.Wait()
}

// worker выполняет задачи из очереди и сообщает события координатору.
func (x *execution) worker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan job, events chan<- taskEvent) {
	defer wg.Done()

	for j := range jobs {
		events <- taskEvent{node: j.node, started: true, input: j.input}

		registered, err := x.engine.registry.Resolve(j.node.Name)
		var output map[string]any
		if err == nil {
			output, err = x.engine.executeTask(ctx, registered, j.input, x.opts.TaskTimeout)
		}

		events <- taskEvent{node: j.node, output: output, err: err}
	}
}

// skipDescendants переводит в SKIPPED всех строгих потомков узла,
// ещё ожидающих выполнения. Возвращает количество пропущенных.
func (x *execution) skipDescendants(ctx context.Context, node *graph.Node, dispatched map[string]bool) int {
	count := 0
	for _, desc := range x.dag.Descendants(node.Name) {
		task := x.tasks[desc.Name]
		if task.Status == domain.TaskStatusPending && !dispatched[desc.Name] {
			x.skip(ctx, task)
			count++
		}
	}
	return count
}

// skipPending переводит в SKIPPED все ещё не диспетчеризованные задачи.
// Возвращает количество пропущенных.
func (x *execution) skipPending(ctx context.Context, dispatched map[string]bool) int {
	count := 0
	for _, node := range x.dag.Order {
		task := x.tasks[node.Name]
		if task.Status == domain.TaskStatusPending && !dispatched[node.Name] {
			x.skip(ctx, task)
			count++
		}
	}
	return count
}
