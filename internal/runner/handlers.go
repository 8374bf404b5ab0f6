package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/dsl"
	"github.com/shaiso/Conductor/internal/graph"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/store"
)

// handleRunRequested обрабатывает запрос на выполнение run.
//
// Постоянные ошибки (flow не найден, невалидный DSL, невалидный граф)
// не возвращаются наверх: run записывается как FAILED и сообщение
// подтверждается, иначе оно бесконечно возвращалось бы в очередь.
func (r *Runner) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		r.logger.Error("failed to parse run.requested payload", "error", err)
		return err
	}

	log := r.logger.With("run_id", payload.RunID, "flow", payload.FlowName)
	log.Debug("received run.requested event")

	// 1. Загружаем flow
	flow, err := r.flows.GetFlowByName(ctx, payload.FlowName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return r.failRun(ctx, payload, fmt.Sprintf("flow not found: %s", payload.FlowName))
		}
		return fmt.Errorf("get flow: %w", err)
	}

	// 2. Парсим DSL и строим DAG
	def, err := dsl.Parse(flow.Source)
	if err != nil {
		return r.failRun(ctx, payload, fmt.Sprintf("parse flow source: %v", err))
	}

	dag, err := graph.Build(def, r.registry)
	if err != nil {
		return r.failRun(ctx, payload, fmt.Sprintf("build DAG: %v", err))
	}

	// 3. Выполняем run целиком in-process
	opts := r.execOpts
	opts.RunID = payload.RunID

	run, err := r.engine.Run(ctx, dag, payload.Input, opts)
	if err != nil {
		return fmt.Errorf("engine run: %w", err)
	}

	log.Info("run executed", "status", string(run.Status))

	// 4. Публикуем событие о завершении
	r.publishFinished(ctx, mq.RunFinishedPayload{
		RunID:    run.ID,
		FlowName: run.FlowName,
		Status:   string(run.Status),
		Error:    run.Error,
	})

	return nil
}

// failRun записывает run как FAILED без выполнения задач.
func (r *Runner) failRun(ctx context.Context, payload mq.RunRequestedPayload, reason string) error {
	r.logger.Error("run failed before execution",
		"run_id", payload.RunID,
		"flow", payload.FlowName,
		"reason", reason,
	)

	// Тот же жизненный цикл записи, что у движка: CreateRun, затем
	// FinalizeRun. Финализация пишет error и finished_at — одного
	// INSERT для этого недостаточно.
	run := domain.NewFlowRun(payload.FlowName, payload.Input)
	run.ID = payload.RunID

	if err := r.runs.CreateRun(ctx, run); err != nil {
		r.logger.Warn("failed to record failed run", "run_id", run.ID, "error", err)
	}

	run.MarkFailed(reason)
	if err := r.runs.FinalizeRun(ctx, run); err != nil {
		r.logger.Warn("failed to finalize failed run", "run_id", run.ID, "error", err)
	}

	r.publishFinished(ctx, mq.RunFinishedPayload{
		RunID:    run.ID,
		FlowName: run.FlowName,
		Status:   string(run.Status),
		Error:    run.Error,
	})

	return nil
}

// publishFinished публикует run.finished. Не фатально при ошибке:
// авторитетное состояние уже записано в БД.
func (r *Runner) publishFinished(ctx context.Context, payload mq.RunFinishedPayload) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishRunFinished(ctx, payload); err != nil {
		r.logger.Warn("failed to publish run.finished",
			"run_id", payload.RunID,
			"error", err,
		)
	}
}
