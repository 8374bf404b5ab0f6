package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/store"
)

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	schedules store.ScheduleStore
	flows     store.FlowStore
	publisher *mq.Publisher
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules store.ScheduleStore
	Flows     store.FlowStore
	Publisher *mq.Publisher
	Logger    *slog.Logger
	BatchSize int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		flows:     cfg.Flows,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		batchSize: batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule публикует run.requested
// 3. Обновляет next_due_at
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed int
	for _, sched := range schedules {
		if err := s.processSchedule(ctx, sched, now); err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}
		processed++
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
	)

	return nil
}

// processSchedule обрабатывает один schedule: публикует запрос на
// выполнение и сдвигает next_due_at.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) error {
	// 1. Проверяем, что flow существует
	flow, err := s.flows.GetFlow(ctx, sched.FlowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("flow not found for schedule, skipping",
				"schedule_id", sched.ID,
				"flow_id", sched.FlowID,
			)
			// Не возвращаем ошибку — просто пропускаем
			return nil
		}
		return fmt.Errorf("get flow: %w", err)
	}

	if !flow.IsActive {
		s.logger.Debug("flow is not active, skipping schedule",
			"schedule_id", sched.ID,
			"flow", flow.Name,
		)
		// Сдвигаем next_due_at, чтобы выключенный flow не держал
		// schedule в due на каждом тике
		if nextDue, err := CalculateNextDue(sched, now); err == nil {
			sched.NextDueAt = &nextDue
			sched.UpdatedAt = time.Now()
			if err := s.schedules.UpdateSchedule(ctx, sched); err != nil {
				return fmt.Errorf("update schedule: %w", err)
			}
		}
		return nil
	}

	// 2. Выделяем run ID и публикуем запрос на выполнение
	runID := uuid.New()
	payload := mq.RunRequestedPayload{
		RunID:    runID,
		FlowName: flow.Name,
		Input:    sched.Input,
	}
	if err := s.publisher.PublishRunRequested(ctx, payload); err != nil {
		// next_due_at не трогаем: следующий тик попробует снова
		return fmt.Errorf("publish run.requested: %w", err)
	}

	s.logger.Info("queued run from schedule",
		"run_id", runID,
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"flow", flow.Name,
	)

	// 3. Вычисляем следующее время запуска
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		s.logger.Error("failed to calculate next due",
			"schedule_id", sched.ID,
			"error", err,
		)
		// Schedule некорректный — next_due_at не трогаем
		return nil
	}

	// 4. Обновляем schedule
	sched.RecordRun(runID, nextDue)
	if err := s.schedules.UpdateSchedule(ctx, sched); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}

	return nil
}
