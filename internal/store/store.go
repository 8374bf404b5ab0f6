package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
)

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	// FlowName — только runs этого flow. Пустая строка — все.
	FlowName string

	// Status — только runs в этом статусе. Пустой — все.
	Status domain.RunStatus

	// Limit — максимум записей. 0 — значение по умолчанию (50).
	Limit int

	// Offset — смещение для пагинации.
	Offset int
}

// defaultListLimit применяется, когда фильтр не задаёт Limit.
const defaultListLimit = 50

// RunStore — хранилище записей о выполнении flow.
type RunStore interface {
	// CreateRun сохраняет новый run со всеми записями задач.
	CreateRun(ctx context.Context, run *domain.FlowRun) error

	// RecordTaskTransition записывает переход статуса одной задачи.
	// Best-effort во время активного run.
	RecordTaskTransition(ctx context.Context, runID uuid.UUID, task *domain.TaskRun) error

	// FinalizeRun записывает авторитетное финальное состояние run.
	FinalizeRun(ctx context.Context, run *domain.FlowRun) error

	// GetRun возвращает run по ID. ErrNotFound, если записи нет.
	GetRun(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error)

	// ListRuns возвращает runs по фильтру, новые первыми.
	ListRuns(ctx context.Context, filter RunFilter) ([]*domain.FlowRun, error)
}

// FlowStore — хранилище зарегистрированных flows.
type FlowStore interface {
	// CreateFlow регистрирует flow. Коллизия имени —
	// graph.ErrDuplicateFlowName.
	CreateFlow(ctx context.Context, flow *domain.Flow) error

	// UpdateFlow обновляет метаданные flow (описание, активность).
	UpdateFlow(ctx context.Context, flow *domain.Flow) error

	// GetFlow возвращает flow по ID.
	GetFlow(ctx context.Context, id uuid.UUID) (*domain.Flow, error)

	// GetFlowByName возвращает flow по имени.
	GetFlowByName(ctx context.Context, name string) (*domain.Flow, error)

	// ListFlows возвращает все зарегистрированные flows.
	ListFlows(ctx context.Context) ([]*domain.Flow, error)
}

// ScheduleStore — хранилище расписаний.
type ScheduleStore interface {
	// CreateSchedule сохраняет новое расписание.
	CreateSchedule(ctx context.Context, sched *domain.Schedule) error

	// UpdateSchedule обновляет расписание целиком.
	UpdateSchedule(ctx context.Context, sched *domain.Schedule) error

	// DeleteSchedule удаляет расписание.
	DeleteSchedule(ctx context.Context, id uuid.UUID) error

	// GetSchedule возвращает расписание по ID.
	GetSchedule(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)

	// ListSchedules возвращает все расписания.
	ListSchedules(ctx context.Context) ([]*domain.Schedule, error)

	// ListDue возвращает включённые расписания с next_due_at <= now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.Schedule, error)
}
