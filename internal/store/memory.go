package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
)

// Memory — хранилище в памяти.
//
// Используется CLI и тестами, а также как Recorder движка по умолчанию.
// Потокобезопасно: все записи сериализуются мьютексом, читатели
// получают копии и никогда не видят частично записанную задачу.
type Memory struct {
	mu        sync.RWMutex
	runs      map[uuid.UUID]*domain.FlowRun
	flows     map[uuid.UUID]*domain.Flow
	schedules map[uuid.UUID]*domain.Schedule
}

// NewMemory создаёт пустое хранилище в памяти.
func NewMemory() *Memory {
	return &Memory{
		runs:      make(map[uuid.UUID]*domain.FlowRun),
		flows:     make(map[uuid.UUID]*domain.Flow),
		schedules: make(map[uuid.UUID]*domain.Schedule),
	}
}

// --- RunStore ---

// CreateRun сохраняет новый run.
func (m *Memory) CreateRun(_ context.Context, run *domain.FlowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run.Clone()
	return nil
}

// RecordTaskTransition записывает переход статуса задачи.
func (m *Memory) RecordTaskTransition(_ context.Context, runID uuid.UUID, task *domain.TaskRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, exists := m.runs[runID]
	if !exists {
		return ErrNotFound
	}

	for i, existing := range run.Tasks {
		if existing.Name == task.Name {
			run.Tasks[i] = task.Clone()
			return nil
		}
	}
	return ErrNotFound
}

// FinalizeRun записывает финальное состояние run.
func (m *Memory) FinalizeRun(_ context.Context, run *domain.FlowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.runs[run.ID]; exists && existing.IsFinished() {
		return ErrAlreadyFinalized
	}
	m.runs[run.ID] = run.Clone()
	return nil
}

// GetRun возвращает копию run по ID.
func (m *Memory) GetRun(_ context.Context, id uuid.UUID) (*domain.FlowRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[id]
	if !exists {
		return nil, ErrNotFound
	}
	return run.Clone(), nil
}

// ListRuns возвращает копии runs по фильтру, новые первыми.
func (m *Memory) ListRuns(_ context.Context, filter RunFilter) ([]*domain.FlowRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*domain.FlowRun, 0)
	for _, run := range m.runs {
		if filter.FlowName != "" && run.FlowName != filter.FlowName {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		matched = append(matched, run)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if filter.Offset >= len(matched) {
		return []*domain.FlowRun{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	result := make([]*domain.FlowRun, len(matched))
	for i, run := range matched {
		result[i] = run.Clone()
	}
	return result, nil
}

// --- FlowStore ---

// CreateFlow регистрирует flow.
// Возвращает graph.ErrDuplicateFlowName при коллизии имени.
func (m *Memory) CreateFlow(_ context.Context, flow *domain.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.flows {
		if existing.Name == flow.Name {
			return graph.NewDuplicateFlowName(flow.Name)
		}
	}
	clone := *flow
	m.flows[flow.ID] = &clone
	return nil
}

// UpdateFlow обновляет flow.
func (m *Memory) UpdateFlow(_ context.Context, flow *domain.Flow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.flows[flow.ID]; !exists {
		return ErrNotFound
	}
	clone := *flow
	m.flows[flow.ID] = &clone
	return nil
}

// GetFlow возвращает flow по ID.
func (m *Memory) GetFlow(_ context.Context, id uuid.UUID) (*domain.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flow, exists := m.flows[id]
	if !exists {
		return nil, ErrNotFound
	}
	clone := *flow
	return &clone, nil
}

// GetFlowByName возвращает flow по имени.
func (m *Memory) GetFlowByName(_ context.Context, name string) (*domain.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, flow := range m.flows {
		if flow.Name == name {
			clone := *flow
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

// ListFlows возвращает все flows, отсортированные по имени.
func (m *Memory) ListFlows(_ context.Context) ([]*domain.Flow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flows := make([]*domain.Flow, 0, len(m.flows))
	for _, flow := range m.flows {
		clone := *flow
		flows = append(flows, &clone)
	}
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].Name < flows[j].Name
	})
	return flows, nil
}

// --- ScheduleStore ---

// CreateSchedule сохраняет новое расписание.
func (m *Memory) CreateSchedule(_ context.Context, sched *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *sched
	m.schedules[sched.ID] = &clone
	return nil
}

// UpdateSchedule обновляет расписание.
func (m *Memory) UpdateSchedule(_ context.Context, sched *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.schedules[sched.ID]; !exists {
		return ErrNotFound
	}
	clone := *sched
	m.schedules[sched.ID] = &clone
	return nil
}

// DeleteSchedule удаляет расписание.
func (m *Memory) DeleteSchedule(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.schedules[id]; !exists {
		return ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

// GetSchedule возвращает расписание по ID.
func (m *Memory) GetSchedule(_ context.Context, id uuid.UUID) (*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sched, exists := m.schedules[id]
	if !exists {
		return nil, ErrNotFound
	}
	clone := *sched
	return &clone, nil
}

// ListSchedules возвращает все расписания.
func (m *Memory) ListSchedules(_ context.Context) ([]*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	schedules := make([]*domain.Schedule, 0, len(m.schedules))
	for _, sched := range m.schedules {
		clone := *sched
		schedules = append(schedules, &clone)
	}
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].CreatedAt.Before(schedules[j].CreatedAt)
	})
	return schedules, nil
}

// ListDue возвращает включённые расписания, которым пора запускаться.
func (m *Memory) ListDue(_ context.Context, now time.Time, limit int) ([]*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	due := make([]*domain.Schedule, 0)
	for _, sched := range m.schedules {
		if sched.IsDue(now) {
			clone := *sched
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextDueAt.Before(*due[j].NextDueAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}
