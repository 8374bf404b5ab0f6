package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
)

// Flow DTOs

// CreateFlowRequest — запрос на регистрацию flow.
// Source — текст flow DSL; имя flow берётся из заголовка DSL.
type CreateFlowRequest struct {
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

// UpdateFlowRequest — запрос на обновление метаданных flow.
type UpdateFlowRequest struct {
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// FlowResponse — ответ с flow.
type FlowResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Source      string    `json:"source"`
	Tasks       []string  `json:"tasks,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// FlowFromDomain конвертирует domain.Flow в FlowResponse.
// tasks — имена задач в порядке объявления (может быть nil).
func FlowFromDomain(f *domain.Flow, tasks []string) FlowResponse {
	return FlowResponse{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Source:      f.Source,
		Tasks:       tasks,
		IsActive:    f.IsActive,
		CreatedAt:   f.CreatedAt,
	}
}

// Run DTOs

// CreateRunRequest — запрос на запуск flow.
type CreateRunRequest struct {
	Input map[string]any `json:"input,omitempty"`
}

// RunQueuedResponse — ответ на принятый запрос запуска.
type RunQueuedResponse struct {
	RunID    uuid.UUID `json:"run_id"`
	FlowName string    `json:"flow_name"`
	Status   string    `json:"status"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID         uuid.UUID      `json:"id"`
	FlowName   string         `json:"flow_name"`
	Status     string         `json:"status"`
	Stale      bool           `json:"stale,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Tasks      []TaskResponse `json:"tasks,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TaskResponse — ответ с задачей run.
type TaskResponse struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// RunFromDomain конвертирует domain.FlowRun в RunResponse.
// withTasks=false опускает детали задач (для списков).
func RunFromDomain(r *domain.FlowRun, stale, withTasks bool) RunResponse {
	resp := RunResponse{
		ID:         r.ID,
		FlowName:   r.FlowName,
		Status:     string(r.Status),
		Stale:      stale,
		Input:      r.Input,
		Result:     r.Result,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		CreatedAt:  r.CreatedAt,
	}
	if withTasks {
		resp.Tasks = make([]TaskResponse, len(r.Tasks))
		for i, t := range r.Tasks {
			resp.Tasks[i] = TaskFromDomain(t)
		}
	}
	return resp
}

// TaskFromDomain конвертирует domain.TaskRun в TaskResponse.
func TaskFromDomain(t *domain.TaskRun) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		Name:       t.Name,
		Status:     string(t.Status),
		Input:      t.Input,
		Output:     t.Output,
		Error:      t.Error,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
		CreatedAt:  t.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name,omitempty"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Input       map[string]any `json:"input,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	Input       *map[string]any `json:"input,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID      `json:"id"`
	FlowID      uuid.UUID      `json:"flow_id"`
	Name        string         `json:"name,omitempty"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   *time.Time     `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time     `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID     `json:"last_run_id,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:          s.ID,
		FlowID:      s.FlowID,
		Name:        s.Name,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
		Input:       s.Input,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
