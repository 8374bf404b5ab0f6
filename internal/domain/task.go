package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskRun — запись о выполнении одной задачи внутри run.
//
// Переходы статуса происходят ровно один раз:
// PENDING → RUNNING → {COMPLETED | FAILED} либо PENDING → SKIPPED.
type TaskRun struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// Name — имя задачи (совпадает с именем в реестре задач).
	Name string `json:"name"`

	// Status — текущий статус задачи.
	Status TaskStatus `json:"status"`

	// Input — снимок входных данных, которые получила задача:
	// объединение входа flow и выходов родителей.
	Input map[string]any `json:"input,omitempty"`

	// Output — выходные данные задачи (если она их вернула).
	Output map[string]any `json:"output,omitempty"`

	// Error — описание ошибки для FAILED. У SKIPPED ошибки нет:
	// сигналом служит сам статус.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskRun создаёт запись задачи в статусе PENDING.
func NewTaskRun(name string) *TaskRun {
	return &TaskRun{
		ID:        uuid.New(),
		Name:      name,
		Status:    TaskStatusPending,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
func (t *TaskRun) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если задача в финальном статусе.
func (t *TaskRun) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит задачу в статус RUNNING со снимком входа.
func (t *TaskRun) MarkRunning(input map[string]any) {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.Input = CopyData(input)
	t.StartedAt = &now
}

// MarkCompleted переводит задачу в статус COMPLETED с выходными данными.
func (t *TaskRun) MarkCompleted(output map[string]any) {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.FinishedAt = &now
	t.Output = output
}

// MarkFailed переводит задачу в статус FAILED с ошибкой.
func (t *TaskRun) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// MarkSkipped переводит задачу из PENDING сразу в SKIPPED.
func (t *TaskRun) MarkSkipped() {
	now := time.Now()
	t.Status = TaskStatusSkipped
	t.FinishedAt = &now
}

// Clone возвращает копию записи для внешних читателей.
func (t *TaskRun) Clone() *TaskRun {
	clone := *t
	clone.Input = CopyData(t.Input)
	clone.Output = CopyData(t.Output)
	return &clone
}
